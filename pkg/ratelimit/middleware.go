package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// CodeRateLimited is the GraphQL extensions.code of a rejected request.
const CodeRateLimited = "RATE_LIMITED"

// Middleware rejects requests over the per-client limit with 429 and a
// GraphQL error body. onReject, if set, is called for every rejection. A
// nil limiter passes everything through.
func Middleware(l *Limiter, onReject func(*http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, retryAfter := l.Allow(l.ClientIP(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Burst()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			if onReject != nil {
				onReject(r)
			}
			secs := int64(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": nil,
				"errors": gqlerror.List{{
					Message:    "rate limit exceeded; retry in " + strconv.FormatInt(secs, 10) + "s",
					Extensions: map[string]any{"code": CodeRateLimited},
				}},
			})
		})
	}
}
