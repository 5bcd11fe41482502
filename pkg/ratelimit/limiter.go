package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Defaults for a Limiter.
const (
	DefaultRate     = 50
	DefaultIdleTTL  = time.Minute
	cleanupInterval = time.Minute
)

// Config configures a Limiter.
type Config struct {
	// Rate is the refill rate per key in requests per second.
	Rate float64
	// Burst is the bucket capacity per key. Defaults to twice the rate.
	Burst int
	// TrustProxy reads the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool
	// IdleTTL drops keys unused for this long.
	IdleTTL time.Duration

	now func() time.Time
}

type entry struct {
	bucket *Bucket
	seen   time.Time
}

// Limiter rate-limits requests per key.
type Limiter struct {
	rate       float64
	burst      int
	trustProxy bool
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a Limiter and starts its cleanup goroutine. Call Stop
// to release it.
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		rate:       cfg.Rate,
		burst:      cfg.Burst,
		trustProxy: cfg.TrustProxy,
		ttl:        cfg.IdleTTL,
		now:        cfg.now,
		entries:    make(map[string]*entry),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if l.rate <= 0 {
		l.rate = DefaultRate
	}
	if l.burst <= 0 {
		l.burst = int(l.rate * 2)
	}
	if l.ttl <= 0 {
		l.ttl = DefaultIdleTTL
	}
	if l.now == nil {
		l.now = time.Now
	}
	go l.cleanup()
	return l
}

// Burst returns the per-key capacity.
func (l *Limiter) Burst() int { return l.burst }

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) bucket(key string) *Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{bucket: newBucket(l.rate, l.burst, l.now)}
		l.entries[key] = e
	}
	e.seen = l.now()
	return e.bucket
}

// Allow reports whether key may proceed. When it may not, retryAfter is
// the time until the next token.
func (l *Limiter) Allow(key string) (ok bool, remaining int, retryAfter time.Duration) {
	b := l.bucket(key)
	if b.Allow() {
		return true, int(b.Available()), 0
	}
	return false, 0, b.RetryAfter()
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
		<-l.done
	})
}

func (l *Limiter) cleanup() {
	defer close(l.done)
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.prune()
		case <-l.stop:
			return
		}
	}
}

// prune drops keys idle longer than the TTL.
func (l *Limiter) prune() {
	cutoff := l.now().Add(-l.ttl)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.seen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// ClientIP returns the key for r: the remote IP, or the first forwarded
// address when proxies are trusted.
func (l *Limiter) ClientIP(r *http.Request) string {
	if l.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
