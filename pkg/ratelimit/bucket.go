// Package ratelimit provides token-bucket rate limiting.
//
// Bucket throttles a single caller; the transport uses one to pace
// requests to the live endpoint. Limiter keeps one bucket per key (the
// client IP by default) and backs the mock server's HTTP middleware.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a token bucket. It is safe for concurrent use.
type Bucket struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	rate   float64 // tokens per second
	last   time.Time
	now    func() time.Time
}

// NewBucket creates a full bucket refilling at rate tokens per second and
// holding at most burst tokens. A burst below 1 becomes max(rate, 1).
func NewBucket(rate float64, burst int) *Bucket {
	return newBucket(rate, burst, time.Now)
}

func newBucket(rate float64, burst int, now func() time.Time) *Bucket {
	b := float64(burst)
	if b < 1 {
		b = max(rate, 1)
	}
	return &Bucket{tokens: b, burst: b, rate: rate, last: now(), now: now}
}

// refill adds tokens for the time elapsed since the last update. Caller
// must hold b.mu.
func (b *Bucket) refill() {
	now := b.now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.burst, b.tokens+elapsed*b.rate)
	}
	b.last = now
}

// Allow consumes a token if one is available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// reserve takes a token unconditionally and returns how long the caller
// must wait before using it. The balance may go negative, so concurrent
// waiters queue behind each other instead of sharing one token.
func (b *Bucket) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	if b.rate <= 0 {
		return -1
	}
	return time.Duration(-b.tokens / b.rate * float64(time.Second))
}

// cancel returns a reserved token.
func (b *Bucket) cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = min(b.burst, b.tokens+1)
}

// Wait blocks until a token is available or ctx is done. A cancelled
// wait gives its token back.
func (b *Bucket) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wait := b.reserve()
	if wait == 0 {
		return nil
	}
	if wait < 0 {
		// Zero rate never refills.
		<-ctx.Done()
		b.cancel()
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		b.cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Available returns the tokens currently available.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return max(b.tokens, 0)
}

// RetryAfter returns how long until one token is available.
func (b *Bucket) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 || b.rate <= 0 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Burst returns the bucket capacity.
func (b *Bucket) Burst() int { return int(b.burst) }
