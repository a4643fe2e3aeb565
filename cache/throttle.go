package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum delay between consecutive remote calls made through it.
// It bounds the call rate only; it does not order callers or back off on failures.
type Throttle struct {
	mu          sync.Mutex
	minInterval time.Duration
	limiter     *rate.Limiter
}

// NewThrottle creates a throttle with the given floor between calls. A non-positive
// interval disables waiting.
func NewThrottle(minInterval time.Duration) *Throttle {
	t := &Throttle{minInterval: minInterval}
	t.limiter = t.newLimiter()
	return t
}

func (t *Throttle) newLimiter() *rate.Limiter {
	if t.minInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(t.minInterval), 1)
}

// Wait blocks until at least the minimum interval has passed since the previous Wait
// returned, or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	limiter := t.limiter
	t.mu.Unlock()

	return limiter.Wait(ctx)
}

// Reset forgets the previous call so the next Wait returns immediately.
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.limiter = t.newLimiter()
	t.mu.Unlock()
}

// MinInterval returns the configured floor.
func (t *Throttle) MinInterval() time.Duration {
	return t.minInterval
}
