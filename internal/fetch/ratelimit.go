package fetch

import (
	"context"
	"sync"
	"time"
)

// Limiter serializes outgoing requests to a minimum inter-request
// interval, shared by all concurrent callers of a Fetcher.
//
// The lock is never held across a sleep. A waiter computes its delay under
// the lock, releases, sleeps, and retries: N queued callers then all wait
// on the same advancing clock instead of queueing their full intervals
// behind one another.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewLimiter creates a limiter with the given minimum interval between
// request starts. A zero or negative interval never waits.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval, now: time.Now}
}

// Wait blocks until the caller may begin its request, then records the
// request start time. Returns early with ctx.Err() if the context is
// cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		if l.last.IsZero() || now.Sub(l.last) >= l.interval {
			l.last = now
			l.mu.Unlock()
			return nil
		}
		wait := l.interval - now.Sub(l.last)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
