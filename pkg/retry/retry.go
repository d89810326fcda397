package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// Policy bounds a retry loop. MaxWait <= 0 means retry until ctx is done.
// Factor 1 (the default when zero) gives a fixed delay of Backoff.
type Policy struct {
	MaxWait time.Duration
	Backoff time.Duration
	Max     time.Duration
	Factor  float64
}

// Fixed is the dependency-readiness policy: unbounded, constant delay.
func Fixed(d time.Duration) Policy {
	return Policy{Backoff: d}
}

// AttemptFunc is called once per attempt, starting at 1.
type AttemptFunc func(ctx context.Context, attempt int) error

// Until calls fn until it succeeds, ctx is done, or MaxWait elapses.
// onRetry (optional) runs after every failure with the delay about to be slept.
func Until(ctx context.Context, p Policy, fn AttemptFunc, onRetry func(attempt int, err error, next time.Duration)) error {
	b := newBackoff(p)
	var deadline time.Time
	if p.MaxWait > 0 {
		deadline = time.Now().Add(p.MaxWait)
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		next := b.Duration()
		if !deadline.IsZero() && time.Now().Add(next).After(deadline) {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}
		if onRetry != nil {
			onRetry(attempt, err, next)
		}

		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func newBackoff(p Policy) *backoff.Backoff {
	lo := p.Backoff
	if lo <= 0 {
		lo = time.Second
	}
	hi := p.Max
	if hi < lo {
		hi = lo
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	return &backoff.Backoff{Min: lo, Max: hi, Factor: factor, Jitter: false}
}
