package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// Retry runs fn up to maxAttempts times with linearly growing delays:
// the wait before attempt n+1 is unit*n. Attempts are numbered from 1.
// The last error is returned once attempts are exhausted; a context
// cancellation during a wait aborts immediately.
type Retry struct {
	maxAttempts int
	unit        time.Duration
	clock       clock.Clock
}

// NewRetry creates a retry policy. A maxAttempts below 1 is treated as 1.
func NewRetry(maxAttempts int, unit time.Duration) *Retry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retry{maxAttempts: maxAttempts, unit: unit, clock: clock.New()}
}

// NewRetryWithClock creates a retry policy on an injected clock.
func NewRetryWithClock(maxAttempts int, unit time.Duration, c clock.Clock) *Retry {
	r := NewRetry(maxAttempts, unit)
	r.clock = c
	return r
}

// MaxAttempts reports the configured attempt limit.
func (r *Retry) MaxAttempts() int { return r.maxAttempts }

// Delay reports the wait after a failed attempt (1-based).
func (r *Retry) Delay(attempt int) time.Duration {
	return r.unit * time.Duration(attempt)
}

// Do runs fn until it succeeds or attempts run out. fn receives the
// 1-based attempt number.
func (r *Retry) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == r.maxAttempts {
			break
		}
		timer := r.clock.Timer(r.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after attempt %d: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%d attempts exhausted: %w", r.maxAttempts, lastErr)
}
