package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/port/cloud"
)

// CheckFunc is one readiness probe against the provider. It returns the
// provider status string and, once known, the resource endpoint.
type CheckFunc func(ctx context.Context) (status string, endpoint cloud.Endpoint, err error)

// ReadinessPoller polls a provider describe API until a resource reports
// available. Creation API acceptance alone never counts as ready.
type ReadinessPoller struct {
	logger *slog.Logger
	clock  clock.Clock
}

// NewReadinessPoller creates a poller on the wall clock.
func NewReadinessPoller(logger *slog.Logger) *ReadinessPoller {
	return &ReadinessPoller{logger: logger, clock: clock.New()}
}

// NewReadinessPollerWithClock creates a poller on an injected clock.
func NewReadinessPollerWithClock(logger *slog.Logger, c clock.Clock) *ReadinessPoller {
	return &ReadinessPoller{logger: logger, clock: c}
}

// WaitUntilReady runs check every interval until it reports available,
// maxAttempts checks have been made (ErrTimeout), or ctx is cancelled.
// Transient check errors count as attempts and do not abort the wait.
func (p *ReadinessPoller) WaitUntilReady(ctx context.Context, locator string, check CheckFunc, interval time.Duration, maxAttempts int) (cloud.Endpoint, error) {
	if maxAttempts < 1 {
		return cloud.Endpoint{}, fmt.Errorf("poll %s: max attempts %d: %w", locator, maxAttempts, domain.ErrValidation)
	}

	for attempt := 1; ; attempt++ {
		status, endpoint, err := check(ctx)
		switch {
		case err != nil:
			p.logger.Warn("readiness check failed",
				"locator", locator, "attempt", attempt, "error", err)
		case status == cloud.StatusAvailable:
			p.logger.Info("resource ready",
				"locator", locator, "attempts", attempt)
			return endpoint, nil
		default:
			p.logger.Debug("resource not ready",
				"locator", locator, "status", status, "attempt", attempt)
		}

		if attempt >= maxAttempts {
			return cloud.Endpoint{}, fmt.Errorf("poll %s: not available after %d checks: %w",
				locator, maxAttempts, domain.ErrTimeout)
		}

		timer := p.clock.Timer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return cloud.Endpoint{}, fmt.Errorf("poll %s: %w", locator, ctx.Err())
		case <-timer.C:
		}
	}
}
