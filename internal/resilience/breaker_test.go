package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

var errUpstream = errors.New("secret store unavailable")

func failing(context.Context) error { return errUpstream }

func succeeding(context.Context) error { return nil }

func TestBreakerClosedPassesThrough(t *testing.T) {
	b := NewBreaker(3, time.Second)

	called := false
	err := b.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Fatal("fn not called while closed")
	}
	if got := b.State(); got != "closed" {
		t.Fatalf("state = %s, want closed", got)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)
	ctx := context.Background()

	for range 3 {
		if err := b.Execute(ctx, failing); !errors.Is(err, errUpstream) {
			t.Fatalf("Execute: %v, want upstream error", err)
		}
	}

	if err := b.Execute(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute while open: %v, want ErrCircuitOpen", err)
	}
	if got := b.State(); got != "open" {
		t.Fatalf("state = %s, want open", got)
	}
}

func TestBreakerHalfOpenProbeCloses(t *testing.T) {
	mock := clock.NewMock()
	b := NewBreakerWithClock(2, time.Minute, mock)
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, failing)

	if err := b.Execute(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute before cooldown: %v, want ErrCircuitOpen", err)
	}

	mock.Add(2 * time.Minute)

	if err := b.Execute(ctx, succeeding); err != nil {
		t.Fatalf("probe after cooldown: %v", err)
	}
	if got := b.State(); got != "closed" {
		t.Fatalf("state after probe success = %s, want closed", got)
	}
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	mock := clock.NewMock()
	b := NewBreakerWithClock(2, time.Minute, mock)
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, failing)
	mock.Add(2 * time.Minute)

	if err := b.Execute(ctx, failing); !errors.Is(err, errUpstream) {
		t.Fatalf("probe: %v, want upstream error", err)
	}
	if got := b.State(); got != "open" {
		t.Fatalf("state after probe failure = %s, want open", got)
	}
	if err := b.Execute(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute after reopen: %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerHalfOpenAdmitsOneProbe(t *testing.T) {
	mock := clock.NewMock()
	b := NewBreakerWithClock(1, time.Minute, mock)
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	mock.Add(2 * time.Minute)

	// First caller becomes the probe; a concurrent caller is rejected
	// while the probe is in flight.
	probeErr := b.Execute(ctx, func(c context.Context) error {
		if err := b.Execute(c, succeeding); !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("concurrent call during probe: %v, want ErrCircuitOpen", err)
		}
		return nil
	})
	if probeErr != nil {
		t.Fatalf("probe: %v", probeErr)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Second)
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, succeeding)
	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, failing)

	if err := b.Execute(ctx, succeeding); err != nil {
		t.Fatalf("Execute: %v, breaker tripped without %d consecutive failures", err, 3)
	}
}
