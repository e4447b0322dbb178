// Package tenantctx carries the current tenant through a unit of work.
//
// The tenant rides on the context.Context of the request or job, never in
// package-level state, so concurrent units cannot observe each other's
// tenant. A unit of work that requires tenant scoping must treat an absent
// tenant as a fatal configuration error, not proceed unscoped.
package tenantctx

import (
	"context"
	"fmt"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
)

// ctxKey is a private type to prevent collisions with other context keys.
type ctxKey struct{}

// Set returns a child context carrying t as the current tenant.
func Set(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// Clear returns a child context with no current tenant, masking any tenant
// set on a parent context.
func Clear(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, (*tenant.Tenant)(nil))
}

// From returns the current tenant, or ok=false when none is set.
func From(ctx context.Context) (*tenant.Tenant, bool) {
	t, _ := ctx.Value(ctxKey{}).(*tenant.Tenant)
	if t == nil {
		return nil, false
	}
	return t, true
}

// MustFrom returns the current tenant or ErrConfiguration when none is set.
// Callers that require tenant scoping use this instead of From.
func MustFrom(ctx context.Context) (*tenant.Tenant, error) {
	t, ok := From(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant in context: %w", domain.ErrConfiguration)
	}
	return t, nil
}

// Subdomain returns the current tenant's subdomain, or "" when no tenant
// is set. Convenience for queue naming and log attributes.
func Subdomain(ctx context.Context) string {
	if t, ok := From(ctx); ok {
		return t.Subdomain
	}
	return ""
}
