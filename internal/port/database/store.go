// Package database defines the persistence port for tenant records.
package database

import (
	"context"

	"github.com/matehq/mate/internal/domain/tenant"
)

// Store is the port interface for the control-plane record store. All
// tenant metadata, infrastructure resource records, memberships, and the
// append-only event feed live behind it.
type Store interface {
	// Tenants. Tenants are never deleted; termination is a status change.
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	GetTenantBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]tenant.Tenant, error)
	UpdateTenant(ctx context.Context, t *tenant.Tenant) error

	// Infrastructure resource records.
	CreateResource(ctx context.Context, r *tenant.Resource) error
	UpdateResourceStatus(ctx context.Context, tenantID string, kind tenant.ResourceKind, status tenant.ResourceStatus) error
	ListResources(ctx context.Context, tenantID string) ([]tenant.Resource, error)

	// Audit events: append-only, never updated or deleted.
	AppendEvent(ctx context.Context, ev *tenant.Event) error
	ListEvents(ctx context.Context, tenantID string, limit int) ([]tenant.Event, error)

	// Memberships.
	AddMembership(ctx context.Context, m *tenant.Membership) error
	GetMembership(ctx context.Context, tenantID, userID string) (*tenant.Membership, error)
	TouchMembershipAccess(ctx context.Context, tenantID, userID string) error
}
