package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
	"github.com/matehq/mate/internal/port/database"
)

// TenantService manages the tenant lifecycle outside of provisioning:
// creation, suspension, reactivation, termination, and memberships.
type TenantService struct {
	store  database.Store
	logger *slog.Logger
}

// NewTenantService creates a new TenantService.
func NewTenantService(store database.Store, logger *slog.Logger) *TenantService {
	return &TenantService{store: store, logger: logger}
}

var subdomainRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// Create validates and creates a new tenant in pending status. It does not
// start provisioning; that is a separate, explicitly dispatched job.
func (s *TenantService) Create(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("tenant name is required: %w", domain.ErrValidation)
	}
	if !subdomainRegex.MatchString(req.Subdomain) {
		return nil, fmt.Errorf("invalid subdomain %q: must be 3-63 lowercase alphanumeric characters or hyphens: %w",
			req.Subdomain, domain.ErrValidation)
	}
	if tenant.ReservedSubdomains[req.Subdomain] {
		return nil, fmt.Errorf("subdomain %q is reserved: %w", req.Subdomain, domain.ErrValidation)
	}
	switch req.Plan {
	case "", tenant.PlanStarter, tenant.PlanProfessional, tenant.PlanEnterprise:
	default:
		return nil, fmt.Errorf("unknown plan %q: %w", req.Plan, domain.ErrValidation)
	}

	t, err := s.store.CreateTenant(ctx, req)
	if err != nil {
		return nil, err
	}
	s.appendEvent(ctx, tenant.NewEvent(t.ID, tenant.EventCreated, map[string]any{
		"subdomain": t.Subdomain,
		"plan":      string(t.Plan),
	}))
	s.logger.Info("tenant created", "tenant", t.Subdomain, "plan", t.Plan)
	return t, nil
}

// Get returns a tenant by ID.
func (s *TenantService) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.store.GetTenant(ctx, id)
}

// GetBySubdomain returns a tenant by its subdomain.
func (s *TenantService) GetBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	return s.store.GetTenantBySubdomain(ctx, subdomain)
}

// List returns all tenants, including suspended and terminated ones.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// Events returns the tenant's most recent audit events.
func (s *TenantService) Events(ctx context.Context, id string, limit int) ([]tenant.Event, error) {
	if _, err := s.store.GetTenant(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, id, limit)
}

// Suspend takes an active tenant out of service. Its infrastructure stays
// up; only request routing and dispatch stop.
func (s *TenantService) Suspend(ctx context.Context, id, actor string) (*tenant.Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Transition(tenant.StatusSuspended); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	t.Active = false
	t.SuspendedAt = &now
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}
	ev := tenant.NewEvent(t.ID, tenant.EventSuspended, nil)
	ev.Actor = actor
	s.appendEvent(ctx, ev)
	s.logger.Info("tenant suspended", "tenant", t.Subdomain, "actor", actor)
	return t, nil
}

// Reactivate returns a suspended tenant to service.
func (s *TenantService) Reactivate(ctx context.Context, id, actor string) (*tenant.Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Transition(tenant.StatusActive); err != nil {
		return nil, err
	}
	t.Active = true
	t.SuspendedAt = nil
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}
	ev := tenant.NewEvent(t.ID, tenant.EventReactivated, nil)
	ev.Actor = actor
	s.appendEvent(ctx, ev)
	s.logger.Info("tenant reactivated", "tenant", t.Subdomain, "actor", actor)
	return t, nil
}

// Terminate retires a suspended tenant permanently. The record stays for
// the audit trail; infrastructure teardown remains a manual operation.
func (s *TenantService) Terminate(ctx context.Context, id, actor string) (*tenant.Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Transition(tenant.StatusTerminated); err != nil {
		return nil, err
	}
	t.Active = false
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}
	ev := tenant.NewEvent(t.ID, tenant.EventTerminated, nil)
	ev.Actor = actor
	s.appendEvent(ctx, ev)
	s.logger.Info("tenant terminated", "tenant", t.Subdomain, "actor", actor)
	return t, nil
}

// AddUser grants a user membership in the tenant. metadata is stored
// opaquely (license numbers, specialties and the like).
func (s *TenantService) AddUser(ctx context.Context, tenantID, userID, role string, metadata map[string]string) (*tenant.Membership, error) {
	if userID == "" || role == "" {
		return nil, fmt.Errorf("user ID and role are required: %w", domain.ErrValidation)
	}
	if _, err := s.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	m := &tenant.Membership{
		TenantID: tenantID,
		UserID:   userID,
		Role:     role,
		Active:   true,
		Metadata: metadata,
	}
	if err := s.store.AddMembership(ctx, m); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, tenant.NewEvent(tenantID, tenant.EventUserAdded, map[string]any{
		"user_id": userID,
		"role":    role,
	}))
	return m, nil
}

// appendEvent writes an audit event; failures are logged, never fatal to
// the operation that triggered them.
func (s *TenantService) appendEvent(ctx context.Context, ev *tenant.Event) {
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		s.logger.Error("audit event write failed",
			"tenant_id", ev.TenantID, "kind", ev.Kind, "error", err)
	}
}
