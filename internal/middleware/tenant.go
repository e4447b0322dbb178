package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
	"github.com/matehq/mate/internal/port/database"
	"github.com/matehq/mate/internal/tenantctx"
)

const (
	headerTenantID = "X-Tenant-Id"
	headerUserID   = "X-User-Id"
	echoTenantID   = "X-Tenant-ID"
	echoTenantName = "X-Tenant-Name"
)

// TenantResolver resolves the tenant for every request and seeds it into
// the request context. Resolution priority: the pinned deployment
// subdomain, then the X-Tenant-Id header, then the host subdomain.
type TenantResolver struct {
	store  database.Store
	logger *slog.Logger

	// pinned is the single-tenant-per-deployment override. When set, every
	// request belongs to this tenant and headers/hosts are ignored.
	pinned string
}

// NewTenantResolver creates the resolver middleware.
func NewTenantResolver(store database.Store, pinnedSubdomain string, logger *slog.Logger) *TenantResolver {
	return &TenantResolver{store: store, logger: logger, pinned: pinnedSubdomain}
}

// Handler wraps next with tenant resolution. Requests that resolve to no
// tenant, an unknown tenant, or a tenant not accepting traffic are
// rejected here and never reach next.
func (tr *TenantResolver) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, status, msg := tr.resolve(r)
		if t == nil {
			writeTenantError(w, status, msg)
			return
		}

		if userID := r.Header.Get(headerUserID); userID != "" {
			m, err := tr.store.GetMembership(r.Context(), t.ID, userID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				writeTenantError(w, http.StatusForbidden, "user does not belong to this organization")
				return
			case err != nil:
				tr.logger.Error("membership lookup failed",
					"tenant", t.Subdomain, "user_id", userID, "error", err)
				writeTenantError(w, http.StatusInternalServerError, "membership check failed")
				return
			case !m.Active:
				writeTenantError(w, http.StatusForbidden, "membership is deactivated")
				return
			}
			// Best-effort access stamp; never blocks the request.
			go func(tenantID, userID string) {
				if err := tr.store.TouchMembershipAccess(context.Background(), tenantID, userID); err != nil {
					tr.logger.Warn("membership access stamp failed",
						"tenant_id", tenantID, "user_id", userID, "error", err)
				}
			}(t.ID, userID)
		}

		w.Header().Set(echoTenantID, t.ID)
		w.Header().Set(echoTenantName, t.Name)
		next.ServeHTTP(w, r.WithContext(tenantctx.Set(r.Context(), t)))
	})
}

// resolve finds the request's tenant, or explains the rejection.
func (tr *TenantResolver) resolve(r *http.Request) (*tenant.Tenant, int, string) {
	if tr.pinned != "" {
		t, err := tr.store.GetTenantBySubdomain(r.Context(), tr.pinned)
		if err != nil {
			// A pinned subdomain that resolves to nothing is deployment
			// misconfiguration, not a caller mistake.
			tr.logger.Error("pinned tenant not found", "subdomain", tr.pinned, "error", err)
			return nil, http.StatusInternalServerError, "tenant deployment is misconfigured"
		}
		return tr.gate(t)
	}

	if id := r.Header.Get(headerTenantID); id != "" {
		t, err := tr.store.GetTenant(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, http.StatusNotFound, "unknown tenant"
			}
			tr.logger.Error("tenant lookup failed", "tenant_id", id, "error", err)
			return nil, http.StatusInternalServerError, "tenant lookup failed"
		}
		return tr.gate(t)
	}

	sub := hostSubdomain(r.Host)
	if sub == "" {
		return nil, http.StatusNotFound, "no tenant for this host"
	}
	t, err := tr.store.GetTenantBySubdomain(r.Context(), sub)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, http.StatusNotFound, "unknown tenant"
		}
		tr.logger.Error("tenant lookup failed", "subdomain", sub, "error", err)
		return nil, http.StatusInternalServerError, "tenant lookup failed"
	}
	return tr.gate(t)
}

// gate rejects tenants that are not accepting traffic, with a distinct
// message per state.
func (tr *TenantResolver) gate(t *tenant.Tenant) (*tenant.Tenant, int, string) {
	switch t.DeploymentStatus {
	case tenant.StatusActive:
		if !t.Active {
			return nil, http.StatusForbidden, "organization is suspended"
		}
		return t, 0, ""
	case tenant.StatusSuspended:
		return nil, http.StatusForbidden, "organization is suspended"
	case tenant.StatusPending, tenant.StatusProvisioning, tenant.StatusConfiguring:
		return nil, http.StatusServiceUnavailable, "organization is still being set up"
	default: // failed, terminated
		return nil, http.StatusNotFound, "organization is not available"
	}
}

// hostSubdomain extracts the tenant subdomain from the request host.
// Reserved subdomains and bare or two-label hosts resolve to nothing.
func hostSubdomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}
	sub := strings.ToLower(parts[0])
	if tenant.ReservedSubdomains[sub] {
		return ""
	}
	return sub
}

func writeTenantError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
