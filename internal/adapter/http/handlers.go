package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
	"github.com/matehq/mate/internal/port/messagequeue"
	"github.com/matehq/mate/internal/service"
	"github.com/matehq/mate/internal/tenantctx"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Handlers bundles the control-plane HTTP handlers and their dependencies.
type Handlers struct {
	tenants     *service.TenantService
	provisioner *service.Provisioner
	dispatcher  *service.Dispatcher
	queue       messagequeue.Queue
}

// NewHandlers creates the handler set.
func NewHandlers(tenants *service.TenantService, provisioner *service.Provisioner, dispatcher *service.Dispatcher, queue messagequeue.Queue) *Handlers {
	return &Handlers{
		tenants:     tenants,
		provisioner: provisioner,
		dispatcher:  dispatcher,
		queue:       queue,
	}
}

// Health reports process liveness and queue connectivity.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":          "ok",
		"queue_connected": h.queue.IsConnected(),
	}
	if !h.queue.IsConnected() {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}

// CreateTenant registers a new tenant in pending status.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.CreateRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	t, err := h.tenants.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListTenants returns all tenants.
func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "tenants not found")
		return
	}
	if tenants == nil {
		tenants = []tenant.Tenant{}
	}
	writeJSON(w, http.StatusOK, tenants)
}

// GetTenant returns one tenant by ID.
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ProvisionTenant queues the infrastructure provisioning job for a pending
// or failed tenant. The work itself runs on the provisioning queue.
func (h *Handlers) ProvisionTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	if !t.DeploymentStatus.CanTransition(tenant.StatusProvisioning) {
		writeDomainError(w, fmt.Errorf("tenant %s is %s: %w",
			t.Subdomain, t.DeploymentStatus, domain.ErrInvalidState), "")
		return
	}

	ctx := tenantctx.Set(r.Context(), t)
	if err := h.dispatcher.Enqueue(ctx, service.JobProvisionInfrastructure, messagequeue.QueueProvisioning, nil); err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"tenant": t.Subdomain,
	})
}

// SuspendTenant takes an active tenant out of service.
func (h *Handlers) SuspendTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.Suspend(r.Context(), urlParam(r, "id"), r.Header.Get("X-User-Id"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ReactivateTenant returns a suspended tenant to service.
func (h *Handlers) ReactivateTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.Reactivate(r.Context(), urlParam(r, "id"), r.Header.Get("X-User-Id"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// TerminateTenant retires a suspended tenant permanently.
func (h *Handlers) TerminateTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.Terminate(r.Context(), urlParam(r, "id"), r.Header.Get("X-User-Id"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeprovisionTenant flags a suspended tenant's resources for manual
// teardown.
func (h *Handlers) DeprovisionTenant(w http.ResponseWriter, r *http.Request) {
	err := h.provisioner.Deprovision(r.Context(), urlParam(r, "id"), r.Header.Get("X-User-Id"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "deprovision requested"})
}

// ListTenantEvents returns the tenant's recent audit events.
func (h *Handlers) ListTenantEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}
	events, err := h.tenants.Events(r.Context(), urlParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	if events == nil {
		events = []tenant.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// AddTenantUser grants a user membership in the tenant.
func (h *Handlers) AddTenantUser(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		UserID   string            `json:"user_id"`
		Role     string            `json:"role"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}](w, r, maxBodyBytes)
	if !ok {
		return
	}
	m, err := h.tenants.AddUser(r.Context(), urlParam(r, "id"), req.UserID, req.Role, req.Metadata)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Me echoes the tenant resolved for this request. Mounted behind the
// tenant resolver; useful for smoke-testing resolution.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	t, err := tenantctx.MustFrom(r.Context())
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": t.ID,
		"name":      t.Name,
		"subdomain": t.Subdomain,
		"plan":      t.Plan,
	})
}
