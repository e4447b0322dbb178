package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/matehq/mate/internal/middleware"
)

// MountRoutes registers the control-plane API and the tenant-scoped
// surface. Tenant management endpoints are operator-facing and sit outside
// tenant resolution; everything under the resolver serves tenant traffic.
func MountRoutes(r chi.Router, h *Handlers, resolver *middleware.TenantResolver) {
	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tenants", h.CreateTenant)
		r.Get("/tenants", h.ListTenants)
		r.Get("/tenants/{id}", h.GetTenant)
		r.Get("/tenants/{id}/events", h.ListTenantEvents)
		r.Post("/tenants/{id}/users", h.AddTenantUser)

		// Lifecycle operations.
		r.Post("/tenants/{id}/provision", h.ProvisionTenant)
		r.Post("/tenants/{id}/suspend", h.SuspendTenant)
		r.Post("/tenants/{id}/reactivate", h.ReactivateTenant)
		r.Post("/tenants/{id}/terminate", h.TerminateTenant)
		r.Post("/tenants/{id}/deprovision", h.DeprovisionTenant)
	})

	// Tenant-scoped surface: every request resolves to exactly one tenant.
	r.Route("/v1", func(r chi.Router) {
		r.Use(resolver.Handler)
		r.Get("/me", h.Me)
	})
}
