package tenant

import "time"

// Membership associates a user with a tenant. A user may belong to many
// tenants; requests are rejected when the authenticated principal has no
// active membership in the resolved tenant.
type Membership struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`

	// Metadata carries opaque per-membership attributes such as license
	// numbers or clinical specialties. The control plane stores them
	// without interpreting them.
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	LastAccessAt *time.Time `json:"last_access_at,omitempty"`
}
