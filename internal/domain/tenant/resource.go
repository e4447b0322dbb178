package tenant

import "time"

// ResourceKind identifies the type of cloud resource tracked for a tenant.
type ResourceKind string

const (
	ResourceDatabaseInstance ResourceKind = "database_instance"
	ResourceCacheCluster     ResourceKind = "cache_cluster"
	ResourceObjectBucket     ResourceKind = "object_bucket"
	ResourceEncryptionKey    ResourceKind = "encryption_key"
)

// ResourceStatus tracks a cloud resource's own lifecycle. Deleted and
// failed are terminal.
type ResourceStatus string

const (
	ResourceCreating ResourceStatus = "creating"
	ResourceActive   ResourceStatus = "active"
	ResourceUpdating ResourceStatus = "updating"
	ResourceDeleting ResourceStatus = "deleting"
	ResourceDeleted  ResourceStatus = "deleted"
	ResourceFailed   ResourceStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s ResourceStatus) Terminal() bool {
	return s == ResourceDeleted || s == ResourceFailed
}

// Resource is one cloud resource created for a tenant. Records stay in
// "creating" until the readiness poller confirms availability; creation API
// acceptance alone does not mean the resource is usable.
type Resource struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Kind       ResourceKind   `json:"kind"`
	ExternalID string         `json:"external_id"`
	Locator    string         `json:"locator,omitempty"` // provider ARN or equivalent
	Status     ResourceStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
