// Package tenant defines the tenant domain model: the unit of isolation,
// its lifecycle state machine, and the records attached to it.
package tenant

import (
	"fmt"
	"time"

	"github.com/matehq/mate/internal/domain"
)

// DeploymentStatus tracks a tenant through its infrastructure lifecycle.
type DeploymentStatus string

const (
	StatusPending      DeploymentStatus = "pending"
	StatusProvisioning DeploymentStatus = "provisioning"
	StatusConfiguring  DeploymentStatus = "configuring"
	StatusActive       DeploymentStatus = "active"
	StatusSuspended    DeploymentStatus = "suspended"
	StatusTerminated   DeploymentStatus = "terminated"
	StatusFailed       DeploymentStatus = "failed"
)

// transitions is the allowed deployment status graph. Status never moves
// backward except suspended→active (reactivation) and failed→provisioning
// (a fresh provisioning attempt).
var transitions = map[DeploymentStatus][]DeploymentStatus{
	StatusPending:      {StatusProvisioning},
	StatusProvisioning: {StatusConfiguring, StatusFailed},
	StatusConfiguring:  {StatusActive, StatusFailed},
	StatusActive:       {StatusSuspended},
	StatusSuspended:    {StatusActive, StatusTerminated},
	StatusFailed:       {StatusProvisioning},
	StatusTerminated:   {},
}

// CanTransition reports whether moving from s to next is allowed.
func (s DeploymentStatus) CanTransition(next DeploymentStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Plan is the billing tier controlling quota limits.
type Plan string

const (
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// Tenant represents an isolated customer organization with dedicated
// cloud resources. Tenants are soft-terminated, never deleted.
type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
	Region    string `json:"region"`

	DeploymentStatus DeploymentStatus `json:"deployment_status"`
	Active           bool             `json:"active"`

	// Provisioned resource identifiers and endpoints.
	DatabaseInstanceID string `json:"database_instance_id,omitempty"`
	DatabaseEndpoint   string `json:"database_endpoint,omitempty"`
	DatabasePort       int    `json:"database_port"`
	DatabaseName       string `json:"database_name,omitempty"`
	CacheClusterID     string `json:"cache_cluster_id,omitempty"`
	CacheEndpoint      string `json:"cache_endpoint,omitempty"`
	CachePort          int    `json:"cache_port"`
	BucketName         string `json:"bucket_name,omitempty"`
	BucketRegion       string `json:"bucket_region,omitempty"`
	KeyID              string `json:"key_id,omitempty"`
	KeyARN             string `json:"key_arn,omitempty"`

	// Secret store handles. The secret store is authoritative for the
	// credentials themselves; these are only references.
	DBSecretRef    string `json:"db_secret_ref,omitempty"`
	CacheSecretRef string `json:"cache_secret_ref,omitempty"`

	Plan                 Plan    `json:"plan"`
	MaxStorageGB         int     `json:"max_storage_gb"`
	MaxUsers             int     `json:"max_users"`
	MaxAPICallsPerMonth  int     `json:"max_api_calls_per_month"`
	EstimatedMonthlyCost float64 `json:"estimated_monthly_cost,omitempty"`

	// Compliance metadata, carried opaquely on the record.
	Compliant          bool       `json:"compliant"`
	BAASignedAt        *time.Time `json:"baa_signed_at,omitempty"`
	DataRetentionYears int        `json:"data_retention_years"`

	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
	ProvisioningStartedAt   *time.Time `json:"provisioning_started_at,omitempty"`
	ProvisioningCompletedAt *time.Time `json:"provisioning_completed_at,omitempty"`
	ActivatedAt             *time.Time `json:"activated_at,omitempty"`
	SuspendedAt             *time.Time `json:"suspended_at,omitempty"`
}

// ReservedSubdomains are hostnames that never resolve to a tenant and
// cannot be claimed at signup.
var ReservedSubdomains = map[string]bool{
	"www":    true,
	"api":    true,
	"admin":  true,
	"docs":   true,
	"manage": true,
}

// CreateRequest holds the fields required to create a new tenant.
type CreateRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
	Region    string `json:"region,omitempty"`
	Plan      Plan   `json:"plan,omitempty"`
}

// Transition moves the tenant to next, or returns ErrInvalidState when the
// status graph forbids it.
func (t *Tenant) Transition(next DeploymentStatus) error {
	if !t.DeploymentStatus.CanTransition(next) {
		return fmt.Errorf("tenant %s: %s -> %s: %w",
			t.Subdomain, t.DeploymentStatus, next, domain.ErrInvalidState)
	}
	t.DeploymentStatus = next
	return nil
}

// ResourceName builds the tenant-qualified provider resource name,
// "mate-{subdomain}-{kind}".
func (t *Tenant) ResourceName(kind string) string {
	return fmt.Sprintf("mate-%s-%s", t.Subdomain, kind)
}

// ApplyPlanLimits sets quota limits for the tenant's plan tier.
func (t *Tenant) ApplyPlanLimits() {
	switch t.Plan {
	case PlanProfessional:
		t.MaxStorageGB = 500
		t.MaxUsers = 200
		t.MaxAPICallsPerMonth = 1_000_000
	case PlanEnterprise:
		t.MaxStorageGB = 2000
		t.MaxUsers = 1000
		t.MaxAPICallsPerMonth = 10_000_000
	default:
		t.Plan = PlanStarter
		t.MaxStorageGB = 100
		t.MaxUsers = 50
		t.MaxAPICallsPerMonth = 100_000
	}
}

// EstimateMonthlyCost computes the estimated monthly infrastructure cost in
// USD for the tenant's plan tier: the database and cache classes the plan
// provisions, the key, and plan storage at standard object-storage rates.
func (t *Tenant) EstimateMonthlyCost() float64 {
	const (
		keyMonthly   = 1.00
		storagePerGB = 0.023
	)
	var db, cache float64
	switch t.Plan {
	case PlanEnterprise:
		db, cache = 691.20, 150.40 // db.r6g.xlarge multi-AZ, cache.r6g.large
	case PlanProfessional:
		db, cache = 345.60, 108.70 // db.r6g.large multi-AZ, cache.m6g.large
	default:
		db, cache = 98.50, 12.40 // db.t3.medium multi-AZ, cache.t3.micro
	}
	return db + cache + keyMonthly + storagePerGB*float64(t.MaxStorageGB)
}
