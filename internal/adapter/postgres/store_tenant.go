package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
)

const tenantColumns = `id, name, subdomain, region, deployment_status, active,
	database_instance_id, database_endpoint, database_port, database_name,
	cache_cluster_id, cache_endpoint, cache_port,
	bucket_name, bucket_region, key_id, key_arn,
	db_secret_ref, cache_secret_ref,
	plan, max_storage_gb, max_users, max_api_calls_per_month, estimated_monthly_cost,
	compliant, baa_signed_at, data_retention_years,
	created_at, updated_at, provisioning_started_at, provisioning_completed_at,
	activated_at, suspended_at`

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	var cost *float64
	err := row.Scan(
		&t.ID, &t.Name, &t.Subdomain, &t.Region, &t.DeploymentStatus, &t.Active,
		&t.DatabaseInstanceID, &t.DatabaseEndpoint, &t.DatabasePort, &t.DatabaseName,
		&t.CacheClusterID, &t.CacheEndpoint, &t.CachePort,
		&t.BucketName, &t.BucketRegion, &t.KeyID, &t.KeyARN,
		&t.DBSecretRef, &t.CacheSecretRef,
		&t.Plan, &t.MaxStorageGB, &t.MaxUsers, &t.MaxAPICallsPerMonth, &cost,
		&t.Compliant, &t.BAASignedAt, &t.DataRetentionYears,
		&t.CreatedAt, &t.UpdatedAt, &t.ProvisioningStartedAt, &t.ProvisioningCompletedAt,
		&t.ActivatedAt, &t.SuspendedAt,
	)
	if err != nil {
		return t, err
	}
	if cost != nil {
		t.EstimatedMonthlyCost = *cost
	}
	return t, nil
}

func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	spec := tenant.Tenant{Plan: req.Plan}
	spec.ApplyPlanLimits()

	region := req.Region
	if region == "" {
		region = "us-east-1"
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, subdomain, region, plan, max_storage_gb, max_users, max_api_calls_per_month)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+tenantColumns,
		req.Name, req.Subdomain, region, spec.Plan,
		spec.MaxStorageGB, spec.MaxUsers, spec.MaxAPICallsPerMonth)
	t, err := scanTenant(row)
	if err != nil {
		return nil, fmt.Errorf("create tenant %s: %w", req.Subdomain, err)
	}
	return &t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return &t, nil
}

func (s *Store) GetTenantBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE subdomain = $1`, subdomain)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get tenant by subdomain %s: %w", subdomain, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant by subdomain %s: %w", subdomain, err)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	return s.listTenants(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at ASC`)
}

func (s *Store) ListActiveTenants(ctx context.Context) ([]tenant.Tenant, error) {
	return s.listTenants(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE deployment_status = 'active' AND active ORDER BY created_at ASC`)
}

func (s *Store) listTenants(ctx context.Context, query string) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// UpdateTenant persists all mutable tenant fields. The subdomain and
// created_at are immutable once written.
func (s *Store) UpdateTenant(ctx context.Context, t *tenant.Tenant) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET
			name = $2, region = $3, deployment_status = $4, active = $5,
			database_instance_id = $6, database_endpoint = $7, database_port = $8, database_name = $9,
			cache_cluster_id = $10, cache_endpoint = $11, cache_port = $12,
			bucket_name = $13, bucket_region = $14, key_id = $15, key_arn = $16,
			db_secret_ref = $17, cache_secret_ref = $18,
			plan = $19, max_storage_gb = $20, max_users = $21, max_api_calls_per_month = $22,
			estimated_monthly_cost = $23,
			compliant = $24, baa_signed_at = $25, data_retention_years = $26,
			provisioning_started_at = $27, provisioning_completed_at = $28,
			activated_at = $29, suspended_at = $30,
			updated_at = now()
		 WHERE id = $1`,
		t.ID, t.Name, t.Region, t.DeploymentStatus, t.Active,
		t.DatabaseInstanceID, t.DatabaseEndpoint, t.DatabasePort, t.DatabaseName,
		t.CacheClusterID, t.CacheEndpoint, t.CachePort,
		t.BucketName, t.BucketRegion, t.KeyID, t.KeyARN,
		t.DBSecretRef, t.CacheSecretRef,
		t.Plan, t.MaxStorageGB, t.MaxUsers, t.MaxAPICallsPerMonth,
		t.EstimatedMonthlyCost,
		t.Compliant, nullTime(t.BAASignedAt), t.DataRetentionYears,
		nullTime(t.ProvisioningStartedAt), nullTime(t.ProvisioningCompletedAt),
		nullTime(t.ActivatedAt), nullTime(t.SuspendedAt))
	if err != nil {
		return fmt.Errorf("update tenant %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update tenant %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}
