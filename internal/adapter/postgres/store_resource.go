package postgres

import (
	"context"
	"fmt"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
)

func (s *Store) CreateResource(ctx context.Context, r *tenant.Resource) error {
	status := r.Status
	if status == "" {
		status = tenant.ResourceCreating
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenant_resources (tenant_id, kind, external_id, locator, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, status, created_at, updated_at`,
		r.TenantID, r.Kind, r.ExternalID, r.Locator, status,
	).Scan(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create resource %s/%s: %w", r.TenantID, r.Kind, err)
	}
	return nil
}

// UpdateResourceStatus moves the tenant's resource of the given kind to
// status. A tenant has at most one live resource per kind.
func (s *Store) UpdateResourceStatus(ctx context.Context, tenantID string, kind tenant.ResourceKind, status tenant.ResourceStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenant_resources SET status = $3, updated_at = now()
		 WHERE tenant_id = $1 AND kind = $2`,
		tenantID, kind, status)
	if err != nil {
		return fmt.Errorf("update resource %s/%s: %w", tenantID, kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update resource %s/%s: %w", tenantID, kind, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) ListResources(ctx context.Context, tenantID string) ([]tenant.Resource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, kind, external_id, locator, status, created_at, updated_at
		 FROM tenant_resources WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list resources %s: %w", tenantID, err)
	}
	defer rows.Close()

	var resources []tenant.Resource
	for rows.Next() {
		var r tenant.Resource
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Kind, &r.ExternalID, &r.Locator,
			&r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}
