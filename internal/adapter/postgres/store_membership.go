package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
)

func (s *Store) AddMembership(ctx context.Context, m *tenant.Membership) error {
	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenant_memberships (tenant_id, user_id, role, active, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		m.TenantID, m.UserID, m.Role, m.Active, metadata,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("add membership %s/%s: %w", m.TenantID, m.UserID, err)
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, tenantID, userID string) (*tenant.Membership, error) {
	var m tenant.Membership
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, user_id, role, active, metadata, created_at, last_access_at
		 FROM tenant_memberships WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	).Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.Active, &m.Metadata, &m.CreatedAt, &m.LastAccessAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get membership %s/%s: %w", tenantID, userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get membership %s/%s: %w", tenantID, userID, err)
	}
	return &m, nil
}

// TouchMembershipAccess records that the user just accessed the tenant.
// Missing rows are not an error; the access stamp is best-effort.
func (s *Store) TouchMembershipAccess(ctx context.Context, tenantID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE tenant_memberships SET last_access_at = now()
		 WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID)
	if err != nil {
		return fmt.Errorf("touch membership %s/%s: %w", tenantID, userID, err)
	}
	return nil
}
