package postgres

import (
	"context"
	"fmt"

	"github.com/matehq/mate/internal/domain/tenant"
)

// AppendEvent inserts one audit event. There is deliberately no update or
// delete path for tenant_events.
func (s *Store) AppendEvent(ctx context.Context, ev *tenant.Event) error {
	metadata := ev.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenant_events (tenant_id, kind, actor, severity, description, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		ev.TenantID, ev.Kind, ev.Actor, ev.Severity, ev.Description, metadata,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event %s/%s: %w", ev.TenantID, ev.Kind, err)
	}
	return nil
}

// ListEvents returns the tenant's most recent events, newest first.
func (s *Store) ListEvents(ctx context.Context, tenantID string, limit int) ([]tenant.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, kind, actor, severity, description, metadata, created_at
		 FROM tenant_events WHERE tenant_id = $1
		 ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events %s: %w", tenantID, err)
	}
	defer rows.Close()

	var events []tenant.Event
	for rows.Next() {
		var ev tenant.Event
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.Kind, &ev.Actor, &ev.Severity,
			&ev.Description, &ev.Metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
