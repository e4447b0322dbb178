package tenant

import (
	"encoding/json"
	"time"
)

// EventKind classifies audit events on a tenant.
type EventKind string

const (
	EventCreated               EventKind = "created"
	EventUpdated               EventKind = "updated"
	EventProvisioningStarted   EventKind = "provisioning_started"
	EventProvisioningCompleted EventKind = "provisioning_completed"
	EventInfrastructureFailed  EventKind = "infrastructure_failed"
	EventResourceCreated       EventKind = "resource_created"
	EventSuspended             EventKind = "suspended"
	EventReactivated           EventKind = "reactivated"
	EventTerminated            EventKind = "terminated"
	EventDeprovisionRequested  EventKind = "deprovision_requested"
	EventUserAdded             EventKind = "user_added"
	EventUserRemoved           EventKind = "user_removed"
)

// Event is one append-only audit record. Events are never updated or
// deleted; the multi-year retention requirement depends on that.
type Event struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Kind        EventKind       `json:"kind"`
	Actor       string          `json:"actor,omitempty"` // user ID or "" for system
	Severity    string          `json:"severity"`        // "info" or "error"
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewEvent builds an info-severity event with JSON-encoded metadata.
// Metadata that fails to encode is dropped rather than blocking the audit
// write.
func NewEvent(tenantID string, kind EventKind, metadata map[string]any) *Event {
	ev := &Event{
		TenantID: tenantID,
		Kind:     kind,
		Severity: "info",
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			ev.Metadata = raw
		}
	}
	return ev
}
