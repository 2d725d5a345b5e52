package manufacturer

import (
	"partscatalog/internal/core/id"
	"partscatalog/internal/domain"
)

// AggregateType names manufacturer rows in the outbox and the audit trail.
const AggregateType = "manufacturer"

// Event types published on every successful write.
const (
	EventCreated       = "manufacturer.created"
	EventUpdated       = "manufacturer.updated"
	EventStatusChanged = "manufacturer.status_changed"
	EventVerified      = "manufacturer.verified"
	EventDeleted       = "manufacturer.deleted"
)

// Audit actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

func newEvent(eventType string, publicID id.ID, payload map[string]any) domain.Event {
	return domain.Event{
		AggregateType: AggregateType,
		AggregateID:   publicID,
		EventType:     eventType,
		Payload:       payload,
	}
}
