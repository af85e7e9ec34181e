package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSiteCreated       EventType = "site.created"
	EventLocationCreated   EventType = "location.created"
	EventLocationDeleted   EventType = "location.deleted"
	EventPriceSet          EventType = "price.set"
	EventTaskCreated       EventType = "task.created"
	EventAssignmentChanged EventType = "assignment.changed"
)

// Event records a committed change for downstream consumers.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	EntityID   int64          `json:"entity_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func NewEvent(t EventType, entityID int64, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
