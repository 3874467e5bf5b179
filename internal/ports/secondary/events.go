package secondary

import (
	"context"
	"time"
)

// EventType names a task lifecycle event.
type EventType string

// Event types
const (
	EventTaskCreated   EventType = "created"
	EventTaskAssigned  EventType = "assigned"
	EventTaskStarted   EventType = "started"
	EventTaskCompleted EventType = "completed"
	EventTaskCancelled EventType = "cancelled"
	EventTaskEscalated EventType = "escalated"
)

// TopicPrefix prefixes every event topic.
const TopicPrefix = "tasks.task."

// Event is a lifecycle event envelope.
type Event struct {
	Type       EventType      `json:"-"`
	EventType  string         `json:"eventType"` // "task.<type>"
	TaskID     string         `json:"taskId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEvent builds an envelope for a task event.
func NewEvent(t EventType, taskID string, at time.Time, data map[string]any) Event {
	return Event{
		Type:       t,
		EventType:  "task." + string(t),
		TaskID:     taskID,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

// Topic returns the bus topic for the event, e.g. "tasks.task.created".
func (e Event) Topic() string {
	return TopicPrefix + string(e.Type)
}

// EventPublisher emits lifecycle events. Delivery is best effort: callers log
// failures and never undo committed state because of them.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Clock is the source of current time.
type Clock interface {
	Now() time.Time
}
