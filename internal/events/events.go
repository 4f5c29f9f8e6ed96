// Package events fans task status updates out to connected SSE clients.
// Every task mutation publishes a full snapshot; clients reconcile by task
// ID rather than by diffing, so dropped frames are harmless.
package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/projetosombra/sombra-api/internal/domain"
)

// EventType distinguishes the frames pushed over a stream.
type EventType string

const (
	// EventTypeConnected is the hello frame sent once per subscription.
	EventTypeConnected EventType = "connected"

	// EventTypeTaskUpdate carries a full task snapshot.
	EventTypeTaskUpdate EventType = "task_update"
)

// Event is a single frame pushed to subscribers.
type Event struct {
	Type EventType       `json:"type"`
	Task json.RawMessage `json:"task,omitempty"`
}

// NewTaskUpdateEvent builds an update frame from a task snapshot.
func NewTaskUpdateEvent(task *domain.Task) (Event, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: EventTypeTaskUpdate, Task: payload}, nil
}

// Subscription is a live stream of events for one client. The channel is
// closed when the subscription is cancelled.
type Subscription struct {
	ID     uuid.UUID
	Events <-chan Event
}

// Publisher is the producer-side interface services use to broadcast task
// updates. Publishing never blocks the caller.
type Publisher interface {
	PublishTask(ctx context.Context, task *domain.Task)
}

// BackfillFunc supplies the in-flight tasks replayed to a newly connected
// subscriber, oldest first.
type BackfillFunc func(ctx context.Context) ([]*domain.Task, error)
