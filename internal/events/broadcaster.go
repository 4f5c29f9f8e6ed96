package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
)

// subscriberBuffer bounds the per-client queue. A client that cannot drain
// this many frames is dropping updates it would reconcile away anyway.
const subscriberBuffer = 32

// Broadcaster is an in-process fan-out of task updates to SSE subscribers.
// It covers a single-instance deployment; the subscriber map lives in
// process memory.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]chan Event
	backfill    BackfillFunc
	logger      *slog.Logger
}

// NewBroadcaster creates a Broadcaster. backfill may be nil, in which case
// new subscribers only receive the hello frame. If logger is nil, the
// default logger is used.
func NewBroadcaster(backfill BackfillFunc, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[uuid.UUID]chan Event),
		backfill:    backfill,
		logger:      logger.With(slog.String("component", "broadcaster")),
	}
}

// Ensure Broadcaster implements Publisher
var _ Publisher = (*Broadcaster)(nil)

// Subscribe registers a new client and queues its hello frame plus a
// snapshot of every in-flight task, oldest first, so a client connecting
// mid-pipeline sees current state without polling.
func (b *Broadcaster) Subscribe(ctx context.Context) *Subscription {
	log := logger.FromContextOrDefault(ctx, b.logger)

	ch := make(chan Event, subscriberBuffer)
	id := uuid.New()

	b.mu.Lock()
	b.subscribers[id] = ch
	count := len(b.subscribers)
	b.mu.Unlock()

	log.Info("sse client subscribed",
		slog.String("subscriber_id", id.String()),
		slog.Int("subscriber_count", count))

	ch <- Event{Type: EventTypeConnected}

	if b.backfill != nil {
		tasks, err := b.backfill(ctx)
		if err != nil {
			log.Error("failed to backfill active tasks",
				slog.String("subscriber_id", id.String()),
				slog.String("error", err.Error()))
		} else {
			for _, task := range tasks {
				event, err := NewTaskUpdateEvent(task)
				if err != nil {
					log.Error("failed to encode backfill task",
						slog.String("task_id", task.ID.String()),
						slog.String("error", err.Error()))
					continue
				}
				b.offer(ch, event)
			}
		}
	}

	return &Subscription{ID: id, Events: ch}
}

// Unsubscribe removes a client and closes its channel. It is safe to call
// more than once for the same subscription.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	ch, ok := b.subscribers[sub.ID]
	if ok {
		delete(b.subscribers, sub.ID)
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	if !ok {
		return
	}
	close(ch)

	b.logger.Info("sse client unsubscribed",
		slog.String("subscriber_id", sub.ID.String()),
		slog.Int("subscriber_count", count))
}

// PublishTask pushes a task snapshot to every subscriber. Slow subscribers
// have the frame dropped rather than blocking the pipeline.
func (b *Broadcaster) PublishTask(ctx context.Context, task *domain.Task) {
	log := logger.FromContextOrDefault(ctx, b.logger)

	event, err := NewTaskUpdateEvent(task)
	if err != nil {
		log.Error("failed to encode task update",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return
	}

	// Sends stay under the lock so Unsubscribe cannot close a channel
	// mid-send; offers never block, so the critical section is short.
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		if !b.offer(ch, event) {
			log.Warn("dropped task update for slow subscriber",
				slog.String("task_id", task.ID.String()))
		}
	}
}

// SubscriberCount reports the number of connected clients.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// offer attempts a non-blocking send, returning false when the subscriber's
// buffer is full.
func (b *Broadcaster) offer(ch chan Event, event Event) bool {
	select {
	case ch <- event:
		return true
	default:
		return false
	}
}
