package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetosombra/sombra-api/internal/domain"
)

func newTask(t *testing.T, clientName string) *domain.Task {
	t.Helper()
	sw, err := domain.NewSaleswoman("Maria", "")
	require.NoError(t, err)
	task, err := domain.NewTask(clientName, sw.ID, "/uploads/a.mp3")
	require.NoError(t, err)
	return task
}

func drain(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		select {
		case ev := <-sub.Events:
			out = append(out, ev)
		default:
			t.Fatalf("expected %d buffered events, got %d", n, i)
		}
	}
	return out
}

func TestSubscribe_SendsHelloFrame(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil, nil)
	sub := b.Subscribe(context.Background())
	defer b.Unsubscribe(sub)

	events := drain(t, sub, 1)
	assert.Equal(t, EventTypeConnected, events[0].Type)
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestSubscribe_BackfillsActiveTasksOldestFirst(t *testing.T) {
	t.Parallel()

	first := newTask(t, "Cliente A")
	second := newTask(t, "Cliente B")

	backfill := func(ctx context.Context) ([]*domain.Task, error) {
		return []*domain.Task{first, second}, nil
	}

	b := NewBroadcaster(backfill, nil)
	sub := b.Subscribe(context.Background())
	defer b.Unsubscribe(sub)

	events := drain(t, sub, 3)
	assert.Equal(t, EventTypeConnected, events[0].Type)

	var got domain.Task
	require.NoError(t, json.Unmarshal(events[1].Task, &got))
	assert.Equal(t, first.ID, got.ID)

	require.NoError(t, json.Unmarshal(events[2].Task, &got))
	assert.Equal(t, second.ID, got.ID)
}

func TestPublishTask_ReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil, nil)
	subA := b.Subscribe(context.Background())
	subB := b.Subscribe(context.Background())
	defer b.Unsubscribe(subA)
	defer b.Unsubscribe(subB)

	drain(t, subA, 1)
	drain(t, subB, 1)

	task := newTask(t, "Cliente C")
	b.PublishTask(context.Background(), task)

	for _, sub := range []*Subscription{subA, subB} {
		events := drain(t, sub, 1)
		assert.Equal(t, EventTypeTaskUpdate, events[0].Type)

		var got domain.Task
		require.NoError(t, json.Unmarshal(events[0].Task, &got))
		assert.Equal(t, task.ID, got.ID)
	}
}

func TestPublishTask_DropsFramesForSlowSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil, nil)
	sub := b.Subscribe(context.Background())
	defer b.Unsubscribe(sub)

	task := newTask(t, "Cliente D")
	for i := 0; i < subscriberBuffer+10; i++ {
		b.PublishTask(context.Background(), task)
	}

	// Buffer holds the hello frame plus whatever updates fit; the excess
	// was dropped without blocking PublishTask.
	assert.Len(t, sub.Events, subscriberBuffer)
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil, nil)
	sub := b.Subscribe(context.Background())

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	assert.NotPanics(t, func() { b.Unsubscribe(sub) })

	// Publishing after unsubscribe must not panic on the closed channel.
	assert.NotPanics(t, func() {
		b.PublishTask(context.Background(), newTask(t, "Cliente E"))
	})
}
