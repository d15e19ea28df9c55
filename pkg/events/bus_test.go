package events

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublishUnsubscribe(t *testing.T) {
	bus := NewBus()
	runID := uuid.New()

	sub := bus.Subscribe(runID)
	assert.Equal(t, 1, bus.ViewerCount(runID))

	bus.Publish(runID, Event{Type: EventTurnStart, Data: map[string]any{"turn_number": 1}})

	evt := <-sub.C
	assert.Equal(t, EventTurnStart, evt.Type)
	assert.Equal(t, 1, evt.Data["turn_number"])

	bus.Unsubscribe(sub)
	assert.Equal(t, 0, bus.ViewerCount(runID))
}

func TestPublish_NoSubscribers(t *testing.T) {
	bus := NewBus()

	// Must not panic or block.
	bus.Publish(uuid.New(), Event{Type: EventTurnComplete})
}

func TestPublish_IsolatedPerRun(t *testing.T) {
	bus := NewBus()
	runA := uuid.New()
	runB := uuid.New()

	subA := bus.Subscribe(runA)
	subB := bus.Subscribe(runB)

	bus.Publish(runA, Event{Type: EventTurnStart})

	assert.Len(t, subA.C, 1)
	assert.Len(t, subB.C, 0)

	bus.Unsubscribe(subA)
	bus.Unsubscribe(subB)
}

func TestPublish_OrderPreservedPerSubscriber(t *testing.T) {
	bus := NewBus()
	runID := uuid.New()
	sub := bus.Subscribe(runID)

	for i := 0; i < 10; i++ {
		bus.Publish(runID, Event{Type: EventTurnComplete, Data: map[string]any{"n": i}})
	}
	for i := 0; i < 10; i++ {
		evt := <-sub.C
		require.Equal(t, i, evt.Data["n"])
	}
}

func TestPublish_DropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	runID := uuid.New()
	sub := bus.Subscribe(runID)

	// Overfill the bounded queue; publisher must never block.
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(runID, Event{Type: EventPing, Data: map[string]any{"n": i}})
	}

	// Delivered events are the earliest ones, in order.
	assert.Len(t, sub.C, subscriberBuffer)
	first := <-sub.C
	assert.Equal(t, 0, first.Data["n"])
}

func TestUnsubscribe_ReapsRunKey(t *testing.T) {
	bus := NewBus()
	runID := uuid.New()

	subs := make([]*Subscription, 3)
	for i := range subs {
		subs[i] = bus.Subscribe(runID)
	}
	assert.Equal(t, 3, bus.ViewerCount(runID))

	for _, s := range subs {
		bus.Unsubscribe(s)
	}
	assert.Equal(t, 0, bus.ViewerCount(runID))

	bus.mu.RLock()
	_, exists := bus.subs[runID]
	bus.mu.RUnlock()
	assert.False(t, exists, "empty run key should be reaped")
}

func TestConcurrentSubscribers(t *testing.T) {
	bus := NewBus()
	runID := uuid.New()

	const n = 20
	subs := make([]*Subscription, n)
	for i := range subs {
		subs[i] = bus.Subscribe(runID)
	}

	bus.Publish(runID, Event{Type: EventDebateComplete})

	for i, sub := range subs {
		select {
		case evt := <-sub.C:
			assert.Equal(t, EventDebateComplete, evt.Type, fmt.Sprintf("subscriber %d", i))
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}
