// Package events provides the in-process live event bus: pub/sub keyed
// by run id with bounded per-subscriber queues. State is process-local
// and non-durable; late subscribers start from the next event.
package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Event names delivered over the live stream.
const (
	EventTurnStart      = "turn_start"
	EventTurnComplete   = "turn_complete"
	EventCooldownStart  = "cooldown_start"
	EventDebateComplete = "debate_complete"
	EventNewComment     = "new_comment"
	EventTopicClosed    = "topic_closed"
	EventViewerCount    = "viewer_count"
	EventPing           = "ping"
)

// subscriberBuffer bounds each subscriber's queue. When full, publishes
// to that subscriber are dropped rather than blocking the orchestrator.
const subscriberBuffer = 64

// Event is one lifecycle notification for a run.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Subscription is one subscriber's view of a run's event stream.
type Subscription struct {
	C     <-chan Event
	runID uuid.UUID
	ch    chan Event
}

// Bus is the process-wide live event bus.
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID][]*Subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uuid.UUID][]*Subscription)}
}

// Subscribe registers a new subscriber for a run and returns its queue.
func (b *Bus) Subscribe(runID uuid.UUID) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{C: ch, runID: runID, ch: ch}

	b.mu.Lock()
	b.subs[runID] = append(b.subs[runID], sub)
	total := len(b.subs[runID])
	b.mu.Unlock()

	slog.Info("Live subscriber added", "run_id", runID, "total", total)
	return sub
}

// Unsubscribe removes a subscriber and reaps the run key when it was the
// last one. Safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	subs := b.subs[sub.runID]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.runID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.runID]) == 0 {
		delete(b.subs, sub.runID)
	}
	b.mu.Unlock()

	slog.Info("Live subscriber removed", "run_id", sub.runID)
}

// Publish offers the event to every subscriber of the run without
// blocking. A full subscriber queue drops the event for that subscriber.
func (b *Bus) Publish(runID uuid.UUID, event Event) {
	b.mu.RLock()
	subs := b.subs[runID]
	// Copy so a concurrent unsubscribe can't shift entries under us.
	snapshot := make([]*Subscription, len(subs))
	copy(snapshot, subs)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		select {
		case sub.ch <- event:
		default:
			slog.Warn("Subscriber queue full, dropping event",
				"run_id", runID, "event", event.Type)
		}
	}
}

// ViewerCount returns the current subscriber count for a run.
func (b *Bus) ViewerCount(runID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[runID])
}
