package events

import (
	"sync"
	"time"
)

// Event kinds published on the bus.
const (
	KindCounterChanged = "counter_changed"
	KindTransientError = "transient_error"
)

// Event is one notification delivered to subscribers. Counter changes carry
// the counter kind + key that moved; transient errors carry a user-facing
// message for the client to surface as a dismissible toast.
type Event struct {
	Kind      string    `json:"kind"`
	Counter   string    `json:"counter,omitempty"` // counter kind (likes, comments, follows)
	Key       string    `json:"key,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus is a small in-process pub/sub hub. Clients subscribe to specific
// counter keys (or to everything) instead of observing whole manager objects;
// publishes never block, slow subscribers just miss events.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	ch   chan Event
	keys map[string]struct{} // empty = all events
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Subscribe registers interest in events for the given counter keys. With no
// keys the subscriber receives every event. Returns the event channel and a
// cancel func that closes it.
func (b *Bus) Subscribe(keys ...string) (<-chan Event, func()) {
	sub := &subscription{
		ch:   make(chan Event, 16),
		keys: make(map[string]struct{}, len(keys)),
	}
	for _, k := range keys {
		sub.keys[k] = struct{}{}
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers an event to every matching subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if len(sub.keys) > 0 && ev.Key != "" {
			if _, ok := sub.keys[ev.Key]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default: // subscriber is behind, drop rather than stall a mutation
		}
	}
}

// CounterChanged publishes a counter-change notification.
func (b *Bus) CounterChanged(counterKind, key string) {
	b.Publish(Event{Kind: KindCounterChanged, Counter: counterKind, Key: key})
}

// TransientError publishes a user-visible transient failure.
func (b *Bus) TransientError(key, message string) {
	b.Publish(Event{Kind: KindTransientError, Key: key, Message: message})
}
