package events_test

import (
	"testing"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/events"
)

func recv(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("No event received")
		return events.Event{}
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.CounterChanged("likes", "alice-eiffel")

	ev := recv(t, ch)
	if ev.Kind != events.KindCounterChanged {
		t.Errorf("Kind: got %s, want %s", ev.Kind, events.KindCounterChanged)
	}
	if ev.Counter != "likes" || ev.Key != "alice-eiffel" {
		t.Errorf("Event: %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestSubscribeFiltersByKey(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe("alice-eiffel")
	defer cancel()

	bus.CounterChanged("likes", "bob-big-ben")
	bus.CounterChanged("likes", "alice-eiffel")

	ev := recv(t, ch)
	if ev.Key != "alice-eiffel" {
		t.Errorf("Filtered subscriber got key %q", ev.Key)
	}

	select {
	case extra := <-ch:
		t.Errorf("Unexpected second event: %+v", extra)
	default:
	}
}

func TestTransientError(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe("alice-eiffel")
	defer cancel()

	bus.TransientError("alice-eiffel", "Couldn't update like. Please try again.")

	ev := recv(t, ch)
	if ev.Kind != events.KindTransientError {
		t.Errorf("Kind: got %s, want %s", ev.Kind, events.KindTransientError)
	}
	if ev.Message == "" {
		t.Error("Message missing")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("Channel still open after cancel")
	}

	// Publishing after cancel must not panic
	bus.CounterChanged("likes", "alice-eiffel")
}

// TestSlowSubscriberDoesNotBlock verifies a full subscriber buffer drops
// events instead of stalling the publisher.
func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := events.NewBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.CounterChanged("likes", "alice-eiffel")
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
