package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventRefreshFailed)

	bus.Publish(&RefreshFailedEvent{
		BaseEvent: NewBase(EventRefreshFailed),
		Error:     errors.New("connection refused"),
	})

	select {
	case received := <-ch:
		failed, ok := received.(*RefreshFailedEvent)
		if !ok {
			t.Fatal("Expected RefreshFailedEvent")
		}
		if failed.Error == nil || failed.Error.Error() != "connection refused" {
			t.Errorf("Error = %v, want connection refused", failed.Error)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	failedCh := bus.Subscribe(EventRefreshFailed)
	cmdCh := bus.Subscribe(EventCommandDispatched)

	bus.Publish(&CommandDispatchedEvent{
		BaseEvent: NewBase(EventCommandDispatched),
		Command:   "Move",
	})

	select {
	case <-cmdCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("Command subscriber didn't receive event")
	}

	select {
	case <-failedCh:
		t.Error("RefreshFailed subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	all := bus.SubscribeAll()

	bus.Publish(&RefreshFailedEvent{BaseEvent: NewBase(EventRefreshFailed)})
	bus.Publish(&CommandDispatchedEvent{BaseEvent: NewBase(EventCommandDispatched)})

	for i := 0; i < 2; i++ {
		select {
		case <-all:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("SubscribeAll received %d events, want 2", i)
		}
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	_ = bus.Subscribe(EventRefreshFailed)

	bus.Publish(&RefreshFailedEvent{BaseEvent: NewBase(EventRefreshFailed)})
	bus.Publish(&RefreshFailedEvent{BaseEvent: NewBase(EventRefreshFailed)})

	if got := bus.GetDroppedEventCount(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
}

func TestEventBus_PublishAfterClose(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventRefreshFailed)
	bus.Close()

	// Must not panic on closed channels.
	bus.Publish(&RefreshFailedEvent{BaseEvent: NewBase(EventRefreshFailed)})

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}

	late := bus.Subscribe(EventRefreshFailed)
	if _, ok := <-late; ok {
		t.Error("subscription after Close should return a closed channel")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventCommandDispatched)
	bus.Unsubscribe(EventCommandDispatched, ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Publishing afterwards must not reach (or panic on) the removed channel.
	bus.Publish(&CommandDispatchedEvent{BaseEvent: NewBase(EventCommandDispatched)})
}

func TestEventBus_NilPublish(t *testing.T) {
	var bus *EventBus
	bus.Publish(&RefreshFailedEvent{BaseEvent: NewBase(EventRefreshFailed)})
}

func TestEventBus_UnsubscribeAllKeepsOthers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	first := bus.SubscribeAll()
	second := bus.SubscribeAll()
	bus.UnsubscribeAll(first)

	if _, ok := <-first; ok {
		t.Error("channel should be closed after UnsubscribeAll")
	}

	bus.Publish(&RefreshFailedEvent{BaseEvent: NewBase(EventRefreshFailed)})
	select {
	case <-second:
	case <-time.After(100 * time.Millisecond):
		t.Error("remaining SubscribeAll channel missed the event")
	}
}
