// Package events is the in-process publish/subscribe bus that observers (the
// terminal UI, the session writer, tests) use to follow the local model.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kinofiles/kinosync/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// Store changes
	EventFilesChanged     EventType = "files_changed"
	EventProgressChanged  EventType = "progress_changed"
	EventNodesChanged     EventType = "nodes_changed"
	EventTransportChanged EventType = "transport_changed"

	// Engine outcomes
	EventRefreshFailed     EventType = "refresh_failed"
	EventCommandDispatched EventType = "command_dispatched"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// NewBase stamps a BaseEvent with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// RefreshFailedEvent is published when a pull refresh fails. The listing is
// left untouched.
type RefreshFailedEvent struct {
	BaseEvent
	Error error
}

// CommandDispatchedEvent is published after a command was written to the
// transport handle.
type CommandDispatchedEvent struct {
	BaseEvent
	Command string // "CreateDir" or "Move"
	Source  string
	Target  string
}

// EventBus fans published events out to buffered subscriber channels.
type EventBus struct {
	mu            sync.RWMutex
	subscribers   map[EventType][]chan Event
	all           []chan Event
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a buffered channel that receives events of one type.
// After Close it returns an already-closed channel.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch, ok := eb.open()
	if ok {
		eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	}
	return ch
}

// SubscribeAll returns a channel that receives every published event.
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch, ok := eb.open()
	if ok {
		eb.all = append(eb.all, ch)
	}
	return ch
}

// open allocates a subscriber channel. Caller holds mu.
func (eb *EventBus) open() (chan Event, bool) {
	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch, false
	}
	return make(chan Event, eb.bufferSize), true
}

// Publish hands event to each matching subscriber without blocking. A
// subscriber whose buffer is full misses the event and the drop is counted.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	eb.offer(eb.subscribers[event.Type()], event)
	eb.offer(eb.all, event)
}

func (eb *EventBus) offer(chans []chan Event, event Event) {
	for _, ch := range chans {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, chans := range eb.subscribers {
		for _, ch := range chans {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// Unsubscribe detaches and closes a channel returned by Subscribe.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if !eb.closed {
		eb.subscribers[eventType] = detach(eb.subscribers[eventType], ch)
	}
}

// UnsubscribeAll detaches and closes a channel returned by SubscribeAll.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if !eb.closed {
		eb.all = detach(eb.all, ch)
	}
}

// detach removes ch from chans, closing it. Order is not preserved.
func detach(chans []chan Event, ch <-chan Event) []chan Event {
	for i, c := range chans {
		if c == ch {
			close(c)
			last := len(chans) - 1
			chans[i] = chans[last]
			return chans[:last]
		}
	}
	return chans
}

// GetDroppedEventCount reports how many deliveries were skipped because a
// subscriber's buffer was full.
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
