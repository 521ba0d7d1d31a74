package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(ProcessExecutedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the static type, so unwrap the interface.
	switch e := ev.(type) {
	case ProcessRegisteredEvent:
		event.Publish(b.dispatcher, e)
	case ProcessUnregisteredEvent:
		event.Publish(b.dispatcher, e)
	case ProcessStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessExecutedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessRetryEvent:
		event.Publish(b.dispatcher, e)
	case ProcessOptimizedEvent:
		event.Publish(b.dispatcher, e)
	case JobsReloadedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessMetricsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e ProcessStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ProcessRegisteredEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessUnregisteredEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessExecutedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessRetryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessOptimizedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(JobsReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
