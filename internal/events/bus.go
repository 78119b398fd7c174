package events

import (
	"github.com/kelindar/event"
)

// Bus wraps the kelindar/event dispatcher for in-process event broadcasting.
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
// Usage: bus.Publish(SupervisorStateChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event is generic over the concrete type, so dispatch
	// through a type switch.
	switch e := ev.(type) {
	case SupervisorStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case ServiceStatusChangedEvent:
		event.Publish(b.dispatcher, e)
	case BackendLogEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case UpdateStateChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e SupervisorStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SupervisorStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ServiceStatusChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BackendLogEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UpdateStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// No-op for unrecognized handler types.
		return func() {}
	}
}

// SubscribeToChannel bridges kelindar/event callback subscriptions to
// channels. Needed for SSE integration where Huma expects a channel-based
// select loop.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if the channel is full.
		}
	})
}
