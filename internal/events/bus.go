package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Delivery is asynchronous and
// in-order per event type; subscribers must not block.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Close shuts down the dispatcher and its subscriber queues.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}

// Publish publishes an event to all subscribers of its type.
// Usage: bus.Publish(StreamStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type, so fan out through a
	// type switch over the fixed topic set.
	switch e := ev.(type) {
	case StreamStartedEvent:
		event.Publish(b.dispatcher, e)
	case StreamStoppedEvent:
		event.Publish(b.dispatcher, e)
	case BandwidthUpdateEvent:
		event.Publish(b.dispatcher, e)
	case SettingsChangedEvent:
		event.Publish(b.dispatcher, e)
	case MetricsUpdateEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type selects the topic. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e StreamStartedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StreamStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BandwidthUpdateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SettingsChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MetricsUpdateEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
