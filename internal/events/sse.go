package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels.
// Huma's SSE handlers select over a channel, so slow clients drop events
// instead of blocking publishers.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeProcessEvents forwards every process lifecycle event to ch.
// The returned function removes all the subscriptions.
func SubscribeProcessEvents(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[ProcessRegisteredEvent](bus, ch),
		SubscribeToChannel[ProcessUnregisteredEvent](bus, ch),
		SubscribeToChannel[ProcessStateChangedEvent](bus, ch),
		SubscribeToChannel[ProcessExecutedEvent](bus, ch),
		SubscribeToChannel[ProcessRetryEvent](bus, ch),
		SubscribeToChannel[ProcessOptimizedEvent](bus, ch),
		SubscribeToChannel[JobsReloadedEvent](bus, ch),
		SubscribeToChannel[ProcessMetricsEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
