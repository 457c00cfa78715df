// Package bus provides the in-process event fan-out connecting the
// dispatchers to the control API's WebSocket feed.
package bus

import "sync"

// EventBus is an in-memory broadcaster. Handlers are invoked synchronously
// on the broadcaster's goroutine, so they must not block.
type EventBus struct {
	mu   sync.RWMutex
	subs map[string]EventHandler
}

// New creates an empty event bus.
func New() *EventBus {
	return &EventBus{subs: make(map[string]EventHandler)}
}

// Subscribe registers a handler under the given subscriber ID.
// Re-subscribing with the same ID replaces the previous handler.
func (b *EventBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[id] = handler
}

// Unsubscribe removes a subscriber. Unknown IDs are a no-op.
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Broadcast delivers the event to every current subscriber.
func (b *EventBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
