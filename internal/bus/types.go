package bus

// Event represents a server-side event broadcast to WebSocket clients.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// Event names pushed over the control API event feed.
const (
	EventMessageTriggered = "message.triggered" // a persona matched an inbound message
	EventRelayCompleted   = "relay.completed"   // webhook round trip finished (with or without reply)
	EventRelayFailed      = "relay.failed"      // webhook call soft-failed
	EventReplySent        = "reply.sent"        // dispatcher posted a reply to the triggering message
	EventMessageSent      = "message.sent"      // control API posted a message through a persona
	EventShutdown         = "shutdown"
)

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
// Used by the dispatcher and control server to decouple from the concrete bus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}
