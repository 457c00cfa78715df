package discord

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/crewrelay/internal/bus"
	"github.com/nextlevelbuilder/crewrelay/internal/registry"
	"github.com/nextlevelbuilder/crewrelay/internal/relay"
)

// failureReaction marks the triggering message when sending a reply blows up.
const failureReaction = "❌"

// Forwarder is the slice of the relay client the dispatcher needs.
type Forwarder interface {
	Forward(ctx context.Context, p *registry.Persona, msg relay.Message) relay.Result
}

// Dispatcher routes inbound messages for one persona: match, relay to the
// webhook, send the reply back. Stateless per event; every persona's
// dispatcher evaluates every message independently, so several personas
// may answer the same message (intentional fan-out).
type Dispatcher struct {
	persona *registry.Persona
	conn    registry.Conn
	relay   Forwarder
	events  bus.EventPublisher
}

// NewDispatcher creates a dispatcher for one persona connection.
func NewDispatcher(p *registry.Persona, conn registry.Conn, fwd Forwarder, events bus.EventPublisher) *Dispatcher {
	return &Dispatcher{persona: p, conn: conn, relay: fwd, events: events}
}

// Handle processes one inbound message. It never panics out: anything
// unexpected is logged and surfaced as a failure reaction so the
// connection's event loop stays alive.
func (d *Dispatcher) Handle(ctx context.Context, msg relay.Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("message handler panicked",
				"persona", d.persona.Key,
				"message_id", msg.ID,
				"panic", r,
			)
			if err := d.conn.React(msg.ChannelID, msg.ID, failureReaction); err != nil {
				slog.Debug("failure reaction failed", "persona", d.persona.Key, "error", err)
			}
		}
	}()

	if msg.AuthorIsBot {
		return
	}
	if !d.persona.Matches(msg.Text, msg.ChannelName, msg.MentionsBot) {
		return
	}

	slog.Info("persona triggered",
		"persona", d.persona.Key,
		"channel", msg.ChannelName,
		"author", msg.AuthorName,
	)
	d.broadcast(bus.EventMessageTriggered, map[string]string{
		"persona":    d.persona.Key,
		"channel":    msg.ChannelName,
		"message_id": msg.ID,
	})

	// Cosmetic typing indicator; failures are ignored.
	if err := d.conn.Typing(msg.ChannelID); err != nil {
		slog.Debug("typing indicator failed", "persona", d.persona.Key, "error", err)
	}

	res := d.relay.Forward(ctx, d.persona, msg)
	if res.Outcome == relay.OutcomeFailure {
		// Soft failure, already logged by the relay. No user-visible action.
		d.broadcast(bus.EventRelayFailed, map[string]string{
			"persona":    d.persona.Key,
			"message_id": msg.ID,
		})
		return
	}

	d.broadcast(bus.EventRelayCompleted, map[string]string{
		"persona":    d.persona.Key,
		"message_id": msg.ID,
		"has_reply":  boolStr(res.Outcome == relay.OutcomeReply),
	})

	if res.Outcome != relay.OutcomeReply {
		return
	}

	if _, err := d.conn.Reply(msg.ChannelID, msg.ID, res.Reply); err != nil {
		slog.Error("failed to send reply",
			"persona", d.persona.Key,
			"channel_id", msg.ChannelID,
			"error", err,
		)
		if rerr := d.conn.React(msg.ChannelID, msg.ID, failureReaction); rerr != nil {
			slog.Debug("failure reaction failed", "persona", d.persona.Key, "error", rerr)
		}
		return
	}

	d.broadcast(bus.EventReplySent, map[string]string{
		"persona":    d.persona.Key,
		"message_id": msg.ID,
	})
}

func (d *Dispatcher) broadcast(name string, payload map[string]string) {
	if d.events == nil {
		return
	}
	d.events.Broadcast(bus.Event{Name: name, Payload: payload})
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
