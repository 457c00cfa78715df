// Package relay forwards inbound chat messages to a persona's automation
// webhook and carries the returned reply text back to the dispatcher.
//
// Every failure mode of the webhook round trip (unreachable, timeout,
// non-2xx, unparseable body) is a soft failure: logged, reported as
// OutcomeFailure, never returned as an error. The engine choosing not to
// reply is not a failure at all.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/crewrelay/internal/registry"
)

// webhookTimeout bounds the external engine call. No retries.
const webhookTimeout = 30 * time.Second

// Message is a normalized inbound chat message, detached from the
// transport library so the dispatcher core stays testable.
type Message struct {
	ID          string
	Text        string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	ChannelID   string
	ChannelName string
	Timestamp   time.Time
	Mentions    []string // mentioned usernames
	MentionsBot bool     // message directly @-mentions the receiving persona
}

// Payload is the JSON body POSTed to the persona's webhook. Field names
// are a wire contract with the automation workflows; do not rename.
type Payload struct {
	Content      string   `json:"content"`      // original text, preserved for audit
	CleanContent string   `json:"cleanContent"` // addressing stripped
	Author       string   `json:"author"`
	AuthorID     string   `json:"authorId"`
	Channel      string   `json:"channel"`
	ChannelID    string   `json:"channelId"`
	MessageID    string   `json:"messageId"`
	Timestamp    int64    `json:"timestamp"` // milliseconds since epoch
	Agent        string   `json:"agent"`
	Mentions     []string `json:"mentions"`
}

// Outcome classifies a relay round trip.
type Outcome int

const (
	// OutcomeReply means the engine returned reply text to send.
	OutcomeReply Outcome = iota
	// OutcomeNoReply means the call succeeded but the engine chose not to answer.
	OutcomeNoReply
	// OutcomeFailure means the call soft-failed; nothing is sent.
	OutcomeFailure
)

// Result is the dispatcher-facing outcome of a relay call.
type Result struct {
	Outcome Outcome
	Reply   string
}

// engineResponse is the expected webhook response shape. A missing reply
// field means "nothing to send", not an error.
type engineResponse struct {
	Reply string `json:"reply"`
}

// Client POSTs relay payloads to persona webhooks.
type Client struct {
	http   *http.Client
	tracer trace.Tracer
}

// NewClient creates a relay client with the fixed webhook timeout.
func NewClient() *Client {
	return &Client{
		http:   &http.Client{Timeout: webhookTimeout},
		tracer: otel.Tracer("crewrelay/relay"),
	}
}

// BuildPayload assembles the webhook payload for a message and persona.
func BuildPayload(p *registry.Persona, msg Message) Payload {
	return Payload{
		Content:      msg.Text,
		CleanContent: p.StripAddressing(msg.Text),
		Author:       msg.AuthorName,
		AuthorID:     msg.AuthorID,
		Channel:      msg.ChannelName,
		ChannelID:    msg.ChannelID,
		MessageID:    msg.ID,
		Timestamp:    msg.Timestamp.UnixMilli(),
		Agent:        p.Name,
		Mentions:     msg.Mentions,
	}
}

// Forward sends the message to the persona's webhook and classifies the
// response. It never returns an error: all failures degrade to
// Result{Outcome: OutcomeFailure}.
func (c *Client) Forward(ctx context.Context, p *registry.Persona, msg Message) Result {
	ctx, span := c.tracer.Start(ctx, "relay.forward", trace.WithAttributes(
		attribute.String("persona", p.Key),
		attribute.String("channel", msg.ChannelName),
	))
	defer span.End()

	fail := func(reason string, err error) Result {
		slog.Warn("webhook relay failed",
			"persona", p.Key,
			"reason", reason,
			"error", err,
		)
		span.SetStatus(codes.Error, reason)
		span.SetAttributes(attribute.String("relay.outcome", "failure"))
		return Result{Outcome: OutcomeFailure}
	}

	if p.WebhookURL == "" {
		return fail("no webhook configured", nil)
	}

	payload := BuildPayload(p, msg)
	body, err := json.Marshal(payload)
	if err != nil {
		return fail("encode payload", err)
	}

	slog.Debug("forwarding to webhook",
		"persona", p.Key,
		"original", payload.Content,
		"clean", payload.CleanContent,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fail("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fail("post", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fail(fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var engine engineResponse
	if err := json.NewDecoder(resp.Body).Decode(&engine); err != nil {
		return fail("decode response", err)
	}

	if engine.Reply == "" {
		span.SetAttributes(attribute.String("relay.outcome", "no_reply"))
		return Result{Outcome: OutcomeNoReply}
	}
	span.SetAttributes(attribute.String("relay.outcome", "reply"))
	return Result{Outcome: OutcomeReply, Reply: engine.Reply}
}
