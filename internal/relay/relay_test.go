package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nextlevelbuilder/crewrelay/internal/config"
	"github.com/nextlevelbuilder/crewrelay/internal/registry"
)

func testPersona(t *testing.T, webhookURL string) *registry.Persona {
	t.Helper()
	cfg := config.Default()
	spec := cfg.Agents["olivia"]
	spec.WebhookURL = webhookURL
	cfg.Agents["olivia"] = spec

	r, err := registry.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := r.Get("olivia")
	return p
}

func testMessage() Message {
	return Message{
		ID:          "msg-1",
		Text:        "@OLIVIA-COO what's the status",
		AuthorID:    "u-1",
		AuthorName:  "alice",
		ChannelID:   "ch-1",
		ChannelName: "general",
		Timestamp:   time.UnixMilli(1700000000000),
		Mentions:    []string{"OLIVIA-COO"},
		MentionsBot: true,
	}
}

func TestForwardReturnsReply(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"reply":"all green"}`))
	}))
	defer srv.Close()

	c := NewClient()
	res := c.Forward(context.Background(), testPersona(t, srv.URL), testMessage())

	if res.Outcome != OutcomeReply {
		t.Fatalf("Outcome = %v, want OutcomeReply", res.Outcome)
	}
	if res.Reply != "all green" {
		t.Errorf("Reply = %q", res.Reply)
	}

	// Wire contract: original preserved, addressing stripped.
	if got.Content != "@OLIVIA-COO what's the status" {
		t.Errorf("content = %q", got.Content)
	}
	if got.CleanContent != "what's the status" {
		t.Errorf("cleanContent = %q", got.CleanContent)
	}
	if got.Agent != "OLIVIA-COO" || got.Author != "alice" || got.AuthorID != "u-1" {
		t.Errorf("identity fields wrong: %+v", got)
	}
	if got.Timestamp != 1700000000000 {
		t.Errorf("timestamp = %d", got.Timestamp)
	}
	if got.MessageID != "msg-1" || got.ChannelID != "ch-1" || got.Channel != "general" {
		t.Errorf("message fields wrong: %+v", got)
	}
}

func TestForwardNoReplyField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"handled":true}`))
	}))
	defer srv.Close()

	res := NewClient().Forward(context.Background(), testPersona(t, srv.URL), testMessage())
	if res.Outcome != OutcomeNoReply {
		t.Errorf("Outcome = %v, want OutcomeNoReply", res.Outcome)
	}
	if res.Reply != "" {
		t.Errorf("Reply = %q, want empty", res.Reply)
	}
}

func TestForwardNon2xxIsSoftFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := NewClient().Forward(context.Background(), testPersona(t, srv.URL), testMessage())
	if res.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %v, want OutcomeFailure", res.Outcome)
	}
}

func TestForwardMalformedBodyIsSoftFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	res := NewClient().Forward(context.Background(), testPersona(t, srv.URL), testMessage())
	if res.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %v, want OutcomeFailure", res.Outcome)
	}
}

func TestForwardUnreachableIsSoftFailure(t *testing.T) {
	res := NewClient().Forward(context.Background(), testPersona(t, "http://127.0.0.1:1/hook"), testMessage())
	if res.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %v, want OutcomeFailure", res.Outcome)
	}
}

func TestForwardMissingWebhookIsSoftFailure(t *testing.T) {
	res := NewClient().Forward(context.Background(), testPersona(t, ""), testMessage())
	if res.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %v, want OutcomeFailure", res.Outcome)
	}
}

func TestForwardTimeoutIsSoftFailure(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient()
	c.http.Timeout = 50 * time.Millisecond

	res := c.Forward(context.Background(), testPersona(t, srv.URL), testMessage())
	if res.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %v, want OutcomeFailure", res.Outcome)
	}
}
