package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/crewrelay/internal/bus"
	"github.com/nextlevelbuilder/crewrelay/internal/config"
	"github.com/nextlevelbuilder/crewrelay/internal/registry"
	"github.com/nextlevelbuilder/crewrelay/internal/relay"
)

type fakeConn struct {
	typingCalls []string
	replies     []string // "channelID/messageID: content"
	reacts      []string // "channelID/messageID: emoji"
	replyErr    error
}

func (c *fakeConn) IsReady() bool                      { return true }
func (c *fakeConn) BotUserID() string                  { return "bot-1" }
func (c *fakeConn) ChannelName(string) (string, error) { return "", nil }
func (c *fakeConn) SendMessage(_, _ string) (string, error) {
	return "", errors.New("not used")
}
func (c *fakeConn) Reply(channelID, messageID, content string) (string, error) {
	if c.replyErr != nil {
		return "", c.replyErr
	}
	c.replies = append(c.replies, channelID+"/"+messageID+": "+content)
	return "reply-1", nil
}
func (c *fakeConn) React(channelID, messageID, emoji string) error {
	c.reacts = append(c.reacts, channelID+"/"+messageID+": "+emoji)
	return nil
}
func (c *fakeConn) Typing(channelID string) error {
	c.typingCalls = append(c.typingCalls, channelID)
	return nil
}
func (c *fakeConn) Close() error { return nil }

type fakeForwarder struct {
	result relay.Result
	calls  []relay.Message
	panics bool
}

func (f *fakeForwarder) Forward(_ context.Context, _ *registry.Persona, msg relay.Message) relay.Result {
	if f.panics {
		panic("engine exploded")
	}
	f.calls = append(f.calls, msg)
	return f.result
}

func testPersona(t *testing.T) *registry.Persona {
	t.Helper()
	r, err := registry.New(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	p, _ := r.Get("olivia")
	return p
}

func inboundMessage(text, channelName string) relay.Message {
	return relay.Message{
		ID:          "m-1",
		Text:        text,
		AuthorID:    "u-1",
		AuthorName:  "alice",
		ChannelID:   "ch-1",
		ChannelName: channelName,
		Timestamp:   time.Now(),
	}
}

func TestHandleHomeChannelTriggersRelayAndReply(t *testing.T) {
	conn := &fakeConn{}
	fwd := &fakeForwarder{result: relay.Result{Outcome: relay.OutcomeReply, Reply: "on it"}}
	d := NewDispatcher(testPersona(t), conn, fwd, nil)

	d.Handle(context.Background(), inboundMessage("anything", "coo-chief-operations"))

	if len(fwd.calls) != 1 {
		t.Fatalf("relay calls = %d, want 1", len(fwd.calls))
	}
	if len(conn.typingCalls) != 1 || conn.typingCalls[0] != "ch-1" {
		t.Errorf("typing calls = %v", conn.typingCalls)
	}
	if len(conn.replies) != 1 || conn.replies[0] != "ch-1/m-1: on it" {
		t.Errorf("replies = %v", conn.replies)
	}
	if len(conn.reacts) != 0 {
		t.Errorf("unexpected reactions: %v", conn.reacts)
	}
}

func TestHandleNoMatchDoesNothing(t *testing.T) {
	conn := &fakeConn{}
	fwd := &fakeForwarder{result: relay.Result{Outcome: relay.OutcomeReply, Reply: "hi"}}
	d := NewDispatcher(testPersona(t), conn, fwd, nil)

	d.Handle(context.Background(), inboundMessage("nothing relevant", "general"))

	if len(fwd.calls) != 0 {
		t.Errorf("relay should not be called, got %d calls", len(fwd.calls))
	}
	if len(conn.typingCalls) != 0 || len(conn.replies) != 0 {
		t.Error("no chat activity expected without a match")
	}
}

func TestHandleIgnoresBotAuthors(t *testing.T) {
	conn := &fakeConn{}
	fwd := &fakeForwarder{result: relay.Result{Outcome: relay.OutcomeReply, Reply: "hi"}}
	d := NewDispatcher(testPersona(t), conn, fwd, nil)

	msg := inboundMessage("olivia please", "coo-chief-operations")
	msg.AuthorIsBot = true
	d.Handle(context.Background(), msg)

	if len(fwd.calls) != 0 {
		t.Error("bot-authored messages must never trigger a relay")
	}
}

func TestHandleNoReplySendsNothing(t *testing.T) {
	conn := &fakeConn{}
	fwd := &fakeForwarder{result: relay.Result{Outcome: relay.OutcomeNoReply}}
	d := NewDispatcher(testPersona(t), conn, fwd, nil)

	d.Handle(context.Background(), inboundMessage("olivia status?", "general"))

	if len(fwd.calls) != 1 {
		t.Fatalf("relay calls = %d, want 1", len(fwd.calls))
	}
	if len(conn.replies) != 0 || len(conn.reacts) != 0 {
		t.Errorf("no chat activity expected for no-reply, got replies=%v reacts=%v", conn.replies, conn.reacts)
	}
}

func TestHandleRelayFailureIsSilent(t *testing.T) {
	conn := &fakeConn{}
	fwd := &fakeForwarder{result: relay.Result{Outcome: relay.OutcomeFailure}}
	d := NewDispatcher(testPersona(t), conn, fwd, nil)

	d.Handle(context.Background(), inboundMessage("olivia status?", "general"))

	// Soft failure: no reply and no user-visible reaction.
	if len(conn.replies) != 0 || len(conn.reacts) != 0 {
		t.Errorf("soft failure must be invisible, got replies=%v reacts=%v", conn.replies, conn.reacts)
	}
}

func TestHandleReplySendFailureReacts(t *testing.T) {
	conn := &fakeConn{replyErr: errors.New("missing permissions")}
	fwd := &fakeForwarder{result: relay.Result{Outcome: relay.OutcomeReply, Reply: "hi"}}
	d := NewDispatcher(testPersona(t), conn, fwd, nil)

	d.Handle(context.Background(), inboundMessage("olivia status?", "general"))

	if len(conn.reacts) != 1 || conn.reacts[0] != "ch-1/m-1: "+failureReaction {
		t.Errorf("reacts = %v, want failure reaction", conn.reacts)
	}
}

func TestHandleRecoversFromPanic(t *testing.T) {
	conn := &fakeConn{}
	fwd := &fakeForwarder{panics: true}
	d := NewDispatcher(testPersona(t), conn, fwd, nil)

	// Must not propagate the panic; must mark the message.
	d.Handle(context.Background(), inboundMessage("olivia status?", "general"))

	if len(conn.reacts) != 1 {
		t.Errorf("reacts = %v, want failure reaction after panic", conn.reacts)
	}
}

func TestHandleBroadcastsEvents(t *testing.T) {
	evbus := bus.New()
	var names []string
	evbus.Subscribe("test", func(e bus.Event) { names = append(names, e.Name) })

	conn := &fakeConn{}
	fwd := &fakeForwarder{result: relay.Result{Outcome: relay.OutcomeReply, Reply: "done"}}
	d := NewDispatcher(testPersona(t), conn, fwd, evbus)

	d.Handle(context.Background(), inboundMessage("olivia go", "general"))

	want := []string{bus.EventMessageTriggered, bus.EventRelayCompleted, bus.EventReplySent}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestFanOutAcrossPersonas(t *testing.T) {
	r, err := registry.New(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	olivia, _ := r.Get("olivia")
	maya, _ := r.Get("maya")

	oliviaFwd := &fakeForwarder{result: relay.Result{Outcome: relay.OutcomeNoReply}}
	mayaFwd := &fakeForwarder{result: relay.Result{Outcome: relay.OutcomeNoReply}}
	d1 := NewDispatcher(olivia, &fakeConn{}, oliviaFwd, nil)
	d2 := NewDispatcher(maya, &fakeConn{}, mayaFwd, nil)

	msg := inboundMessage("olivia and maya, sync up", "general")
	d1.Handle(context.Background(), msg)
	d2.Handle(context.Background(), msg)

	if len(oliviaFwd.calls) != 1 || len(mayaFwd.calls) != 1 {
		t.Errorf("both personas should relay: olivia=%d maya=%d", len(oliviaFwd.calls), len(mayaFwd.calls))
	}
}
