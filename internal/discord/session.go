// Package discord connects one persona to the Discord gateway and feeds
// its message events through the dispatcher.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/crewrelay/internal/registry"
	"github.com/nextlevelbuilder/crewrelay/internal/relay"
)

// Session wraps one persona's discordgo session. It implements
// registry.Conn for the dispatcher and the control API.
type Session struct {
	dg        *discordgo.Session
	persona   *registry.Persona
	botUserID string
	ready     atomic.Bool
}

// NewSession creates an unopened session for the persona. The persona must
// carry a credential; connection attempts without one fail fast so the
// caller can skip the persona and move on.
func NewSession(p *registry.Persona) (*Session, error) {
	if p.Token == "" {
		return nil, fmt.Errorf("no token configured")
	}

	dg, err := discordgo.New("Bot " + p.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages

	s := &Session{dg: dg, persona: p}
	dg.AddHandler(s.onReady)
	dg.AddHandler(s.onDisconnect)
	dg.AddHandler(s.onResumed)
	return s, nil
}

// Bind attaches the dispatcher to the session's message events.
// Must be called before Open.
func (s *Session) Bind(d *Dispatcher) {
	s.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		d.Handle(context.Background(), s.inbound(m))
	})
}

// Open connects to the Discord gateway and resolves the bot's own identity.
func (s *Session) Open() error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := s.dg.User("@me")
	if err != nil {
		s.dg.Close()
		return fmt.Errorf("fetch bot identity: %w", err)
	}
	s.botUserID = user.ID
	s.ready.Store(true)

	slog.Info("discord connected",
		"persona", s.persona.Key,
		"username", user.Username,
		"id", user.ID,
	)
	return nil
}

func (s *Session) onReady(dg *discordgo.Session, _ *discordgo.Ready) {
	s.ready.Store(true)
	if s.persona.Status != "" {
		if err := dg.UpdateCustomStatus(s.persona.Status); err != nil {
			slog.Debug("set presence failed", "persona", s.persona.Key, "error", err)
		}
	}
}

func (s *Session) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	s.ready.Store(false)
	slog.Warn("discord gateway disconnected", "persona", s.persona.Key)
}

func (s *Session) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	s.ready.Store(true)
	slog.Info("discord gateway resumed", "persona", s.persona.Key)
}

// IsReady reports whether the gateway connection is live.
func (s *Session) IsReady() bool { return s.ready.Load() }

// BotUserID returns the connection's own user ID.
func (s *Session) BotUserID() string { return s.botUserID }

// ChannelName resolves a channel ID, preferring the state cache over REST.
func (s *Session) ChannelName(channelID string) (string, error) {
	if ch, err := s.dg.State.Channel(channelID); err == nil {
		return ch.Name, nil
	}
	ch, err := s.dg.Channel(channelID)
	if err != nil {
		return "", fmt.Errorf("fetch channel %s: %w", channelID, err)
	}
	return ch.Name, nil
}

// SendMessage posts a new message to a channel.
func (s *Session) SendMessage(channelID, content string) (string, error) {
	m, err := s.dg.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return m.ID, nil
}

// Reply fetches the referenced message and posts a threaded reply without
// pinging its author.
func (s *Session) Reply(channelID, messageID, content string) (string, error) {
	orig, err := s.dg.ChannelMessage(channelID, messageID)
	if err != nil {
		return "", fmt.Errorf("fetch message %s: %w", messageID, err)
	}

	m, err := s.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Reference: &discordgo.MessageReference{
			MessageID: orig.ID,
			ChannelID: channelID,
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{
				discordgo.AllowedMentionTypeUsers,
				discordgo.AllowedMentionTypeRoles,
			},
			RepliedUser: false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("send reply: %w", err)
	}
	return m.ID, nil
}

// React adds an emoji reaction to a message.
func (s *Session) React(channelID, messageID, emoji string) error {
	return s.dg.MessageReactionAdd(channelID, messageID, emoji)
}

// Typing triggers the typing indicator in a channel.
func (s *Session) Typing(channelID string) error {
	return s.dg.ChannelTyping(channelID)
}

// Close tears down the gateway connection.
func (s *Session) Close() error {
	s.ready.Store(false)
	return s.dg.Close()
}

// inbound converts a discordgo event into the transport-neutral message
// the dispatcher consumes.
func (s *Session) inbound(m *discordgo.MessageCreate) relay.Message {
	msg := relay.Message{
		ID:          m.ID,
		Text:        m.Content,
		ChannelID:   m.ChannelID,
		Timestamp:   m.Timestamp,
		AuthorIsBot: true, // until proven otherwise below
	}

	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.AuthorIsBot = m.Author.Bot || m.Author.ID == s.botUserID
	}

	for _, u := range m.Mentions {
		msg.Mentions = append(msg.Mentions, u.Username)
		if u.ID == s.botUserID {
			msg.MentionsBot = true
		}
	}

	// An unresolvable channel name degrades to "no home-channel match";
	// the other triggers still apply.
	name, err := s.ChannelName(m.ChannelID)
	if err != nil {
		slog.Debug("channel name lookup failed",
			"persona", s.persona.Key,
			"channel_id", m.ChannelID,
			"error", err,
		)
	}
	msg.ChannelName = name

	return msg
}
