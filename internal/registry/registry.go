// Package registry holds the static persona set and each persona's live
// Discord connection handle. Personas are defined once at process start
// and never created or destroyed at runtime; only the connection handle
// is attached after login and detached on shutdown.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/crewrelay/internal/config"
)

// Conn is the slice of a live chat connection the registry, dispatcher and
// control API need. Implemented by discord.Session; faked in tests.
type Conn interface {
	// IsReady reports whether the connection is authenticated and receiving events.
	IsReady() bool
	// BotUserID returns the connection's own user ID (empty before login).
	BotUserID() string
	// ChannelName resolves a channel ID to its name.
	ChannelName(channelID string) (string, error)
	// SendMessage posts a new message and returns its ID.
	SendMessage(channelID, content string) (string, error)
	// Reply fetches the referenced message and posts a threaded reply that
	// does not ping the original author. Returns the reply's message ID.
	Reply(channelID, messageID, content string) (string, error)
	// React adds an emoji reaction to a message.
	React(channelID, messageID, emoji string) error
	// Typing triggers the typing indicator in a channel.
	Typing(channelID string) error
	// Close tears the connection down.
	Close() error
}

// Persona is one chat identity plus its routing rules and webhook binding.
type Persona struct {
	Key        string
	Name       string
	Status     string
	Color      int
	Channel    string // home channel name
	Token      string
	WebhookURL string

	rules rules

	mu   sync.RWMutex
	conn Conn
}

// Registry is the static persona map. Safe for concurrent use.
type Registry struct {
	personas map[string]*Persona
	keys     []string // sorted, for deterministic listings
}

// New builds the registry from config, compiling each persona's match
// rules once.
func New(cfg *config.Config) (*Registry, error) {
	r := &Registry{personas: make(map[string]*Persona, len(cfg.Agents))}

	for key, spec := range cfg.Agents {
		p, err := newPersona(key, spec)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", key, err)
		}
		r.personas[key] = p
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)

	return r, nil
}

func newPersona(key string, spec config.AgentSpec) (*Persona, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("display name is required")
	}
	rules, err := compileRules(key, spec.Name)
	if err != nil {
		return nil, err
	}
	return &Persona{
		Key:        key,
		Name:       spec.Name,
		Status:     spec.Status,
		Color:      spec.Color,
		Channel:    spec.Channel,
		Token:      spec.Token,
		WebhookURL: spec.WebhookURL,
		rules:      rules,
	}, nil
}

// Get returns the persona for a key.
func (r *Registry) Get(key string) (*Persona, bool) {
	p, ok := r.personas[key]
	return p, ok
}

// List returns all personas in key order.
func (r *Registry) List() []*Persona {
	out := make([]*Persona, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.personas[key])
	}
	return out
}

// Keys returns the sorted persona keys.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Attach binds a live connection to a persona after login.
func (r *Registry) Attach(key string, conn Conn) {
	if p, ok := r.personas[key]; ok {
		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()
	}
}

// Detach clears a persona's connection handle.
func (r *Registry) Detach(key string) {
	if p, ok := r.personas[key]; ok {
		p.mu.Lock()
		p.conn = nil
		p.mu.Unlock()
	}
}

// Conn returns the persona's live connection, or nil before login.
func (p *Persona) Conn() Conn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn
}

// IsOnline reports whether the persona has a ready connection.
func (p *Persona) IsOnline() bool {
	c := p.Conn()
	return c != nil && c.IsReady()
}

// Matches decides whether this persona should engage with a message.
// Triggers, in order: home channel, whole-word key, flexible display name,
// direct @-mention. Several personas may match the same message; that
// fan-out is intentional.
func (p *Persona) Matches(text, channelName string, mentioned bool) bool {
	if channelName != "" && channelName == p.Channel {
		return true
	}
	if p.rules.key.MatchString(text) {
		return true
	}
	if p.rules.name.MatchString(text) {
		return true
	}
	return mentioned
}

// StripAddressing removes user-mention tokens and every variant of the
// persona's display name from text, then trims whitespace. Applying it
// twice yields the same result as applying it once.
func (p *Persona) StripAddressing(text string) string {
	return p.rules.strip(text)
}
