// Package config defines the CrewRelay configuration: one entry per persona
// plus the control API and telemetry settings.
package config

import "fmt"

// Config is the root configuration for the CrewRelay service.
type Config struct {
	Agents    map[string]AgentSpec `json:"agents"`
	Control   ControlConfig        `json:"control"`
	Telemetry TelemetryConfig      `json:"telemetry,omitempty"`
}

// AgentSpec describes one persona: a Discord identity bound to an
// automation webhook. Token and WebhookURL usually come from env vars
// (CREWRELAY_<KEY>_TOKEN / CREWRELAY_<KEY>_WEBHOOK) rather than the file.
type AgentSpec struct {
	Name       string `json:"name"`
	Token      string `json:"token,omitempty"`
	Status     string `json:"status,omitempty"` // custom presence text
	Color      int    `json:"color,omitempty"`
	Channel    string `json:"channel"` // home channel name
	WebhookURL string `json:"webhook_url,omitempty"`
}

// ControlConfig configures the HTTP control API listener.
type ControlConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	DefaultBot string `json:"default_bot,omitempty"` // fallback key for /api/send-message
}

// TelemetryConfig configures OpenTelemetry export for relay traces.
// When enabled, spans are exported to an OTLP-compatible backend
// (Jaeger, Tempo, Datadog, etc.).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`     // e.g. "localhost:4317"
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext export, for local dev
	ServiceName string            `json:"service_name,omitempty"` // default "crewrelay"
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (e.g. auth tokens)
}

// ListenAddr returns the control API listen address.
func (c ControlConfig) ListenAddr() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}
