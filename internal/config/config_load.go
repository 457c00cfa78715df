package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with the stock persona set. Credentials are
// intentionally empty: tokens and webhook URLs come from env vars or the
// config file.
func Default() *Config {
	return &Config{
		Agents: map[string]AgentSpec{
			"olivia": {
				Name:    "OLIVIA-COO",
				Status:  "📊 Orchestrating Operations",
				Color:   0x4169E1,
				Channel: "coo-chief-operations",
			},
			"brandon": {
				Name:    "BRANDON-CBO",
				Status:  "🎨 Creating Brand Excellence",
				Color:   0x9B59B6,
				Channel: "cbo-chief-brand",
			},
			"maya": {
				Name:    "MAYA-CMO",
				Status:  "📈 Amplifying Brand Reach",
				Color:   0xE91E63,
				Channel: "cmo-chief-marketing",
			},
			"ethan": {
				Name:    "ETHAN-CECO",
				Status:  "🛒 Optimizing Conversions",
				Color:   0x27AE60,
				Channel: "ceco-chief-ecommerce",
			},
			"tyler": {
				Name:    "TYLER-CTO",
				Status:  "⚡ Building Tech Solutions",
				Color:   0xFF6B35,
				Channel: "cto-chief-technology",
			},
			"diana": {
				Name:    "DIANA-CDO",
				Status:  "📊 Analyzing Data Insights",
				Color:   0x00BCD4,
				Channel: "cdo-chief-data",
			},
			"xavier": {
				Name:    "XAVIER-CXO",
				Status:  "✨ Crafting Experiences",
				Color:   0xFFC107,
				Channel: "cxo-chief-experience",
			},
			"parker": {
				Name:    "PARKER-CPO",
				Status:  "📦 Innovating Products",
				Color:   0x795548,
				Channel: "cpo-chief-product",
			},
		},
		Control: ControlConfig{
			Host:       "0.0.0.0",
			Port:       3000,
			DefaultBot: "olivia",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env vars are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	for key, spec := range c.Agents {
		prefix := "CREWRELAY_" + strings.ToUpper(key)
		envStr(prefix+"_TOKEN", &spec.Token)
		envStr(prefix+"_WEBHOOK", &spec.WebhookURL)
		c.Agents[key] = spec
	}

	envStr("CREWRELAY_HOST", &c.Control.Host)
	if v := os.Getenv("CREWRELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Control.Port = port
		}
	}
	envStr("CREWRELAY_DEFAULT_BOT", &c.Control.DefaultBot)

	envStr("CREWRELAY_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("CREWRELAY_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("CREWRELAY_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("CREWRELAY_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CREWRELAY_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior. Missing credentials are NOT an error here: a persona
// without a token is skipped at login, per-persona, without affecting others.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents configured")
	}
	for key, spec := range c.Agents {
		if spec.Name == "" {
			return fmt.Errorf("agent %q: name is required", key)
		}
	}
	if _, ok := c.Agents[c.Control.DefaultBot]; c.Control.DefaultBot != "" && !ok {
		return fmt.Errorf("control.default_bot %q is not a configured agent", c.Control.DefaultBot)
	}
	return nil
}
