package cmd

import (
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/crewrelay/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("crewrelay doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Personas:")
	keys := make([]string, 0, len(cfg.Agents))
	for key := range cfg.Agents {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ready := 0
	for _, key := range keys {
		agent := cfg.Agents[key]
		token := "MISSING TOKEN"
		if agent.Token != "" {
			token = "token set"
		}
		webhook := "MISSING WEBHOOK"
		if agent.WebhookURL != "" {
			webhook = "webhook set"
		}
		if agent.Token != "" && agent.WebhookURL != "" {
			ready++
		}
		fmt.Printf("    %-10s %-14s %s, %s\n", key, agent.Name, token, webhook)
	}
	fmt.Printf("  Ready:    %d/%d personas fully configured\n", ready, len(cfg.Agents))

	fmt.Println()
	fmt.Printf("  Control:  %s (default bot: %s)\n", cfg.Control.ListenAddr(), cfg.Control.DefaultBot)
	if cfg.Telemetry.Enabled {
		fmt.Printf("  Tracing:  enabled (%s via %s)\n", cfg.Telemetry.Endpoint, cfg.Telemetry.Protocol)
	} else {
		fmt.Println("  Tracing:  disabled")
	}
}
