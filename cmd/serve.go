package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/crewrelay/internal/bus"
	"github.com/nextlevelbuilder/crewrelay/internal/config"
	"github.com/nextlevelbuilder/crewrelay/internal/control"
	"github.com/nextlevelbuilder/crewrelay/internal/discord"
	"github.com/nextlevelbuilder/crewrelay/internal/registry"
	"github.com/nextlevelbuilder/crewrelay/internal/relay"
	"github.com/nextlevelbuilder/crewrelay/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect all personas and run the control API",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Load config
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	reg, err := registry.New(cfg)
	if err != nil {
		slog.Error("failed to build persona registry", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry (optional)
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without it", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer shutdownTelemetry(context.Background())

	evbus := bus.New()
	relayClient := relay.NewClient()

	// Config file watcher — surfaces edits that need a restart.
	if watcher, err := config.NewWatcher(cfgPath); err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	// Connect personas sequentially. A persona with no token, or one whose
	// login fails, is skipped; the rest of the crew still comes up.
	connected := 0
	for _, p := range reg.List() {
		if p.Token == "" {
			slog.Warn("persona has no token, skipping", "persona", p.Key)
			continue
		}

		sess, err := discord.NewSession(p)
		if err != nil {
			slog.Error("failed to create session", "persona", p.Key, "error", err)
			continue
		}

		sess.Bind(discord.NewDispatcher(p, sess, relayClient, evbus))

		if err := sess.Open(); err != nil {
			slog.Error("failed to connect persona", "persona", p.Key, "error", err)
			continue
		}

		reg.Attach(p.Key, sess)
		connected++
	}

	if connected == 0 {
		slog.Warn("no personas connected; control API will serve offline statuses")
	} else {
		slog.Info("crew online", "connected", connected, "total", len(reg.Keys()))
	}

	server := control.NewServer(cfg.Control, reg, evbus)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)

		evbus.Broadcast(bus.Event{Name: bus.EventShutdown})

		for _, p := range reg.List() {
			if conn := p.Conn(); conn != nil {
				if err := conn.Close(); err != nil {
					slog.Warn("close failed", "persona", p.Key, "error", err)
				}
				reg.Detach(p.Key)
			}
		}

		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}
