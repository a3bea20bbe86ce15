package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"realtime-agents/internal/adapter/eventlog"
	"realtime-agents/internal/adapter/transport"
	"realtime-agents/internal/adapter/web"
	"realtime-agents/internal/agentconfigs"
	"realtime-agents/internal/domain"
	"realtime-agents/internal/infra/config"
	"realtime-agents/internal/infra/logger"
	"realtime-agents/internal/infra/tracer"
	"realtime-agents/internal/usecase/eventbus"
	"realtime-agents/internal/usecase/roster"
	"realtime-agents/internal/usecase/viewstate"
)

func serveCommand(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	return run(cmd.Context(), cfgPath)
}

func run(ctx context.Context, cfgPath string) error {
	// 1. Config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Roster registry
	reg, err := buildRegistry(cfg.Agents)
	if err != nil {
		return fmt.Errorf("agents: %w", err)
	}

	// 4. Event bus and events pane storage
	bus := eventbus.New(log)
	defer bus.Close()

	events, err := openEventLog(cfg.Events)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	defer events.Close()
	recorder := eventlog.NewRecorder(bus, events, log)
	defer recorder.Stop()

	// 5. Console sessions
	sessions := viewstate.NewManager(bus, cfg.Session.TTL, cfg.Session.StrictSelection, log)
	ctrl := viewstate.NewController(sessions, bus, transport.NewUnavailable, log)

	// 6. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go ctrl.Run(ctx, cfg.Session.SweepInterval)

	// 7. Web server (blocks until ctx is cancelled)
	srv := web.NewServer(web.Deps{
		Resolver:   roster.NewResolver(reg, log),
		Controller: ctrl,
		Events:     events,
		Bus:        bus,
		Server:     cfg.Server,
		Version:    version,
	}, cfg.Server.Addr, log)

	log.Info("realtime-agents starting",
		"version", version,
		"addr", cfg.Server.Addr,
		"rosters", reg.Keys(),
		"default_roster", reg.DefaultKey(),
		"events_store", cfg.Events.Store,
	)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	log.Info("realtime-agents stopped")
	return nil
}

// buildRegistry uses the configured roster table, or the compiled-in rosters
// when the config defines none.
func buildRegistry(cfg config.AgentsConfig) (*roster.Registry, error) {
	if len(cfg.Sets) > 0 {
		return roster.NewRegistry(cfg.DefaultSet, cfg.Sets)
	}
	defaultKey := cfg.DefaultSet
	if defaultKey == "" {
		defaultKey = agentconfigs.DefaultSetKey
	}
	return roster.NewRegistry(defaultKey, agentconfigs.AllSets())
}

func openEventLog(cfg config.EventsConfig) (domain.EventLog, error) {
	switch cfg.Store {
	case "sqlite":
		return eventlog.NewSQLiteLog(cfg.Path, cfg.History)
	default:
		return eventlog.NewMemoryLog(cfg.History), nil
	}
}

// loadRegistry loads config and builds the registry for the offline commands.
func loadRegistry(cmd *cobra.Command) (*roster.Registry, *slog.Logger, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	reg, err := buildRegistry(cfg.Agents)
	if err != nil {
		return nil, nil, fmt.Errorf("agents: %w", err)
	}
	return reg, logger.Discard(), nil
}
