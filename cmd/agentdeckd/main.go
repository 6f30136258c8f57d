// Command agentdeckd runs the agent orchestration daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/adapter"
	"github.com/dmora/agentdeck/adapter/cli"
	"github.com/dmora/agentdeck/adapter/cli/claude"
	"github.com/dmora/agentdeck/adapter/cli/codex"
	"github.com/dmora/agentdeck/broadcast"
	"github.com/dmora/agentdeck/catalog"
	"github.com/dmora/agentdeck/config"
	"github.com/dmora/agentdeck/orchestrator"
	"github.com/dmora/agentdeck/server"
	"github.com/dmora/agentdeck/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "agentdeckd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.StringP("config", "c", "", "path to YAML config file")
		listen     = pflag.String("listen", "", "listen address (overrides config)")
		dbPath     = pflag.String("db", "", "database path (overrides config)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Warn("catalog load failed, using built-in tables", zap.Error(err))
		cat = catalog.Builtin()
	}

	adapterOpts := []cli.AdapterOption{cli.WithGracePeriod(cfg.GracePeriod.Std())}
	adapters := map[agentdeck.CLIType]adapter.Adapter{
		agentdeck.CLIClaude: cli.New(claude.New(claude.WithBinary(cfg.ClaudeBinary)), adapterOpts...),
		agentdeck.CLICodex:  cli.New(codex.New(codex.WithBinary(cfg.CodexBinary)), adapterOpts...),
	}
	for cliType, ad := range adapters {
		if err := ad.Validate(); err != nil {
			log.Warn("adapter unavailable", zap.String("cli_type", string(cliType)), zap.Error(err))
		}
	}

	hub := broadcast.NewHub(log, broadcast.WithBufferSize(cfg.SubscriberBuffer))
	orch := orchestrator.New(log, st, st, hub, cat, adapters, orchestrator.Options{
		MaxQueueDepth:     cfg.MaxQueueDepth,
		InactivityTimeout: cfg.InactivityTimeout.Std(),
	})
	srv := server.New(log, orch, hub, st)

	httpSrv := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Listen))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := orch.Close(shutdownCtx); err != nil {
		log.Warn("orchestrator shutdown", zap.Error(err))
	}
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
