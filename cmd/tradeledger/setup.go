package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/odinsson/tradeledger/internal/config"
	"github.com/odinsson/tradeledger/internal/logfile"
	"github.com/odinsson/tradeledger/internal/pricing"
	"github.com/odinsson/tradeledger/internal/scheduler"
	"github.com/odinsson/tradeledger/internal/storage"
	"github.com/odinsson/tradeledger/internal/tornapi"
	"github.com/odinsson/tradeledger/internal/weaver"
)

// app bundles the wired components and their teardown.
type app struct {
	orchestrator *pricing.Orchestrator
	source       *logfile.Source
	store        *storage.SQLiteStore
	cfg          config.Config
}

// buildApp wires the full pipeline over the given trade log file.
func buildApp(ctx context.Context, logPath string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required (set TRADELEDGER_API_KEY or --api-key)")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	source, err := logfile.New(logPath, slog.Default())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sched := scheduler.New(cfg.MaxConcurrency, slog.Default())
	orch, err := pricing.New(
		cfg,
		store,
		tornapi.NewClient(""),
		weaver.NewClient(""),
		source,
		sched,
		slog.Default(),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{orchestrator: orch, source: source, store: store, cfg: cfg}, nil
}

// start launches the file watcher and the orchestrator.
func (a *app) start(ctx context.Context) error {
	if err := a.source.Start(ctx); err != nil {
		return err
	}
	if err := a.orchestrator.Start(ctx); err != nil {
		a.source.Stop()
		return err
	}
	return nil
}

// close tears everything down in reverse order. The command context is
// usually already canceled here, so shutdown gets its own deadline.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.orchestrator.Stop(ctx); err != nil {
		slog.Error("Failed to stop orchestrator", "error", err)
	}
	a.source.Stop()
	if err := a.store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}
