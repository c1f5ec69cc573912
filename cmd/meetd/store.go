package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/sirius-meet/internal/config"
	"github.com/example/sirius-meet/internal/persistence"
	"github.com/example/sirius-meet/internal/persistence/memory"
	"github.com/example/sirius-meet/internal/persistence/postgres"
	"github.com/example/sirius-meet/internal/persistence/sqlite"
)

// openStore opens the backend selected by cfg.DatabaseDriver. The memory
// store keeps nothing between processes and is meant for local runs.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		store, err := sqlite.Open(sqlite.DefaultConfig(cfg.SQLitePath), logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, postgres.DefaultConfig(cfg.PostgresDSN), logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// withStore opens the configured store, runs fn and closes the store.
func withStore(ctx context.Context, g *globals, fn func(persistence.Store) error) (err error) {
	store, err := openStore(ctx, g.cfg, g.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			g.logger.Error("failed to close storage", "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()
	return fn(store)
}
