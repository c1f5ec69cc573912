package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
)

// Manager orchestrates scanning, checksum verification and execution.
type Manager struct {
	executor *Executor
	source   fs.FS
	dir      string
	logger   *slog.Logger
}

// NewManager wires a manager for migrations stored in dir of source.
func NewManager(executor *Executor, source fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		executor: executor,
		source:   source,
		dir:      dir,
		logger:   logger.With("component", "migration", "dialect", executor.dialect.Name),
	}
}

// Run applies all pending migrations in order and returns the versions applied.
func (m *Manager) Run(ctx context.Context) ([]string, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "schema version checked",
		"current_version", status.CurrentVersion,
		"pending_count", status.PendingCount,
	)
	if status.PendingCount == 0 {
		return nil, nil
	}

	applied := make([]string, 0, status.PendingCount)
	for i, migration := range status.PendingMigrations {
		logger := m.logger.With(
			"version", migration.Version,
			"description", migration.Description,
			"position", fmt.Sprintf("%d/%d", i+1, status.PendingCount),
		)
		logger.InfoContext(ctx, "applying migration")

		elapsed, err := m.executor.Execute(ctx, migration)
		if err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return applied, stepError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		logger.InfoContext(ctx, "migration applied", "duration", elapsed)
		applied = append(applied, migration.Version)
	}

	m.logger.InfoContext(ctx, "migrations completed", "applied_count", len(applied))
	return applied, nil
}

// Status compares the files on disk with the applied versions.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := Scan(m.source, m.dir)
	if err != nil {
		return Status{}, err
	}

	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	for _, item := range applied {
		appliedByVersion[item.Version] = item
	}

	status := Status{AppliedMigrations: applied}
	for _, migration := range available {
		record, ok := appliedByVersion[migration.Version]
		if !ok {
			status.PendingMigrations = append(status.PendingMigrations, migration)
			continue
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return Status{}, stepError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
		status.CurrentVersion = migration.Version
	}
	status.PendingCount = len(status.PendingMigrations)
	return status, nil
}
