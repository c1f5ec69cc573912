// Package sqlite implements the persistence repositories on top of
// modernc.org/sqlite. The schema ships embedded and is applied by Migrate.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/sirius-meet/internal/persistence"
	"github.com/example/sirius-meet/internal/persistence/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the SQLite repositories behind persistence.Store.
type Store struct {
	*EmployeeRepository
	*MeetingRepository
	*InviteRepository
	*ParticipantRepository
	*SessionRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the database described by config. Call Migrate before
// using the repositories on a fresh database.
func Open(config Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Store{
		EmployeeRepository:    NewEmployeeRepository(pool),
		MeetingRepository:     NewMeetingRepository(pool),
		InviteRepository:      NewInviteRepository(pool),
		ParticipantRepository: NewParticipantRepository(pool),
		SessionRepository:     NewSessionRepository(pool),
		pool:                  pool,
		logger:                logger.With("store", "sqlite"),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.NewExecutor(s.pool.DB(), migration.SQLite), migrationFiles, "migrations", s.logger)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Pool exposes the underlying connection pool.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}
