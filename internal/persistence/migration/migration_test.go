package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/002_add_invites.sql": {Data: []byte(`-- Description: Add invites table
CREATE TABLE invites (code TEXT PRIMARY KEY, meeting_id TEXT NOT NULL);`)},
		"migrations/001_initial_schema.sql": {Data: []byte(`CREATE TABLE meetings (id TEXT PRIMARY KEY);
-- trailing comment
CREATE INDEX idx_meetings_id ON meetings(id);`)},
		"migrations/README.md": {Data: []byte("ignored")},
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("orders by numeric version and reads descriptions", func(t *testing.T) {
		t.Parallel()

		migrations, err := Scan(sampleFS(), "migrations")
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(migrations) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(migrations))
		}
		if migrations[0].Version != "001" || migrations[1].Version != "002" {
			t.Fatalf("unexpected order: %s, %s", migrations[0].Version, migrations[1].Version)
		}
		if migrations[0].Description != "initial schema" {
			t.Fatalf("expected description from filename, got %q", migrations[0].Description)
		}
		if migrations[1].Description != "Add invites table" {
			t.Fatalf("expected description from header, got %q", migrations[1].Description)
		}
		if migrations[0].Checksum == "" {
			t.Fatalf("expected checksum to be computed")
		}
	})

	t.Run("rejects malformed filenames", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1;")}}
		_, err := Scan(fsys, "m")
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/001_a.sql":  {Data: []byte("SELECT 1;")},
			"m/0001_b.sql": {Data: []byte("SELECT 1;")},
			"m/001_c.sql":  {Data: []byte("SELECT 1;")},
		}
		_, err := Scan(fsys, "m")
		if !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})
}

func TestManager_Run(t *testing.T) {
	t.Parallel()

	t.Run("applies pending migrations once", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openMemoryDB(t)
		manager := NewManager(NewExecutor(db, SQLite), sampleFS(), "migrations", quietLogger())

		applied, err := manager.Run(ctx)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(applied) != 2 {
			t.Fatalf("expected 2 applied migrations, got %v", applied)
		}

		if _, err := db.ExecContext(ctx, `INSERT INTO invites (code, meeting_id) VALUES ('roble-rio-7', 'm1')`); err != nil {
			t.Fatalf("expected invites table to exist: %v", err)
		}

		again, err := manager.Run(ctx)
		if err != nil {
			t.Fatalf("second Run failed: %v", err)
		}
		if len(again) != 0 {
			t.Fatalf("expected no migrations on second run, got %v", again)
		}

		status, err := manager.Status(ctx)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
			t.Fatalf("unexpected status: %+v", status)
		}
	})

	t.Run("rolls back a failing migration", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openMemoryDB(t)
		fsys := fstest.MapFS{
			"m/001_ok.sql":     {Data: []byte("CREATE TABLE a (id TEXT);")},
			"m/002_broken.sql": {Data: []byte("CREATE TABLE b (id TEXT); INSERT INTO missing VALUES (1);")},
		}
		manager := NewManager(NewExecutor(db, SQLite), fsys, "m", quietLogger())

		applied, err := manager.Run(ctx)
		if !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}
		if len(applied) != 1 || applied[0] != "001" {
			t.Fatalf("expected only the first migration to apply, got %v", applied)
		}

		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'b'`).Scan(&count); err != nil {
			t.Fatalf("failed to inspect schema: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected table b to be rolled back")
		}
	})

	t.Run("detects edited migrations", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openMemoryDB(t)
		fsys := fstest.MapFS{"m/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")}}
		if _, err := NewManager(NewExecutor(db, SQLite), fsys, "m", quietLogger()).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		fsys["m/001_a.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (id TEXT, extra TEXT);")}
		_, err := NewManager(NewExecutor(db, SQLite), fsys, "m", quietLogger()).Run(ctx)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	statements := splitStatements(`
-- header
CREATE TABLE a (id TEXT);

-- only a comment;
CREATE TABLE b (
    id TEXT
);
`)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %#v", len(statements), statements)
	}
	if statements[1] != "CREATE TABLE b (\nid TEXT\n)" {
		t.Fatalf("unexpected statement: %q", statements[1])
	}
}

func TestDialectPlaceholder(t *testing.T) {
	t.Parallel()

	if SQLite.Placeholder(3) != "?" {
		t.Fatalf("expected question mark placeholder")
	}
	if Postgres.Placeholder(3) != "$3" {
		t.Fatalf("expected numbered placeholder, got %s", Postgres.Placeholder(3))
	}
}
