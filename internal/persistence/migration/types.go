// Package migration applies versioned SQL files to a database and tracks
// them in a schema_migrations table.
//
// Files are named {version}_{description}.sql, read from an fs.FS (usually
// an embed.FS owned by the storage backend) and applied in ascending
// version order, one transaction per file.
package migration

import (
	"fmt"
	"time"
)

// Migration represents a database migration with its metadata and SQL content
type Migration struct {
	Version     string
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration represents a migration that has been successfully applied
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status provides information about the current migration state
type Status struct {
	CurrentVersion    string
	PendingCount      int
	AppliedMigrations []AppliedMigration
	PendingMigrations []Migration
}

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	Name             string
	VersionTableDDL  string
	placeholderStyle placeholderStyle
}

type placeholderStyle int

const (
	questionMark placeholderStyle = iota
	dollarNumbered
)

// Placeholder returns the bind parameter marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d.placeholderStyle == dollarNumbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLite is the dialect for modernc.org/sqlite.
var SQLite = Dialect{
	Name: "sqlite",
	VersionTableDDL: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL,
		checksum TEXT,
		execution_time_ms INTEGER
	)`,
	placeholderStyle: questionMark,
}

// Postgres is the dialect for the pgx stdlib driver.
var Postgres = Dialect{
	Name: "postgres",
	VersionTableDDL: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL,
		checksum TEXT,
		execution_time_ms BIGINT
	)`,
	placeholderStyle: dollarNumbered,
}
