package migration

import (
	"errors"
	"fmt"
)

var (
	ErrMigrationFailed      = errors.New("migration failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file")
	ErrDuplicateVersion     = errors.New("duplicate migration version")
	// ErrChecksumMismatch means an applied migration file changed on disk.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// StepError reports which migration step failed. Source is the file for
// scanning problems and the SQL text for statements the database rejected.
type StepError struct {
	Version string
	Source  string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("migration: %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("migration %s: %s: %v", e.Version, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(version, source, step string, err error) *StepError {
	return &StepError{Version: version, Source: source, Step: step, Err: err}
}
