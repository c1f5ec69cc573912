package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

const sessionColumns = `id, employee_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at`

// CreateSession stores a new session token for an employee.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.EmployeeID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	created, err := scanSession(s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+sessionColumns,
		session.ID,
		session.EmployeeID,
		session.Token,
		strings.TrimSpace(session.Fingerprint),
		session.ExpiresAt.UTC(),
		nullTime(session.RevokedAt),
		nowIfZero(session.CreatedAt),
		nowIfZero(session.UpdatedAt),
	))
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return created, nil
}

// GetSession retrieves a session by its token value.
func (s *Store) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token))
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return session, nil
}

// RevokeSession marks a session as revoked.
func (s *Store) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session, err := scanSession(s.db.QueryRowContext(ctx, `
		UPDATE sessions SET revoked_at = $1, updated_at = $1
		WHERE token = $2
		RETURNING `+sessionColumns,
		revokedAt.UTC(), token,
	))
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return session, nil
}

// DeleteExpiredSessions removes sessions that expired on or before reference.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, reference.UTC())
	return mapError(err)
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session   persistence.Session
		revokedAt sql.NullTime
	)
	if err := row.Scan(
		&session.ID,
		&session.EmployeeID,
		&session.Token,
		&session.Fingerprint,
		&session.ExpiresAt,
		&revokedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return persistence.Session{}, err
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	session.RevokedAt = timePtr(revokedAt)
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	return session, nil
}
