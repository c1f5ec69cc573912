package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

const inviteColumns = `id, meeting_id, invite_code, theme, custom_message, expires_at, max_uses, current_uses, created_at`

// CreateInvite inserts a new invite. A taken code reports ErrDuplicate.
func (s *Store) CreateInvite(ctx context.Context, invite persistence.MeetingInvite) error {
	if invite.ID == "" || invite.MeetingID == "" || strings.TrimSpace(invite.InviteCode) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meeting_invites (`+inviteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		invite.ID,
		invite.MeetingID,
		invite.InviteCode,
		invite.Theme,
		nullString(invite.CustomMessage),
		invite.ExpiresAt.UTC(),
		invite.MaxUses,
		invite.CurrentUses,
		nowIfZero(invite.CreatedAt),
	)
	return mapError(err)
}

// GetInviteByCode retrieves an invite by its code.
func (s *Store) GetInviteByCode(ctx context.Context, code string) (persistence.MeetingInvite, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return persistence.MeetingInvite{}, persistence.ErrNotFound
	}
	invite, err := scanInvite(s.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM meeting_invites WHERE invite_code = $1`, code))
	if err != nil {
		return persistence.MeetingInvite{}, mapError(err)
	}
	return invite, nil
}

// ListInvitesForMeeting returns the meeting's invites, newest first.
func (s *Store) ListInvitesForMeeting(ctx context.Context, meetingID string) ([]persistence.MeetingInvite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+inviteColumns+`
		FROM meeting_invites
		WHERE meeting_id = $1
		ORDER BY created_at DESC, id DESC
	`, meetingID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	invites := make([]persistence.MeetingInvite, 0)
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return invites, nil
}

// IncrementInviteUse consumes one use with a single conditional UPDATE.
// Concurrent callers queue on the row lock and re-check the predicate, so
// the cap holds under READ COMMITTED.
func (s *Store) IncrementInviteUse(ctx context.Context, code string, now time.Time) (persistence.MeetingInvite, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return persistence.MeetingInvite{}, persistence.ErrNotFound
	}

	invite, err := scanInvite(s.db.QueryRowContext(ctx, `
		UPDATE meeting_invites
		SET current_uses = current_uses + 1
		WHERE invite_code = $1 AND current_uses < max_uses AND expires_at >= $2
		RETURNING `+inviteColumns,
		code, now.UTC(),
	))
	if err == nil {
		return invite, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return persistence.MeetingInvite{}, mapError(err)
	}

	current, err := s.GetInviteByCode(ctx, code)
	if err != nil {
		return persistence.MeetingInvite{}, err
	}
	return persistence.MeetingInvite{}, persistence.RejectedUseError(current, now)
}

func scanInvite(row rowScanner) (persistence.MeetingInvite, error) {
	var (
		invite        persistence.MeetingInvite
		customMessage sql.NullString
	)
	if err := row.Scan(
		&invite.ID,
		&invite.MeetingID,
		&invite.InviteCode,
		&invite.Theme,
		&customMessage,
		&invite.ExpiresAt,
		&invite.MaxUses,
		&invite.CurrentUses,
		&invite.CreatedAt,
	); err != nil {
		return persistence.MeetingInvite{}, err
	}
	invite.CustomMessage = stringPtr(customMessage)
	invite.ExpiresAt = invite.ExpiresAt.UTC()
	invite.CreatedAt = invite.CreatedAt.UTC()
	return invite, nil
}
