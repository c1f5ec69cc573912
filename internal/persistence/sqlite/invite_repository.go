package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

// InviteRepository implements persistence.InviteRepository using SQLite
type InviteRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewInviteRepository creates a new SQLite invite repository
func NewInviteRepository(pool *ConnectionPool) *InviteRepository {
	return &InviteRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const inviteColumns = `id, meeting_id, invite_code, theme, custom_message, expires_at, max_uses, current_uses, created_at`

// CreateInvite inserts a new invite. A taken code reports ErrDuplicate.
func (r *InviteRepository) CreateInvite(ctx context.Context, invite persistence.MeetingInvite) error {
	if invite.ID == "" || invite.MeetingID == "" || strings.TrimSpace(invite.InviteCode) == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO meeting_invites (`+inviteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		invite.ID,
		invite.MeetingID,
		invite.InviteCode,
		invite.Theme,
		nullString(invite.CustomMessage),
		formatTime(invite.ExpiresAt),
		invite.MaxUses,
		invite.CurrentUses,
		formatTime(nowIfZero(invite.CreatedAt)),
	)
	return r.mapper.MapError(err)
}

// GetInviteByCode retrieves an invite by its code.
func (r *InviteRepository) GetInviteByCode(ctx context.Context, code string) (persistence.MeetingInvite, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return persistence.MeetingInvite{}, persistence.ErrNotFound
	}

	invite, err := scanInvite(r.helper.QueryRow(ctx, `SELECT `+inviteColumns+` FROM meeting_invites WHERE invite_code = ?`, code))
	if err != nil {
		return persistence.MeetingInvite{}, r.mapper.MapError(err)
	}
	return invite, nil
}

// ListInvitesForMeeting returns the meeting's invites, newest first.
func (r *InviteRepository) ListInvitesForMeeting(ctx context.Context, meetingID string) ([]persistence.MeetingInvite, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+inviteColumns+`
		FROM meeting_invites
		WHERE meeting_id = ?
		ORDER BY created_at DESC, id DESC
	`, meetingID)
	if err != nil {
		return nil, r.mapper.MapError(err)
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
		return nil, r.mapper.MapError(err)
	}
	return invites, nil
}

// IncrementInviteUse consumes one use with a single conditional UPDATE. When
// the row does not qualify the invite is re-read to classify the failure.
func (r *InviteRepository) IncrementInviteUse(ctx context.Context, code string, now time.Time) (persistence.MeetingInvite, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return persistence.MeetingInvite{}, persistence.ErrNotFound
	}

	invite, err := scanInvite(r.helper.QueryRow(ctx, `
		UPDATE meeting_invites
		SET current_uses = current_uses + 1
		WHERE invite_code = ? AND current_uses < max_uses AND expires_at >= ?
		RETURNING `+inviteColumns,
		code, formatTime(now),
	))
	if err == nil {
		return invite, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return persistence.MeetingInvite{}, r.mapper.MapError(err)
	}

	current, err := r.GetInviteByCode(ctx, code)
	if err != nil {
		return persistence.MeetingInvite{}, err
	}
	return persistence.MeetingInvite{}, persistence.RejectedUseError(current, now)
}

func scanInvite(row rowScanner) (persistence.MeetingInvite, error) {
	var (
		invite               persistence.MeetingInvite
		customMessage        sql.NullString
		expiresAt, createdAt string
	)
	if err := row.Scan(
		&invite.ID,
		&invite.MeetingID,
		&invite.InviteCode,
		&invite.Theme,
		&customMessage,
		&expiresAt,
		&invite.MaxUses,
		&invite.CurrentUses,
		&createdAt,
	); err != nil {
		return persistence.MeetingInvite{}, err
	}

	invite.CustomMessage = stringPtr(customMessage)
	var err error
	if invite.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return persistence.MeetingInvite{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	if invite.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.MeetingInvite{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return invite, nil
}
