package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

// ParticipantRepository implements persistence.ParticipantRepository using SQLite
type ParticipantRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewParticipantRepository creates a new SQLite participant repository
func NewParticipantRepository(pool *ConnectionPool) *ParticipantRepository {
	return &ParticipantRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const participantColumns = `id, meeting_id, display_name, organization, email, is_host, joined_at, left_at, connection_quality`

// CreateParticipant inserts a participant row.
func (r *ParticipantRepository) CreateParticipant(ctx context.Context, participant persistence.MeetingParticipant) error {
	if participant.ID == "" || participant.MeetingID == "" || strings.TrimSpace(participant.DisplayName) == "" {
		return persistence.ErrConstraintViolation
	}
	quality := participant.ConnectionQuality
	if quality == "" {
		quality = "good"
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO meeting_participants (`+participantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		participant.ID,
		participant.MeetingID,
		participant.DisplayName,
		nullString(participant.Organization),
		nullString(participant.Email),
		participant.IsHost,
		formatTime(nowIfZero(participant.JoinedAt)),
		formatTimePtr(participant.LeftAt),
		quality,
	)
	return r.mapper.MapError(err)
}

// GetParticipant retrieves a participant by ID.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, id string) (persistence.MeetingParticipant, error) {
	if id == "" {
		return persistence.MeetingParticipant{}, persistence.ErrNotFound
	}
	participant, err := scanParticipant(r.helper.QueryRow(ctx, `SELECT `+participantColumns+` FROM meeting_participants WHERE id = ?`, id))
	if err != nil {
		return persistence.MeetingParticipant{}, r.mapper.MapError(err)
	}
	return participant, nil
}

// ListParticipants returns the meeting's participants in join order.
func (r *ParticipantRepository) ListParticipants(ctx context.Context, meetingID string) ([]persistence.MeetingParticipant, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+participantColumns+`
		FROM meeting_participants
		WHERE meeting_id = ?
		ORDER BY joined_at ASC, id ASC
	`, meetingID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	participants := make([]persistence.MeetingParticipant, 0)
	for rows.Next() {
		participant, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return participants, nil
}

// MarkParticipantLeft sets left_at when it is still unset and returns the
// stored participant either way.
func (r *ParticipantRepository) MarkParticipantLeft(ctx context.Context, id string, at time.Time) (persistence.MeetingParticipant, error) {
	if _, err := r.helper.Exec(ctx, `
		UPDATE meeting_participants SET left_at = ?
		WHERE id = ? AND left_at IS NULL
	`, formatTime(at), id); err != nil {
		return persistence.MeetingParticipant{}, r.mapper.MapError(err)
	}
	return r.GetParticipant(ctx, id)
}

// UpdateConnectionQuality stores the latest reported connection quality.
func (r *ParticipantRepository) UpdateConnectionQuality(ctx context.Context, id, quality string) (persistence.MeetingParticipant, error) {
	result, err := r.helper.Exec(ctx, `
		UPDATE meeting_participants SET connection_quality = ? WHERE id = ?
	`, quality, id)
	if err != nil {
		return persistence.MeetingParticipant{}, r.mapper.MapError(err)
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return persistence.MeetingParticipant{}, err
	}
	if affected == 0 {
		return persistence.MeetingParticipant{}, persistence.ErrNotFound
	}
	return r.GetParticipant(ctx, id)
}

func scanParticipant(row rowScanner) (persistence.MeetingParticipant, error) {
	var (
		participant         persistence.MeetingParticipant
		organization, email sql.NullString
		joinedAt            string
		leftAt              sql.NullString
	)
	if err := row.Scan(
		&participant.ID,
		&participant.MeetingID,
		&participant.DisplayName,
		&organization,
		&email,
		&participant.IsHost,
		&joinedAt,
		&leftAt,
		&participant.ConnectionQuality,
	); err != nil {
		return persistence.MeetingParticipant{}, err
	}

	participant.Organization = stringPtr(organization)
	participant.Email = stringPtr(email)
	var err error
	if participant.JoinedAt, err = parseTime(joinedAt); err != nil {
		return persistence.MeetingParticipant{}, fmt.Errorf("failed to parse joined_at: %w", err)
	}
	if participant.LeftAt, err = parseTimePtr(leftAt); err != nil {
		return persistence.MeetingParticipant{}, fmt.Errorf("failed to parse left_at: %w", err)
	}
	return participant, nil
}
