package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

const participantColumns = `id, meeting_id, display_name, organization, email, is_host, joined_at, left_at, connection_quality`

// CreateParticipant inserts a participant row.
func (s *Store) CreateParticipant(ctx context.Context, participant persistence.MeetingParticipant) error {
	if participant.ID == "" || participant.MeetingID == "" || strings.TrimSpace(participant.DisplayName) == "" {
		return persistence.ErrConstraintViolation
	}
	quality := participant.ConnectionQuality
	if quality == "" {
		quality = "good"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meeting_participants (`+participantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		participant.ID,
		participant.MeetingID,
		participant.DisplayName,
		nullString(participant.Organization),
		nullString(participant.Email),
		participant.IsHost,
		nowIfZero(participant.JoinedAt),
		nullTime(participant.LeftAt),
		quality,
	)
	return mapError(err)
}

// GetParticipant retrieves a participant by ID.
func (s *Store) GetParticipant(ctx context.Context, id string) (persistence.MeetingParticipant, error) {
	if id == "" {
		return persistence.MeetingParticipant{}, persistence.ErrNotFound
	}
	participant, err := scanParticipant(s.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM meeting_participants WHERE id = $1`, id))
	if err != nil {
		return persistence.MeetingParticipant{}, mapError(err)
	}
	return participant, nil
}

// ListParticipants returns the meeting's participants in join order.
func (s *Store) ListParticipants(ctx context.Context, meetingID string) ([]persistence.MeetingParticipant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM meeting_participants
		WHERE meeting_id = $1
		ORDER BY joined_at ASC, id ASC
	`, meetingID)
	if err != nil {
		return nil, mapError(err)
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
		return nil, mapError(err)
	}
	return participants, nil
}

// MarkParticipantLeft sets left_at when it is still unset and returns the
// stored participant either way.
func (s *Store) MarkParticipantLeft(ctx context.Context, id string, at time.Time) (persistence.MeetingParticipant, error) {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE meeting_participants SET left_at = $1
		WHERE id = $2 AND left_at IS NULL
	`, at.UTC(), id); err != nil {
		return persistence.MeetingParticipant{}, mapError(err)
	}
	return s.GetParticipant(ctx, id)
}

// UpdateConnectionQuality stores the latest reported connection quality.
func (s *Store) UpdateConnectionQuality(ctx context.Context, id, quality string) (persistence.MeetingParticipant, error) {
	participant, err := scanParticipant(s.db.QueryRowContext(ctx, `
		UPDATE meeting_participants SET connection_quality = $1
		WHERE id = $2
		RETURNING `+participantColumns,
		quality, id,
	))
	if err != nil {
		return persistence.MeetingParticipant{}, mapError(err)
	}
	return participant, nil
}

func scanParticipant(row rowScanner) (persistence.MeetingParticipant, error) {
	var (
		participant         persistence.MeetingParticipant
		organization, email sql.NullString
		leftAt              sql.NullTime
	)
	if err := row.Scan(
		&participant.ID,
		&participant.MeetingID,
		&participant.DisplayName,
		&organization,
		&email,
		&participant.IsHost,
		&participant.JoinedAt,
		&leftAt,
		&participant.ConnectionQuality,
	); err != nil {
		return persistence.MeetingParticipant{}, err
	}
	participant.Organization = stringPtr(organization)
	participant.Email = stringPtr(email)
	participant.JoinedAt = participant.JoinedAt.UTC()
	participant.LeftAt = timePtr(leftAt)
	return participant, nil
}
