package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

const meetingColumns = `id, room_id, title, description, meeting_type, location_type, topics, host_id,
	started_at, ended_at, duration_minutes, settings, created_at, updated_at, season, scheduled_at`

// CreateMeeting inserts a new meeting. A taken room id reports ErrDuplicate.
func (s *Store) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" || strings.TrimSpace(meeting.RoomID) == "" || meeting.HostID == "" {
		return persistence.ErrConstraintViolation
	}
	topics, settings, err := encodeMeetingJSON(meeting)
	if err != nil {
		return err
	}
	createdAt := nowIfZero(meeting.CreatedAt)
	updatedAt := createdAt
	if !meeting.UpdatedAt.IsZero() {
		updatedAt = meeting.UpdatedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12::jsonb, $13, $14, $15, $16)
	`,
		meeting.ID,
		meeting.RoomID,
		meeting.Title,
		nullString(meeting.Description),
		meeting.MeetingType,
		meeting.LocationType,
		topics,
		meeting.HostID,
		nullTime(meeting.StartedAt),
		nullTime(meeting.EndedAt),
		meeting.DurationMinutes,
		settings,
		createdAt,
		updatedAt,
		nullString(meeting.Season),
		nullTime(meeting.ScheduledAt),
	)
	return mapError(err)
}

// GetMeeting retrieves a meeting by ID.
func (s *Store) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	if id == "" {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	meeting, err := scanMeeting(s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if err != nil {
		return persistence.Meeting{}, mapError(err)
	}
	return meeting, nil
}

// GetMeetingByRoomID retrieves a meeting by its room identifier.
func (s *Store) GetMeetingByRoomID(ctx context.Context, roomID string) (persistence.Meeting, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	meeting, err := scanMeeting(s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE room_id = $1`, roomID))
	if err != nil {
		return persistence.Meeting{}, mapError(err)
	}
	return meeting, nil
}

// ListMeetingsByHost returns the host's meetings, newest first.
func (s *Store) ListMeetingsByHost(ctx context.Context, hostID string, limit int) ([]persistence.Meeting, error) {
	return s.queryMeetings(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE host_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, hostID, nullLimit(limit))
}

// FindMeetings returns meetings matching filter, newest first. The topics
// filter is sent as a JSON array and matched with the jsonb ?| operator.
func (s *Store) FindMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.MeetingType != "" {
		add("meeting_type = $%d", filter.MeetingType)
	}
	if filter.LocationType != "" {
		add("location_type = $%d", filter.LocationType)
	}
	if filter.Season != "" {
		add("season = $%d", filter.Season)
	}
	if len(filter.Topics) > 0 {
		wanted, err := json.Marshal(filter.Topics)
		if err != nil {
			return nil, fmt.Errorf("failed to encode topics filter: %w", err)
		}
		add("topics ?| ARRAY(SELECT jsonb_array_elements_text($%d::jsonb))", string(wanted))
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, nullLimit(filter.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	return s.queryMeetings(ctx, query, args...)
}

func (s *Store) queryMeetings(ctx context.Context, query string, args ...any) ([]persistence.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	meetings := make([]persistence.Meeting, 0)
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return meetings, nil
}

// MarkMeetingStarted sets started_at when it is still unset and returns the
// stored meeting either way.
func (s *Store) MarkMeetingStarted(ctx context.Context, id string, at time.Time) (persistence.Meeting, error) {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET started_at = $1, updated_at = $1
		WHERE id = $2 AND started_at IS NULL
	`, at.UTC(), id); err != nil {
		return persistence.Meeting{}, mapError(err)
	}
	return s.GetMeeting(ctx, id)
}

// MarkMeetingEnded locks the row, and when the meeting has not ended yet
// stores ended_at with the computed duration.
func (s *Store) MarkMeetingEnded(ctx context.Context, id string, at time.Time) (persistence.Meeting, error) {
	var ended persistence.Meeting
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanMeeting(tx.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapError(err)
		}
		if current.EndedAt != nil {
			ended = current
			return nil
		}

		endedAt := at.UTC()
		duration := persistence.MeetingDuration(current.StartedAt, endedAt)
		if _, err := tx.ExecContext(ctx, `
			UPDATE meetings SET ended_at = $1, duration_minutes = $2, updated_at = $1
			WHERE id = $3
		`, endedAt, duration, id); err != nil {
			return mapError(err)
		}

		current.EndedAt = &endedAt
		current.DurationMinutes = duration
		current.UpdatedAt = endedAt
		ended = current
		return nil
	})
	if err != nil {
		return persistence.Meeting{}, err
	}
	return ended, nil
}

func encodeMeetingJSON(meeting persistence.Meeting) (topics, settings string, err error) {
	list := meeting.Topics
	if list == nil {
		list = []string{}
	}
	topicsJSON, err := json.Marshal(list)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode topics: %w", err)
	}
	settingsJSON, err := json.Marshal(meeting.Settings)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode settings: %w", err)
	}
	return string(topicsJSON), string(settingsJSON), nil
}

func scanMeeting(row rowScanner) (persistence.Meeting, error) {
	var (
		meeting            persistence.Meeting
		description        sql.NullString
		topics, settings   []byte
		startedAt, endedAt sql.NullTime
		season             sql.NullString
		scheduledAt        sql.NullTime
	)
	if err := row.Scan(
		&meeting.ID,
		&meeting.RoomID,
		&meeting.Title,
		&description,
		&meeting.MeetingType,
		&meeting.LocationType,
		&topics,
		&meeting.HostID,
		&startedAt,
		&endedAt,
		&meeting.DurationMinutes,
		&settings,
		&meeting.CreatedAt,
		&meeting.UpdatedAt,
		&season,
		&scheduledAt,
	); err != nil {
		return persistence.Meeting{}, err
	}

	meeting.Description = stringPtr(description)
	if err := json.Unmarshal(topics, &meeting.Topics); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to decode topics: %w", err)
	}
	if meeting.Topics == nil {
		meeting.Topics = []string{}
	}
	if err := json.Unmarshal(settings, &meeting.Settings); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	meeting.StartedAt = timePtr(startedAt)
	meeting.EndedAt = timePtr(endedAt)
	meeting.Season = stringPtr(season)
	meeting.ScheduledAt = timePtr(scheduledAt)
	meeting.CreatedAt = meeting.CreatedAt.UTC()
	meeting.UpdatedAt = meeting.UpdatedAt.UTC()
	return meeting, nil
}
