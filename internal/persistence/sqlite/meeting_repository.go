package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

// MeetingRepository implements persistence.MeetingRepository using SQLite
type MeetingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMeetingRepository creates a new SQLite meeting repository
func NewMeetingRepository(pool *ConnectionPool) *MeetingRepository {
	return &MeetingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const meetingColumns = `id, room_id, title, description, meeting_type, location_type, topics, host_id,
	started_at, ended_at, duration_minutes, settings, created_at, updated_at, season, scheduled_at`

// CreateMeeting inserts a new meeting. A taken room id reports ErrDuplicate.
func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" || strings.TrimSpace(meeting.RoomID) == "" || meeting.HostID == "" {
		return persistence.ErrConstraintViolation
	}

	topics, settings, err := encodeMeetingJSON(meeting)
	if err != nil {
		return err
	}

	createdAt := nowIfZero(meeting.CreatedAt)
	updatedAt := meeting.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = r.helper.Exec(ctx, `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		meeting.ID,
		meeting.RoomID,
		meeting.Title,
		nullString(meeting.Description),
		meeting.MeetingType,
		meeting.LocationType,
		topics,
		meeting.HostID,
		formatTimePtr(meeting.StartedAt),
		formatTimePtr(meeting.EndedAt),
		meeting.DurationMinutes,
		settings,
		formatTime(createdAt),
		formatTime(updatedAt),
		nullString(meeting.Season),
		formatTimePtr(meeting.ScheduledAt),
	)
	return r.mapper.MapError(err)
}

// GetMeeting retrieves a meeting by ID.
func (r *MeetingRepository) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	if id == "" {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return r.getMeeting(r.helper.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
}

// GetMeetingByRoomID retrieves a meeting by its room identifier.
func (r *MeetingRepository) GetMeetingByRoomID(ctx context.Context, roomID string) (persistence.Meeting, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return r.getMeeting(r.helper.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE room_id = ?`, roomID))
}

// ListMeetingsByHost returns the host's meetings, newest first.
func (r *MeetingRepository) ListMeetingsByHost(ctx context.Context, hostID string, limit int) ([]persistence.Meeting, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.queryMeetings(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE host_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, hostID, limit)
}

// FindMeetings returns meetings matching filter, newest first. Topics are
// compared against the stored JSON array with json_each.
func (r *MeetingRepository) FindMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	var (
		where []string
		args  []any
	)
	if filter.MeetingType != "" {
		where = append(where, "meeting_type = ?")
		args = append(args, filter.MeetingType)
	}
	if filter.LocationType != "" {
		where = append(where, "location_type = ?")
		args = append(args, filter.LocationType)
	}
	if filter.Season != "" {
		where = append(where, "season = ?")
		args = append(args, filter.Season)
	}
	if len(filter.Topics) > 0 {
		wanted, err := json.Marshal(filter.Topics)
		if err != nil {
			return nil, fmt.Errorf("failed to encode topics filter: %w", err)
		}
		where = append(where, `EXISTS (
			SELECT 1 FROM json_each(meetings.topics) AS t
			WHERE t.value IN (SELECT value FROM json_each(?))
		)`)
		args = append(args, string(wanted))
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	return r.queryMeetings(ctx, query, args...)
}

func (r *MeetingRepository) queryMeetings(ctx context.Context, query string, args ...any) ([]persistence.Meeting, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
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
		return nil, r.mapper.MapError(err)
	}
	return meetings, nil
}

// MarkMeetingStarted sets started_at when it is still unset and returns the
// stored meeting either way.
func (r *MeetingRepository) MarkMeetingStarted(ctx context.Context, id string, at time.Time) (persistence.Meeting, error) {
	if _, err := r.helper.Exec(ctx, `
		UPDATE meetings SET started_at = ?, updated_at = ?
		WHERE id = ? AND started_at IS NULL
	`, formatTime(at), formatTime(at), id); err != nil {
		return persistence.Meeting{}, r.mapper.MapError(err)
	}
	return r.GetMeeting(ctx, id)
}

// MarkMeetingEnded sets ended_at and the duration when the meeting has not
// ended yet and returns the stored meeting either way.
func (r *MeetingRepository) MarkMeetingEnded(ctx context.Context, id string, at time.Time) (persistence.Meeting, error) {
	var ended persistence.Meeting
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := scanMeeting(tx.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
		if err != nil {
			return r.mapper.MapError(err)
		}
		if current.EndedAt != nil {
			ended = current
			return nil
		}

		endedAt := at.UTC()
		duration := persistence.MeetingDuration(current.StartedAt, endedAt)
		if _, err := tx.ExecContext(ctx, `
			UPDATE meetings SET ended_at = ?, duration_minutes = ?, updated_at = ?
			WHERE id = ? AND ended_at IS NULL
		`, formatTime(endedAt), duration, formatTime(endedAt), id); err != nil {
			return r.mapper.MapError(err)
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

func (r *MeetingRepository) getMeeting(row *sql.Row) (persistence.Meeting, error) {
	meeting, err := scanMeeting(row)
	if err != nil {
		return persistence.Meeting{}, r.mapper.MapError(err)
	}
	return meeting, nil
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
		meeting              persistence.Meeting
		description          sql.NullString
		topics, settings     string
		startedAt, endedAt   sql.NullString
		createdAt, updatedAt string
		season, scheduledAt  sql.NullString
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
		&createdAt,
		&updatedAt,
		&season,
		&scheduledAt,
	); err != nil {
		return persistence.Meeting{}, err
	}

	meeting.Description = stringPtr(description)
	meeting.Season = stringPtr(season)
	if err := json.Unmarshal([]byte(topics), &meeting.Topics); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to decode topics: %w", err)
	}
	if meeting.Topics == nil {
		meeting.Topics = []string{}
	}
	if err := json.Unmarshal([]byte(settings), &meeting.Settings); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to decode settings: %w", err)
	}

	var err error
	if meeting.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if meeting.EndedAt, err = parseTimePtr(endedAt); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse ended_at: %w", err)
	}
	if meeting.ScheduledAt, err = parseTimePtr(scheduledAt); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse scheduled_at: %w", err)
	}
	if meeting.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if meeting.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return meeting, nil
}
