package persistence

import (
	"context"
	"time"
)

// EmployeeRepository stores the employee directory.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) error
	GetEmployee(ctx context.Context, nationalID string) (Employee, error)
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
	SearchEmployees(ctx context.Context, query string, limit int) ([]Employee, error)
	TouchLastLogin(ctx context.Context, nationalID string, at time.Time) error
}

// MeetingRepository stores meetings. Start and end transitions only apply
// when the corresponding timestamp is unset and return the stored row.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	GetMeetingByRoomID(ctx context.Context, roomID string) (Meeting, error)
	ListMeetingsByHost(ctx context.Context, hostID string, limit int) ([]Meeting, error)
	FindMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
	MarkMeetingStarted(ctx context.Context, id string, at time.Time) (Meeting, error)
	MarkMeetingEnded(ctx context.Context, id string, at time.Time) (Meeting, error)
}

// InviteRepository stores invite codes.
//
// IncrementInviteUse performs a single conditional increment. When no row
// qualifies it reports ErrNotFound, ErrExpired or ErrUsageLimitReached.
type InviteRepository interface {
	CreateInvite(ctx context.Context, invite MeetingInvite) error
	GetInviteByCode(ctx context.Context, code string) (MeetingInvite, error)
	ListInvitesForMeeting(ctx context.Context, meetingID string) ([]MeetingInvite, error)
	IncrementInviteUse(ctx context.Context, code string, now time.Time) (MeetingInvite, error)
}

// ParticipantRepository stores participant joins.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, participant MeetingParticipant) error
	GetParticipant(ctx context.Context, id string) (MeetingParticipant, error)
	ListParticipants(ctx context.Context, meetingID string) ([]MeetingParticipant, error)
	MarkParticipantLeft(ctx context.Context, id string, at time.Time) (MeetingParticipant, error)
	UpdateConnectionQuality(ctx context.Context, id, quality string) (MeetingParticipant, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// Store bundles every repository with lifecycle hooks of a backend.
type Store interface {
	EmployeeRepository
	MeetingRepository
	InviteRepository
	ParticipantRepository
	SessionRepository

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// MeetingDuration returns whole minutes between start and end, zero when
// the meeting never started or the clock moved backwards.
func MeetingDuration(startedAt *time.Time, endedAt time.Time) int {
	if startedAt == nil || startedAt.IsZero() || endedAt.Before(*startedAt) {
		return 0
	}
	return int(endedAt.Sub(*startedAt) / time.Minute)
}

// RejectedUseError explains why an invite cannot take another use at now:
// ErrExpired once now is past the expiry, ErrUsageLimitReached otherwise.
func RejectedUseError(invite MeetingInvite, now time.Time) error {
	if now.After(invite.ExpiresAt) {
		return ErrExpired
	}
	return ErrUsageLimitReached
}
