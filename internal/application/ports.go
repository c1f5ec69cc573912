package application

import (
	"context"
	"time"
)

// EmployeeRepository captures the directory operations needed by the services.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) error
	GetEmployee(ctx context.Context, nationalID string) (Employee, error)
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
	SearchEmployees(ctx context.Context, query string, limit int) ([]Employee, error)
	TouchLastLogin(ctx context.Context, nationalID string, at time.Time) error
}

// MeetingRepository captures meeting persistence. Start and end transitions
// only apply while the corresponding timestamp is unset.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	GetMeetingByRoomID(ctx context.Context, roomID string) (Meeting, error)
	ListMeetingsByHost(ctx context.Context, hostID string, limit int) ([]Meeting, error)
	FindMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
	MarkMeetingStarted(ctx context.Context, id string, at time.Time) (Meeting, error)
	MarkMeetingEnded(ctx context.Context, id string, at time.Time) (Meeting, error)
}

// InviteRepository captures invite persistence. IncrementInviteUse must be
// a single atomic conditional increment.
type InviteRepository interface {
	CreateInvite(ctx context.Context, invite Invite) error
	GetInviteByCode(ctx context.Context, code string) (Invite, error)
	ListInvitesForMeeting(ctx context.Context, meetingID string) ([]Invite, error)
	IncrementInviteUse(ctx context.Context, code string, now time.Time) (Invite, error)
}

// ParticipantRepository captures participant persistence.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, participant Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	ListParticipants(ctx context.Context, meetingID string) ([]Participant, error)
	MarkParticipantLeft(ctx context.Context, id string, at time.Time) (Participant, error)
	UpdateConnectionQuality(ctx context.Context, id, quality string) (Participant, error)
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// GrantSigner signs and verifies meeting grants. Verify reports
// ErrUnauthorized for tokens that are malformed, tampered with or expired.
type GrantSigner interface {
	Sign(grant Grant) (string, error)
	Verify(token string) (Grant, error)
}

// RTCTokenIssuer mints media credentials for the RTC provider.
type RTCTokenIssuer interface {
	Configured() bool
	Issue(channel, uid, role string) (RTCToken, error)
}

// Metrics receives domain events worth counting.
type Metrics interface {
	MeetingCreated(meetingType string)
	InviteIssued(theme string)
	InviteConsumed(outcome string)
	ParticipantJoined(role ParticipantRole)
	MeetingEnded(durationMinutes int)
}

type noopMetrics struct{}

func (noopMetrics) MeetingCreated(string) {}
func (noopMetrics) InviteIssued(string) {}
func (noopMetrics) InviteConsumed(string) {}
func (noopMetrics) ParticipantJoined(ParticipantRole) {}
func (noopMetrics) MeetingEnded(int) {}
