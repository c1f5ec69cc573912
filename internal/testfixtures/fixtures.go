package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

var (
	employeeCounter    uint64
	meetingCounter     uint64
	inviteCounter      uint64
	participantCounter uint64
	sessionCounter     uint64
)

var referenceTime = time.Date(2025, time.June, 3, 14, 30, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Organization is the organization stamped on fixture employees.
const Organization = "Sirius Regenerative Solutions"

// DefaultSettings mirrors the policy settings stored with every meeting.
func DefaultSettings() persistence.MeetingSettings {
	return persistence.MeetingSettings{
		EnableGaia:           true,
		RecordingEnabled:     true,
		TranscriptionEnabled: true,
		CarbonTracking:       true,
		VirtualBackgrounds:   true,
		SpatialAudio:         true,
		AIDenoiser:           true,
		LowLightEnhancement:  true,
		MaxParticipants:      50,
		Theme:                "forest",
	}
}

// ----------------------------- Employees -----------------------------

// EmployeeOption configures a generated employee.
type EmployeeOption func(*persistence.Employee)

// NewEmployee returns a deterministic active employee.
func NewEmployee(opts ...EmployeeOption) persistence.Employee {
	idx := atomic.AddUint64(&employeeCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	employee := persistence.Employee{
		NationalID:   fmt.Sprintf("10%08d", idx),
		GivenNames:   fmt.Sprintf("Empleado %03d", idx),
		FamilyNames:  fmt.Sprintf("Apellido %03d", idx),
		Role:         "agronomist",
		Organization: Organization,
		IsActive:     true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	employee.FullName = employee.GivenNames + " " + employee.FamilyNames
	for _, opt := range opts {
		opt(&employee)
	}
	return employee
}

// WithNationalID overrides the generated national ID.
func WithNationalID(id string) EmployeeOption {
	return func(e *persistence.Employee) { e.NationalID = id }
}

// WithNames sets given and family names and recomputes the full name.
func WithNames(given, family string) EmployeeOption {
	return func(e *persistence.Employee) {
		e.GivenNames = given
		e.FamilyNames = family
		e.FullName = given + " " + family
	}
}

// WithRole overrides the employee role.
func WithRole(role string) EmployeeOption {
	return func(e *persistence.Employee) { e.Role = role }
}

// Inactive marks the employee as deactivated.
func Inactive() EmployeeOption {
	return func(e *persistence.Employee) { e.IsActive = false }
}

// ----------------------------- Meetings -----------------------------

// MeetingOption configures a generated meeting.
type MeetingOption func(*persistence.Meeting)

// NewMeeting returns a deterministic, not yet started meeting hosted by hostID.
func NewMeeting(hostID string, opts ...MeetingOption) persistence.Meeting {
	idx := atomic.AddUint64(&meetingCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Second)
	description := fmt.Sprintf("Reunión creada por empleado %s", hostID)
	meeting := persistence.Meeting{
		ID:           fmt.Sprintf("meeting-%03d", idx),
		RoomID:       fmt.Sprintf("sirius-team-%d", created.UnixMilli()+int64(idx)),
		Title:        fmt.Sprintf("Reunión %03d", idx),
		Description:  &description,
		MeetingType:  "team",
		LocationType: "remote",
		Topics:       []string{},
		HostID:       hostID,
		Settings:     DefaultSettings(),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&meeting)
	}
	return meeting
}

// WithMeetingID overrides the generated meeting ID.
func WithMeetingID(id string) MeetingOption {
	return func(m *persistence.Meeting) { m.ID = id }
}

// WithRoomID overrides the generated room identifier.
func WithRoomID(roomID string) MeetingOption {
	return func(m *persistence.Meeting) { m.RoomID = roomID }
}

// WithMeetingType overrides the meeting type.
func WithMeetingType(meetingType string) MeetingOption {
	return func(m *persistence.Meeting) { m.MeetingType = meetingType }
}

// WithLocationType overrides the location type.
func WithLocationType(locationType string) MeetingOption {
	return func(m *persistence.Meeting) { m.LocationType = locationType }
}

// WithSeason sets the agricultural season.
func WithSeason(season string) MeetingOption {
	return func(m *persistence.Meeting) { m.Season = &season }
}

// WithScheduledAt sets the planned start.
func WithScheduledAt(t time.Time) MeetingOption {
	return func(m *persistence.Meeting) { m.ScheduledAt = &t }
}

// WithMeetingCreatedAt sets both timestamps of the meeting.
func WithMeetingCreatedAt(t time.Time) MeetingOption {
	return func(m *persistence.Meeting) {
		m.CreatedAt = t
		m.UpdatedAt = t
	}
}

// WithTopics sets the meeting topics.
func WithTopics(topics ...string) MeetingOption {
	return func(m *persistence.Meeting) { m.Topics = topics }
}

// ----------------------------- Invites -----------------------------

// InviteOption configures a generated invite.
type InviteOption func(*persistence.MeetingInvite)

// NewInvite returns a fresh invite for meetingID valid for seven days from
// ReferenceTime with 100 uses.
func NewInvite(meetingID string, opts ...InviteOption) persistence.MeetingInvite {
	idx := atomic.AddUint64(&inviteCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Second)
	invite := persistence.MeetingInvite{
		ID:         fmt.Sprintf("invite-%03d", idx),
		MeetingID:  meetingID,
		InviteCode: fmt.Sprintf("roble-rio-%d", idx),
		Theme:      "forest",
		ExpiresAt:  referenceTime.Add(7 * 24 * time.Hour),
		MaxUses:    100,
		CreatedAt:  created,
	}
	for _, opt := range opts {
		opt(&invite)
	}
	return invite
}

// WithInviteCode overrides the generated code.
func WithInviteCode(code string) InviteOption {
	return func(i *persistence.MeetingInvite) { i.InviteCode = code }
}

// WithUses sets current and maximum uses.
func WithUses(current, maxUses int) InviteOption {
	return func(i *persistence.MeetingInvite) {
		i.CurrentUses = current
		i.MaxUses = maxUses
	}
}

// WithExpiresAt overrides the expiry.
func WithExpiresAt(t time.Time) InviteOption {
	return func(i *persistence.MeetingInvite) { i.ExpiresAt = t }
}

// WithInviteCreatedAt overrides the creation timestamp.
func WithInviteCreatedAt(t time.Time) InviteOption {
	return func(i *persistence.MeetingInvite) { i.CreatedAt = t }
}

// ----------------------------- Participants -----------------------------

// ParticipantOption configures a generated participant.
type ParticipantOption func(*persistence.MeetingParticipant)

// NewParticipant returns a participant of meetingID who joined at a
// fixture-ordered instant.
func NewParticipant(meetingID string, opts ...ParticipantOption) persistence.MeetingParticipant {
	idx := atomic.AddUint64(&participantCounter, 1)
	participant := persistence.MeetingParticipant{
		ID:                fmt.Sprintf("participant-%03d", idx),
		MeetingID:         meetingID,
		DisplayName:       fmt.Sprintf("Invitado %03d", idx),
		JoinedAt:          referenceTime.Add(time.Duration(idx) * time.Second),
		ConnectionQuality: "good",
	}
	for _, opt := range opts {
		opt(&participant)
	}
	return participant
}

// WithDisplayName overrides the display name.
func WithDisplayName(name string) ParticipantOption {
	return func(p *persistence.MeetingParticipant) { p.DisplayName = name }
}

// WithJoinedAt overrides the join timestamp.
func WithJoinedAt(t time.Time) ParticipantOption {
	return func(p *persistence.MeetingParticipant) { p.JoinedAt = t }
}

// AsHost flags the participant as the meeting host.
func AsHost() ParticipantOption {
	return func(p *persistence.MeetingParticipant) { p.IsHost = true }
}

// ----------------------------- Sessions -----------------------------

// SessionOption configures a generated session.
type SessionOption func(*persistence.Session)

// NewSession returns a session for employeeID expiring a day after ReferenceTime.
func NewSession(employeeID string, opts ...SessionOption) persistence.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	session := persistence.Session{
		ID:          fmt.Sprintf("session-%03d", idx),
		EmployeeID:  employeeID,
		Token:       fmt.Sprintf("%064x", idx),
		Fingerprint: "test-agent",
		ExpiresAt:   referenceTime.Add(24 * time.Hour),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) SessionOption {
	return func(s *persistence.Session) { s.Token = token }
}

// WithSessionExpiresAt overrides the expiry.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(s *persistence.Session) { s.ExpiresAt = t }
}
