package application

import "time"

// Organization is the company every employee belongs to.
const Organization = "Sirius Regenerative Solutions"

// Policy constants for invites, host listings and grants.
const (
	DefaultInviteTheme     = "forest"
	InviteTTL              = 7 * 24 * time.Hour
	InviteMaxUses          = 100
	HostMeetingsLimit      = 10
	MeetingSearchLimit     = 50
	MaxMeetingSearchLimit  = 200
	EmployeeSearchLimit    = 20
	ParticipantGrantTTL    = 24 * time.Hour
	DefaultLocationType    = "remote"
	DefaultConnectionState = "good"
)

// Principal represents the authenticated employee invoking a service method.
type Principal struct {
	EmployeeID string
	FullName   string
	Role       string
}

// Employee is a member of the company directory.
type Employee struct {
	NationalID   string
	GivenNames   string
	FamilyNames  string
	FullName     string
	Role         string
	Organization string
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HostSummary is the public view of a meeting host shown on invite previews.
type HostSummary struct {
	NationalID   string
	FullName     string
	Role         string
	Organization string
}

// MeetingSettings is the fixed policy attached to every meeting.
type MeetingSettings struct {
	EnableGaia           bool
	RecordingEnabled     bool
	TranscriptionEnabled bool
	CarbonTracking       bool
	VirtualBackgrounds   bool
	SpatialAudio         bool
	AIDenoiser           bool
	LowLightEnhancement  bool
	MaxParticipants      int
	Theme                string
}

// DefaultMeetingSettings returns the settings stored with new meetings.
func DefaultMeetingSettings() MeetingSettings {
	return MeetingSettings{
		EnableGaia:           true,
		RecordingEnabled:     true,
		TranscriptionEnabled: true,
		CarbonTracking:       true,
		VirtualBackgrounds:   true,
		SpatialAudio:         true,
		AIDenoiser:           true,
		LowLightEnhancement:  true,
		MaxParticipants:      50,
		Theme:                DefaultInviteTheme,
	}
}

// Meeting is a video meeting hosted by an employee.
type Meeting struct {
	ID              string
	RoomID          string
	Title           string
	Description     *string
	MeetingType     string
	LocationType    string
	Season          *string
	Topics          []string
	HostID          string
	ScheduledAt     *time.Time
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationMinutes int
	Settings        MeetingSettings
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Invite is a shareable code granting limited access to a meeting.
type Invite struct {
	ID            string
	MeetingID     string
	Code          string
	Theme         string
	CustomMessage *string
	ExpiresAt     time.Time
	MaxUses       int
	CurrentUses   int
	CreatedAt     time.Time
}

// Expired reports whether the invite is past its expiry at now.
func (i Invite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Exhausted reports whether every use of the invite has been consumed.
func (i Invite) Exhausted() bool {
	return i.CurrentUses >= i.MaxUses
}

// Participant records one join of a person into a meeting.
type Participant struct {
	ID                string
	MeetingID         string
	DisplayName       string
	Organization      *string
	Email             *string
	IsHost            bool
	JoinedAt          time.Time
	LeftAt            *time.Time
	ConnectionQuality string
}

// Session represents an authenticated session issued to an employee.
type Session struct {
	ID          string
	EmployeeID  string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// ParticipantRole is the role a joiner holds in a meeting.
type ParticipantRole string

const (
	RoleHost        ParticipantRole = "host"
	RoleParticipant ParticipantRole = "participant"
)

// Grant is a server-signed statement binding its bearer to a meeting.
type Grant struct {
	ID            string
	MeetingID     string
	RoomID        string
	Role          ParticipantRole
	ParticipantID string
	Subject       string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// RoleProof carries what a caller can show to claim the host role: an
// authenticated session, a signed grant, or both.
type RoleProof struct {
	Principal *Principal
	Grant     string
}

// CreateMeetingParams wraps the data required to create a meeting.
type CreateMeetingParams struct {
	HostID       string
	Title        string
	Description  *string
	MeetingType  string
	Topics       []string
	LocationType string
	Season       string
	ScheduledAt  *time.Time
}

// MeetingFilter selects meetings by their agricultural context. Empty
// fields match everything and Topics matches any shared topic.
type MeetingFilter struct {
	MeetingType  string
	LocationType string
	Season       string
	Topics       []string
	Limit        int
}

// IssueInviteParams wraps the data required to issue an invite.
type IssueInviteParams struct {
	MeetingID     string
	Theme         string
	CustomMessage *string
}

// CreateMeetingWithInviteParams combines meeting creation with its first invite.
type CreateMeetingWithInviteParams struct {
	Meeting       CreateMeetingParams
	Theme         string
	CustomMessage *string
}

// MeetingWithInvite is the outcome of CreateMeetingWithInvite. Invite is nil
// when issuance failed after the meeting was stored.
type MeetingWithInvite struct {
	Meeting        Meeting
	Invite         *Invite
	HostGrant      string
	HostGrantUntil time.Time
}

// InvitePreview is what an invite code resolves to.
type InvitePreview struct {
	Invite  Invite
	Meeting Meeting
	Host    HostSummary
}

// MeetingDetails is a meeting with its invites, newest first.
type MeetingDetails struct {
	Meeting Meeting
	Invites []Invite
}

// RegisterParticipantParams wraps the data required to record a join.
type RegisterParticipantParams struct {
	MeetingID    string
	DisplayName  string
	Organization *string
	Email        *string
	IsHost       bool
}

// JoinMeetingParams wraps the data required to join through an invite code.
type JoinMeetingParams struct {
	InviteCode   string
	DisplayName  string
	Organization *string
	Email        *string
	Proof        RoleProof
}

// JoinResult is the outcome of a successful join.
type JoinResult struct {
	Meeting     Meeting
	Participant Participant
	Role        ParticipantRole
	Grant       string
	GrantUntil  time.Time
}

// RegisterEmployeeParams wraps the data required to add an employee.
type RegisterEmployeeParams struct {
	NationalID  string
	GivenNames  string
	FamilyNames string
	Role        string
	Inactive    bool
}

// AuthenticateParams captures the data required to sign in.
type AuthenticateParams struct {
	NationalID  string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful sign in.
type AuthenticateResult struct {
	Employee Employee
	Session  Session
}

// RTCTokenParams wraps a request for RTC media credentials.
type RTCTokenParams struct {
	Channel string
	UID     string
	Role    string
	Grant   string
}

// RTCToken is a signed credential for the RTC provider.
type RTCToken struct {
	Token     string
	AppID     string
	Channel   string
	UID       string
	Role      string
	ExpiresAt time.Time
}

var (
	meetingTypes = map[string]struct{}{
		"team": {}, "field_day": {}, "training": {}, "partner": {},
		"research": {}, "planning": {}, "harvest_review": {},
	}
	locationTypes = map[string]struct{}{
		"office": {}, "field": {}, "greenhouse": {}, "remote": {},
		"laboratory": {}, "storage_facility": {},
	}
	seasons = map[string]struct{}{
		"spring": {}, "summer": {}, "fall": {}, "winter": {},
	}
	employeeRoles = map[string]struct{}{
		"farmer": {}, "agronomist": {}, "researcher": {}, "partner": {},
		"consultant": {}, "student": {}, "investor": {},
	}
	connectionQualities = map[string]struct{}{
		"excellent": {}, "good": {}, "fair": {}, "poor": {},
	}
)

func isOneOf(set map[string]struct{}, value string) bool {
	_, ok := set[value]
	return ok
}
