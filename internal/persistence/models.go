package persistence

import "time"

// Employee is a company member allowed to sign in and host meetings.
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

// MeetingSettings is the fixed-shape configuration stored with each meeting.
type MeetingSettings struct {
	EnableGaia           bool   `json:"enableGaia"`
	RecordingEnabled     bool   `json:"recordingEnabled"`
	TranscriptionEnabled bool   `json:"transcriptionEnabled"`
	CarbonTracking       bool   `json:"carbonTracking"`
	VirtualBackgrounds   bool   `json:"virtualBackgrounds"`
	SpatialAudio         bool   `json:"spatialAudio"`
	AIDenoiser           bool   `json:"aiDenoiser"`
	LowLightEnhancement  bool   `json:"lowLightEnhancement"`
	MaxParticipants      int    `json:"maxParticipants"`
	Theme                string `json:"theme"`
}

// Meeting is a persisted video meeting hosted by an employee.
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

// MeetingFilter narrows FindMeetings. Empty fields match every meeting and
// Topics matches meetings sharing at least one topic.
type MeetingFilter struct {
	MeetingType  string
	LocationType string
	Season       string
	Topics       []string
	Limit        int
}

// MeetingInvite is a shareable code granting limited access to a meeting.
type MeetingInvite struct {
	ID            string
	MeetingID     string
	InviteCode    string
	Theme         string
	CustomMessage *string
	ExpiresAt     time.Time
	MaxUses       int
	CurrentUses   int
	CreatedAt     time.Time
}

// MeetingParticipant records one join of a person into a live meeting.
type MeetingParticipant struct {
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

// Session represents an authentication session persisted for an employee.
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
