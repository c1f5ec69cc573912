package http

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/example/sirius-meet/internal/application"
)

type employeeResponse struct {
	NationalID   string  `json:"national_id"`
	GivenNames   string  `json:"given_names"`
	FamilyNames  string  `json:"family_names"`
	FullName     string  `json:"full_name"`
	Role         string  `json:"role"`
	Organization string  `json:"organization"`
	IsActive     bool    `json:"is_active"`
	LastLogin    *string `json:"last_login,omitempty"`
}

type hostResponse struct {
	NationalID   string `json:"national_id"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
}

type settingsResponse struct {
	EnableGaia           bool   `json:"enable_gaia"`
	RecordingEnabled     bool   `json:"recording_enabled"`
	TranscriptionEnabled bool   `json:"transcription_enabled"`
	CarbonTracking       bool   `json:"carbon_tracking"`
	VirtualBackgrounds   bool   `json:"virtual_backgrounds"`
	SpatialAudio         bool   `json:"spatial_audio"`
	AIDenoiser           bool   `json:"ai_denoiser"`
	LowLightEnhancement  bool   `json:"low_light_enhancement"`
	MaxParticipants      int    `json:"max_participants"`
	Theme                string `json:"theme"`
}

type meetingResponse struct {
	ID              string           `json:"id"`
	RoomID          string           `json:"room_id"`
	Title           string           `json:"title"`
	Description     *string          `json:"description,omitempty"`
	MeetingType     string           `json:"meeting_type"`
	LocationType    string           `json:"location_type"`
	Season          *string          `json:"season,omitempty"`
	Topics          []string         `json:"topics"`
	HostID          string           `json:"host_id"`
	ScheduledAt     *string          `json:"scheduled_at,omitempty"`
	StartedAt       *string          `json:"started_at,omitempty"`
	EndedAt         *string          `json:"ended_at,omitempty"`
	DurationMinutes int              `json:"duration_minutes"`
	Settings        settingsResponse `json:"settings"`
	CreatedAt       string           `json:"created_at"`
	UpdatedAt       string           `json:"updated_at"`
	Invites         []inviteResponse `json:"invites,omitempty"`
}

type inviteResponse struct {
	ID            string  `json:"id"`
	MeetingID     string  `json:"meeting_id"`
	Code          string  `json:"invite_code"`
	Theme         string  `json:"theme"`
	CustomMessage *string `json:"custom_message,omitempty"`
	ExpiresAt     string  `json:"expires_at"`
	MaxUses       int     `json:"max_uses"`
	CurrentUses   int     `json:"current_uses"`
	CreatedAt     string  `json:"created_at"`
}

type participantResponse struct {
	ID                string  `json:"id"`
	MeetingID         string  `json:"meeting_id"`
	DisplayName       string  `json:"display_name"`
	Organization      *string `json:"organization,omitempty"`
	Email             *string `json:"email,omitempty"`
	IsHost            bool    `json:"is_host"`
	JoinedAt          string  `json:"joined_at"`
	LeftAt            *string `json:"left_at,omitempty"`
	ConnectionQuality string  `json:"connection_quality"`
}

type invitePreviewResponse struct {
	Invite  inviteResponse  `json:"invite"`
	Meeting meetingResponse `json:"meeting"`
	Host    hostResponse    `json:"host"`
}

type joinResponse struct {
	Meeting        meetingResponse     `json:"meeting"`
	Participant    participantResponse `json:"participant"`
	Role           string              `json:"role"`
	Grant          string              `json:"grant"`
	GrantExpiresAt string              `json:"grant_expires_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}

func toEmployeeResponse(employee application.Employee) employeeResponse {
	return employeeResponse{
		NationalID:   employee.NationalID,
		GivenNames:   employee.GivenNames,
		FamilyNames:  employee.FamilyNames,
		FullName:     employee.FullName,
		Role:         employee.Role,
		Organization: employee.Organization,
		IsActive:     employee.IsActive,
		LastLogin:    formatTimePtr(employee.LastLogin),
	}
}

func toEmployeeResponses(employees []application.Employee) []employeeResponse {
	out := make([]employeeResponse, 0, len(employees))
	for _, employee := range employees {
		out = append(out, toEmployeeResponse(employee))
	}
	return out
}

func toMeetingResponse(meeting application.Meeting) meetingResponse {
	topics := meeting.Topics
	if topics == nil {
		topics = []string{}
	}
	s := meeting.Settings
	return meetingResponse{
		ID:              meeting.ID,
		RoomID:          meeting.RoomID,
		Title:           meeting.Title,
		Description:     meeting.Description,
		MeetingType:     meeting.MeetingType,
		LocationType:    meeting.LocationType,
		Season:          meeting.Season,
		Topics:          topics,
		HostID:          meeting.HostID,
		ScheduledAt:     formatTimePtr(meeting.ScheduledAt),
		StartedAt:       formatTimePtr(meeting.StartedAt),
		EndedAt:         formatTimePtr(meeting.EndedAt),
		DurationMinutes: meeting.DurationMinutes,
		Settings: settingsResponse{
			EnableGaia:           s.EnableGaia,
			RecordingEnabled:     s.RecordingEnabled,
			TranscriptionEnabled: s.TranscriptionEnabled,
			CarbonTracking:       s.CarbonTracking,
			VirtualBackgrounds:   s.VirtualBackgrounds,
			SpatialAudio:         s.SpatialAudio,
			AIDenoiser:           s.AIDenoiser,
			LowLightEnhancement:  s.LowLightEnhancement,
			MaxParticipants:      s.MaxParticipants,
			Theme:                s.Theme,
		},
		CreatedAt: formatTime(meeting.CreatedAt),
		UpdatedAt: formatTime(meeting.UpdatedAt),
	}
}

// toMeetingDetailsResponse includes invites only for the host.
func toMeetingDetailsResponse(details application.MeetingDetails, withInvites bool) meetingResponse {
	resp := toMeetingResponse(details.Meeting)
	if withInvites {
		resp.Invites = make([]inviteResponse, 0, len(details.Invites))
		for _, invite := range details.Invites {
			resp.Invites = append(resp.Invites, toInviteResponse(invite))
		}
	}
	return resp
}

func toInviteResponse(invite application.Invite) inviteResponse {
	return inviteResponse{
		ID:            invite.ID,
		MeetingID:     invite.MeetingID,
		Code:          invite.Code,
		Theme:         invite.Theme,
		CustomMessage: invite.CustomMessage,
		ExpiresAt:     formatTime(invite.ExpiresAt),
		MaxUses:       invite.MaxUses,
		CurrentUses:   invite.CurrentUses,
		CreatedAt:     formatTime(invite.CreatedAt),
	}
}

func toParticipantResponse(participant application.Participant) participantResponse {
	return participantResponse{
		ID:                participant.ID,
		MeetingID:         participant.MeetingID,
		DisplayName:       participant.DisplayName,
		Organization:      participant.Organization,
		Email:             participant.Email,
		IsHost:            participant.IsHost,
		JoinedAt:          formatTime(participant.JoinedAt),
		LeftAt:            formatTimePtr(participant.LeftAt),
		ConnectionQuality: participant.ConnectionQuality,
	}
}

func toParticipantResponses(participants []application.Participant) []participantResponse {
	out := make([]participantResponse, 0, len(participants))
	for _, participant := range participants {
		out = append(out, toParticipantResponse(participant))
	}
	return out
}

func toJoinResponse(result application.JoinResult) joinResponse {
	return joinResponse{
		Meeting:        toMeetingResponse(result.Meeting),
		Participant:    toParticipantResponse(result.Participant),
		Role:           string(result.Role),
		Grant:          result.Grant,
		GrantExpiresAt: formatTime(result.GrantUntil),
	}
}

// flexibleString accepts a JSON string or number. RTC uids arrive as either.
type flexibleString string

func (f *flexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleString(n.String())
	return nil
}
