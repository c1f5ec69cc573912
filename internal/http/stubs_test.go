package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/sirius-meet/internal/application"
)

var (
	testNow       = time.Date(2025, 6, 3, 14, 30, 0, 0, time.UTC)
	errNotStubbed = errors.New("not stubbed")
	hostPrincipal = application.Principal{EmployeeID: "1012345678", FullName: "Ana María Rojas Peña", Role: "agronomist"}
	guestEmployee = application.Principal{EmployeeID: "1098765432", FullName: "Luis Gómez", Role: "farmer"}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleMeeting() application.Meeting {
	return application.Meeting{
		ID:           "m-1",
		RoomID:       "sirius-team-1748961000000",
		Title:        "Revisión de cosecha",
		MeetingType:  "harvest_review",
		LocationType: "field",
		Topics:       []string{"maíz"},
		HostID:       hostPrincipal.EmployeeID,
		Settings:     application.DefaultMeetingSettings(),
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func sampleInvite() application.Invite {
	return application.Invite{
		ID:        "i-1",
		MeetingID: "m-1",
		Code:      "roble-semilla-42",
		Theme:     "forest",
		ExpiresAt: testNow.Add(application.InviteTTL),
		MaxUses:   application.InviteMaxUses,
		CreatedAt: testNow,
	}
}

// backendStub implements every service interface the handlers consume.
// Unset hooks fail with errNotStubbed.
type backendStub struct {
	sessions map[string]application.Principal

	authenticate  func(application.AuthenticateParams) (application.AuthenticateResult, error)
	revoke        func(token string) error
	employee      func(application.Principal) (application.Employee, error)
	search        func(query string) ([]application.Employee, error)
	createMeeting func(application.CreateMeetingWithInviteParams) (application.MeetingWithInvite, error)
	listMeetings  func(hostID string, limit int) ([]application.MeetingDetails, error)
	findMeetings  func(application.MeetingFilter) ([]application.Meeting, error)
	getMeeting    func(id string) (application.MeetingDetails, error)
	getByRoom     func(roomID string) (application.MeetingDetails, error)
	ensureInvite  func(application.IssueInviteParams) (application.Invite, error)
	issueInvite   func(application.IssueInviteParams) (application.Invite, error)
	start         func(id string, proof application.RoleProof) (application.Meeting, error)
	end           func(id string, proof application.RoleProof) (application.Meeting, error)
	joinHosted    func(application.Principal, string) (application.JoinResult, error)
	participants  func(meetingID string) ([]application.Participant, error)
	resolve       func(code string) (application.InvitePreview, error)
	join          func(application.JoinMeetingParams) (application.JoinResult, error)
	verifyGrant   func(token, participantID string) (application.Grant, error)
	leave         func(participantID string) (application.Participant, error)
	quality       func(participantID, quality string) (application.Participant, error)
	rtcToken      func(application.RTCTokenParams) (application.RTCToken, error)
	rtcStatus     func(channel string) (application.RTCStatus, error)
}

func newBackendStub() *backendStub {
	return &backendStub{sessions: map[string]application.Principal{
		"host-token":  hostPrincipal,
		"guest-token": guestEmployee,
	}}
}

func (b *backendStub) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	switch token {
	case "expired-token":
		return application.Principal{}, application.ErrSessionExpired
	case "revoked-token":
		return application.Principal{}, application.ErrSessionRevoked
	}
	principal, ok := b.sessions[token]
	if !ok {
		return application.Principal{}, application.ErrInvalidCredentials
	}
	return principal, nil
}

func (b *backendStub) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if b.authenticate == nil {
		return application.AuthenticateResult{}, errNotStubbed
	}
	return b.authenticate(params)
}

func (b *backendStub) RevokeSession(_ context.Context, token string) error {
	if b.revoke == nil {
		return errNotStubbed
	}
	return b.revoke(token)
}

func (b *backendStub) Employee(_ context.Context, principal application.Principal) (application.Employee, error) {
	if b.employee == nil {
		return application.Employee{}, errNotStubbed
	}
	return b.employee(principal)
}

func (b *backendStub) SearchEmployees(_ context.Context, query string) ([]application.Employee, error) {
	if b.search == nil {
		return nil, errNotStubbed
	}
	return b.search(query)
}

func (b *backendStub) CreateMeetingWithInvite(_ context.Context, params application.CreateMeetingWithInviteParams) (application.MeetingWithInvite, error) {
	if b.createMeeting == nil {
		return application.MeetingWithInvite{}, errNotStubbed
	}
	return b.createMeeting(params)
}

func (b *backendStub) ListHostMeetings(_ context.Context, hostID string, limit int) ([]application.MeetingDetails, error) {
	if b.listMeetings == nil {
		return nil, errNotStubbed
	}
	return b.listMeetings(hostID, limit)
}

func (b *backendStub) FindMeetings(_ context.Context, filter application.MeetingFilter) ([]application.Meeting, error) {
	if b.findMeetings == nil {
		return nil, errNotStubbed
	}
	return b.findMeetings(filter)
}

func (b *backendStub) GetMeeting(_ context.Context, id string) (application.MeetingDetails, error) {
	if b.getMeeting == nil {
		return application.MeetingDetails{}, errNotStubbed
	}
	return b.getMeeting(id)
}

func (b *backendStub) GetMeetingByRoom(_ context.Context, roomID string) (application.MeetingDetails, error) {
	if b.getByRoom == nil {
		return application.MeetingDetails{}, errNotStubbed
	}
	return b.getByRoom(roomID)
}

// DetermineRole mirrors the service rule for sessions and treats the grant
// "host-grant" as a valid host grant for any meeting.
func (b *backendStub) DetermineRole(_ context.Context, meeting application.Meeting, proof application.RoleProof) application.ParticipantRole {
	if proof.Principal != nil && proof.Principal.EmployeeID == meeting.HostID {
		return application.RoleHost
	}
	if proof.Grant == "host-grant" {
		return application.RoleHost
	}
	return application.RoleParticipant
}

func (b *backendStub) EnsureInvite(_ context.Context, params application.IssueInviteParams) (application.Invite, error) {
	if b.ensureInvite == nil {
		return application.Invite{}, errNotStubbed
	}
	return b.ensureInvite(params)
}

func (b *backendStub) IssueInvite(_ context.Context, params application.IssueInviteParams) (application.Invite, error) {
	if b.issueInvite == nil {
		return application.Invite{}, errNotStubbed
	}
	return b.issueInvite(params)
}

func (b *backendStub) StartMeetingAsHost(_ context.Context, id string, proof application.RoleProof) (application.Meeting, error) {
	if b.start == nil {
		return application.Meeting{}, errNotStubbed
	}
	return b.start(id, proof)
}

func (b *backendStub) EndMeeting(_ context.Context, id string, proof application.RoleProof) (application.Meeting, error) {
	if b.end == nil {
		return application.Meeting{}, errNotStubbed
	}
	return b.end(id, proof)
}

func (b *backendStub) JoinHostedMeeting(_ context.Context, principal application.Principal, id string) (application.JoinResult, error) {
	if b.joinHosted == nil {
		return application.JoinResult{}, errNotStubbed
	}
	return b.joinHosted(principal, id)
}

func (b *backendStub) ListParticipants(_ context.Context, meetingID string) ([]application.Participant, error) {
	if b.participants == nil {
		return nil, errNotStubbed
	}
	return b.participants(meetingID)
}

func (b *backendStub) ResolveInvite(_ context.Context, code string) (application.InvitePreview, error) {
	if b.resolve == nil {
		return application.InvitePreview{}, errNotStubbed
	}
	return b.resolve(code)
}

func (b *backendStub) JoinMeeting(_ context.Context, params application.JoinMeetingParams) (application.JoinResult, error) {
	if b.join == nil {
		return application.JoinResult{}, errNotStubbed
	}
	return b.join(params)
}

func (b *backendStub) VerifyParticipantGrant(token, participantID string) (application.Grant, error) {
	if b.verifyGrant == nil {
		return application.Grant{}, errNotStubbed
	}
	return b.verifyGrant(token, participantID)
}

func (b *backendStub) RecordParticipantLeave(_ context.Context, participantID string) (application.Participant, error) {
	if b.leave == nil {
		return application.Participant{}, errNotStubbed
	}
	return b.leave(participantID)
}

func (b *backendStub) UpdateConnectionQuality(_ context.Context, participantID, quality string) (application.Participant, error) {
	if b.quality == nil {
		return application.Participant{}, errNotStubbed
	}
	return b.quality(participantID, quality)
}

func (b *backendStub) IssueToken(_ context.Context, params application.RTCTokenParams) (application.RTCToken, error) {
	if b.rtcToken == nil {
		return application.RTCToken{}, errNotStubbed
	}
	return b.rtcToken(params)
}

func (b *backendStub) Status(channel string) (application.RTCStatus, error) {
	if b.rtcStatus == nil {
		return application.RTCStatus{}, errNotStubbed
	}
	return b.rtcStatus(channel)
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }

func newTestRouter(b *backendStub, limiter *RateLimiter, trusted ...netip.Prefix) http.Handler {
	logger := discardLogger()
	return NewRouter(RouterConfig{
		Sessions:         NewSessionHandler(b, logger),
		Employees:        NewEmployeeHandler(b, b, logger),
		Meetings:         NewMeetingHandler(b, logger),
		Invites:          NewInviteHandler(b, logger),
		Participants:     NewParticipantHandler(b, logger),
		RTC:              NewRTCHandler(b, logger),
		Health:           NewHealthHandler(pingerStub{}, logger),
		SessionValidator: b,
		PublicLimiter:    limiter,
		TrustedProxies:   trusted,
		Logger:           logger,
	})
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
