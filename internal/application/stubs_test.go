package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

var referenceNow = time.Date(2025, 6, 3, 14, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return referenceNow }

func sequenceIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// fixedIntn replays values in order and repeats the last one.
func fixedIntn(values ...int) func(int) int {
	var (
		mu sync.Mutex
		i  int
	)
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		v := values[len(values)-1]
		if i < len(values) {
			v = values[i]
		}
		i++
		return v % n
	}
}

// cyclingIntn walks a counter so consecutive codes differ.
func cyclingIntn() func(int) int {
	var (
		mu sync.Mutex
		c  int
	)
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		c++
		return c % n
	}
}

type employeeRepositoryStub struct {
	mu        sync.Mutex
	employees map[string]Employee
	getErr    error
	createErr error
	searchErr error
	touched   []string
	queries   []string
	limits    []int
}

func newEmployeeRepositoryStub(employees ...Employee) *employeeRepositoryStub {
	stub := &employeeRepositoryStub{employees: make(map[string]Employee)}
	for _, employee := range employees {
		stub.employees[employee.NationalID] = employee
	}
	return stub
}

func (s *employeeRepositoryStub) CreateEmployee(_ context.Context, employee Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.employees[employee.NationalID]; ok {
		return persistence.ErrDuplicate
	}
	s.employees[employee.NationalID] = employee
	return nil
}

func (s *employeeRepositoryStub) GetEmployee(_ context.Context, nationalID string) (Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return Employee{}, s.getErr
	}
	employee, ok := s.employees[nationalID]
	if !ok {
		return Employee{}, persistence.ErrNotFound
	}
	return employee, nil
}

func (s *employeeRepositoryStub) ListActiveEmployees(context.Context) ([]Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Employee
	for _, employee := range s.employees {
		if employee.IsActive {
			out = append(out, employee)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FamilyNames < out[j].FamilyNames })
	return out, nil
}

func (s *employeeRepositoryStub) SearchEmployees(_ context.Context, query string, limit int) ([]Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	s.limits = append(s.limits, limit)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	needle := strings.ToLower(query)
	var out []Employee
	for _, employee := range s.employees {
		if employee.IsActive && strings.Contains(strings.ToLower(employee.FullName+" "+employee.NationalID), needle) {
			out = append(out, employee)
		}
	}
	return out, nil
}

func (s *employeeRepositoryStub) TouchLastLogin(_ context.Context, nationalID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	employee, ok := s.employees[nationalID]
	if !ok {
		return persistence.ErrNotFound
	}
	employee.LastLogin = &at
	s.employees[nationalID] = employee
	s.touched = append(s.touched, nationalID)
	return nil
}

type meetingRepositoryStub struct {
	mu         sync.Mutex
	meetings   map[string]Meeting
	createErrs []error
	created    []Meeting
	lastFilter MeetingFilter
}

func newMeetingRepositoryStub(meetings ...Meeting) *meetingRepositoryStub {
	stub := &meetingRepositoryStub{meetings: make(map[string]Meeting)}
	for _, meeting := range meetings {
		stub.meetings[meeting.ID] = meeting
	}
	return stub
}

func (s *meetingRepositoryStub) CreateMeeting(_ context.Context, meeting Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, meeting)
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range s.meetings {
		if existing.RoomID == meeting.RoomID {
			return persistence.ErrDuplicate
		}
	}
	s.meetings[meeting.ID] = meeting
	return nil
}

func (s *meetingRepositoryStub) GetMeeting(_ context.Context, id string) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	return meeting, nil
}

func (s *meetingRepositoryStub) GetMeetingByRoomID(_ context.Context, roomID string) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, meeting := range s.meetings {
		if meeting.RoomID == roomID {
			return meeting, nil
		}
	}
	return Meeting{}, persistence.ErrNotFound
}

func (s *meetingRepositoryStub) ListMeetingsByHost(_ context.Context, hostID string, limit int) ([]Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Meeting
	for _, meeting := range s.meetings {
		if meeting.HostID == hostID {
			out = append(out, meeting)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *meetingRepositoryStub) FindMeetings(_ context.Context, filter MeetingFilter) ([]Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	var out []Meeting
	for _, meeting := range s.meetings {
		if filter.MeetingType != "" && meeting.MeetingType != filter.MeetingType {
			continue
		}
		if filter.Season != "" && (meeting.Season == nil || *meeting.Season != filter.Season) {
			continue
		}
		out = append(out, meeting)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *meetingRepositoryStub) MarkMeetingStarted(_ context.Context, id string, at time.Time) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	if meeting.StartedAt == nil {
		meeting.StartedAt = &at
		meeting.UpdatedAt = at
		s.meetings[id] = meeting
	}
	return meeting, nil
}

func (s *meetingRepositoryStub) MarkMeetingEnded(_ context.Context, id string, at time.Time) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	if meeting.EndedAt == nil {
		meeting.EndedAt = &at
		if meeting.StartedAt != nil {
			meeting.DurationMinutes = int(at.Sub(*meeting.StartedAt) / time.Minute)
		}
		s.meetings[id] = meeting
	}
	return meeting, nil
}

type inviteRepositoryStub struct {
	mu         sync.Mutex
	invites    map[string]Invite
	createErrs []error
	listErr    error
	incErr     error
	attempts   []Invite
}

func newInviteRepositoryStub(invites ...Invite) *inviteRepositoryStub {
	stub := &inviteRepositoryStub{invites: make(map[string]Invite)}
	for _, invite := range invites {
		stub.invites[invite.Code] = invite
	}
	return stub
}

func (s *inviteRepositoryStub) CreateInvite(_ context.Context, invite Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, invite)
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := s.invites[invite.Code]; ok {
		return persistence.ErrDuplicate
	}
	s.invites[invite.Code] = invite
	return nil
}

func (s *inviteRepositoryStub) GetInviteByCode(_ context.Context, code string) (Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invite, ok := s.invites[code]
	if !ok {
		return Invite{}, persistence.ErrNotFound
	}
	return invite, nil
}

func (s *inviteRepositoryStub) ListInvitesForMeeting(_ context.Context, meetingID string) ([]Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Invite
	for _, invite := range s.invites {
		if invite.MeetingID == meetingID {
			out = append(out, invite)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *inviteRepositoryStub) IncrementInviteUse(_ context.Context, code string, now time.Time) (Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incErr != nil {
		return Invite{}, s.incErr
	}
	invite, ok := s.invites[code]
	switch {
	case !ok:
		return Invite{}, persistence.ErrNotFound
	case now.After(invite.ExpiresAt):
		return Invite{}, persistence.ErrExpired
	case invite.CurrentUses >= invite.MaxUses:
		return Invite{}, persistence.ErrUsageLimitReached
	}
	invite.CurrentUses++
	s.invites[code] = invite
	return invite, nil
}

func (s *inviteRepositoryStub) get(code string) Invite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invites[code]
}

type participantRepositoryStub struct {
	mu           sync.Mutex
	participants map[string]Participant
	order        []string
	meetings     *meetingRepositoryStub
	createErr    error
}

func newParticipantRepositoryStub(meetings *meetingRepositoryStub) *participantRepositoryStub {
	return &participantRepositoryStub{participants: make(map[string]Participant), meetings: meetings}
}

func (s *participantRepositoryStub) CreateParticipant(ctx context.Context, participant Participant) error {
	if s.meetings != nil {
		if _, err := s.meetings.GetMeeting(ctx, participant.MeetingID); err != nil {
			return persistence.ErrConstraintViolation
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.participants[participant.ID] = participant
	s.order = append(s.order, participant.ID)
	return nil
}

func (s *participantRepositoryStub) GetParticipant(_ context.Context, id string) (Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[id]
	if !ok {
		return Participant{}, persistence.ErrNotFound
	}
	return participant, nil
}

func (s *participantRepositoryStub) ListParticipants(_ context.Context, meetingID string) ([]Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Participant
	for _, id := range s.order {
		if participant := s.participants[id]; participant.MeetingID == meetingID {
			out = append(out, participant)
		}
	}
	return out, nil
}

func (s *participantRepositoryStub) MarkParticipantLeft(_ context.Context, id string, at time.Time) (Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[id]
	if !ok {
		return Participant{}, persistence.ErrNotFound
	}
	if participant.LeftAt == nil {
		participant.LeftAt = &at
		s.participants[id] = participant
	}
	return participant, nil
}

func (s *participantRepositoryStub) UpdateConnectionQuality(_ context.Context, id, quality string) (Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[id]
	if !ok {
		return Participant{}, persistence.ErrNotFound
	}
	participant.ConnectionQuality = quality
	s.participants[id] = participant
	return participant, nil
}

type sessionRepositoryStub struct {
	mu          sync.Mutex
	sessions    map[string]Session
	createErr   error
	deleteErr   error
	deleteCalls []time.Time
}

func newSessionRepositoryStub(sessions ...Session) *sessionRepositoryStub {
	stub := &sessionRepositoryStub{sessions: make(map[string]Session)}
	for _, session := range sessions {
		stub.sessions[session.Token] = session
	}
	return stub
}

func (s *sessionRepositoryStub) CreateSession(_ context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *sessionRepositoryStub) GetSession(_ context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *sessionRepositoryStub) RevokeSession(_ context.Context, token string, revokedAt time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	if session.RevokedAt == nil {
		session.RevokedAt = &revokedAt
		s.sessions[token] = session
	}
	return session, nil
}

func (s *sessionRepositoryStub) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, reference)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

// grantSignerStub hands out opaque tokens and remembers what they stand for.
type grantSignerStub struct {
	mu      sync.Mutex
	grants  map[string]Grant
	now     func() time.Time
	signErr error
}

func newGrantSignerStub() *grantSignerStub {
	return &grantSignerStub{grants: make(map[string]Grant), now: fixedNow}
}

func (s *grantSignerStub) Sign(grant Grant) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signErr != nil {
		return "", s.signErr
	}
	token := fmt.Sprintf("grant-%d", len(s.grants)+1)
	s.grants[token] = grant
	return token, nil
}

func (s *grantSignerStub) Verify(token string) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[token]
	if !ok || !grant.ExpiresAt.After(s.now()) {
		return Grant{}, ErrUnauthorized
	}
	return grant, nil
}

type metricsStub struct {
	mu       sync.Mutex
	created  []string
	issued   []string
	consumed []string
	joined   []ParticipantRole
	ended    []int
}

func (m *metricsStub) MeetingCreated(meetingType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, meetingType)
}

func (m *metricsStub) InviteIssued(theme string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued = append(m.issued, theme)
}

func (m *metricsStub) InviteConsumed(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed = append(m.consumed, outcome)
}

func (m *metricsStub) ParticipantJoined(role ParticipantRole) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined = append(m.joined, role)
}

func (m *metricsStub) MeetingEnded(durationMinutes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, durationMinutes)
}

type rtcIssuerStub struct {
	configured bool
	issueErr   error
	calls      []string
}

func (s *rtcIssuerStub) Configured() bool { return s.configured }

func (s *rtcIssuerStub) Issue(channel, uid, role string) (RTCToken, error) {
	s.calls = append(s.calls, channel+"/"+uid+"/"+role)
	if s.issueErr != nil {
		return RTCToken{}, s.issueErr
	}
	return RTCToken{Token: "rtc-token", AppID: "app", Channel: channel, UID: uid, Role: role, ExpiresAt: referenceNow.Add(24 * time.Hour)}, nil
}

// meetingFixture wires a MeetingService over stubs with one seeded host.
type meetingFixture struct {
	service      *MeetingService
	employees    *employeeRepositoryStub
	meetings     *meetingRepositoryStub
	invites      *inviteRepositoryStub
	participants *participantRepositoryStub
	grants       *grantSignerStub
	metrics      *metricsStub
	now          time.Time
}

var hostEmployee = Employee{
	NationalID:   "1012345678",
	GivenNames:   "Ana María",
	FamilyNames:  "Rojas Peña",
	FullName:     "Ana María Rojas Peña",
	Role:         "agronomist",
	Organization: Organization,
	IsActive:     true,
}

func newMeetingFixture(opts ...func(*MeetingServiceConfig)) *meetingFixture {
	f := &meetingFixture{
		employees: newEmployeeRepositoryStub(hostEmployee),
		meetings:  newMeetingRepositoryStub(),
		invites:   newInviteRepositoryStub(),
		grants:    newGrantSignerStub(),
		metrics:   &metricsStub{},
		now:       referenceNow,
	}
	f.participants = newParticipantRepositoryStub(f.meetings)

	config := MeetingServiceConfig{
		Meetings:            f.meetings,
		Invites:             f.invites,
		Participants:        f.participants,
		Employees:           f.employees,
		Grants:              f.grants,
		Metrics:             f.metrics,
		IDGenerator:         sequenceIDs("id"),
		Now:                 func() time.Time { return f.now },
		Intn:                cyclingIntn(),
		InviteRetryInterval: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	f.service = NewMeetingService(config)
	return f
}

func (f *meetingFixture) createMeeting(title string) MeetingWithInvite {
	result, err := f.service.CreateMeetingWithInvite(context.Background(), CreateMeetingWithInviteParams{
		Meeting: CreateMeetingParams{HostID: hostEmployee.NationalID, Title: title, MeetingType: "team"},
	})
	if err != nil {
		panic(fmt.Sprintf("create meeting fixture: %v", err))
	}
	return result
}

func (f *meetingFixture) hostPrincipal() *Principal {
	return &Principal{EmployeeID: hostEmployee.NationalID, FullName: hostEmployee.FullName, Role: hostEmployee.Role}
}

var errStoreDown = errors.New("store unavailable")
