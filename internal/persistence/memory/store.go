// Package memory provides a mutex-guarded in-process implementation of
// persistence.Store for development runs and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

// Store keeps every record in maps guarded by one RWMutex.
type Store struct {
	mu           sync.RWMutex
	employees    map[string]persistence.Employee
	meetings     map[string]persistence.Meeting
	invites      map[string]persistence.MeetingInvite // keyed by invite code
	participants map[string]persistence.MeetingParticipant
	sessions     map[string]persistence.Session // keyed by token
}

var _ persistence.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		employees:    make(map[string]persistence.Employee),
		meetings:     make(map[string]persistence.Meeting),
		invites:      make(map[string]persistence.MeetingInvite),
		participants: make(map[string]persistence.MeetingParticipant),
		sessions:     make(map[string]persistence.Session),
	}
}

// Migrate is a no-op for the in-memory implementation.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping is a no-op for the in-memory implementation.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory implementation.
func (s *Store) Close() error { return nil }

// --- EmployeeRepository implementation ---

// CreateEmployee stores a new employee.
func (s *Store) CreateEmployee(ctx context.Context, employee persistence.Employee) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	employee.NationalID = strings.TrimSpace(employee.NationalID)
	if employee.NationalID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[employee.NationalID]; ok {
		return fmt.Errorf("%w: employee %s", persistence.ErrDuplicate, employee.NationalID)
	}
	employee.CreatedAt = stamp(employee.CreatedAt)
	if employee.UpdatedAt.IsZero() {
		employee.UpdatedAt = employee.CreatedAt
	}
	s.employees[employee.NationalID] = cloneEmployee(employee)
	return nil
}

// GetEmployee retrieves an employee by national ID.
func (s *Store) GetEmployee(ctx context.Context, nationalID string) (persistence.Employee, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Employee{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, ok := s.employees[strings.TrimSpace(nationalID)]
	if !ok {
		return persistence.Employee{}, persistence.ErrNotFound
	}
	return cloneEmployee(employee), nil
}

// ListActiveEmployees returns active employees ordered by family names.
func (s *Store) ListActiveEmployees(ctx context.Context) ([]persistence.Employee, error) {
	return s.filterEmployees(ctx, func(persistence.Employee) bool { return true }, 0)
}

// SearchEmployees matches a case-insensitive substring over the national ID
// and the name columns of active employees.
func (s *Store) SearchEmployees(ctx context.Context, query string, limit int) ([]persistence.Employee, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	return s.filterEmployees(ctx, func(e persistence.Employee) bool {
		for _, field := range []string{e.NationalID, e.GivenNames, e.FamilyNames, e.FullName} {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
		return false
	}, limit)
}

func (s *Store) filterEmployees(ctx context.Context, match func(persistence.Employee) bool, limit int) ([]persistence.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]persistence.Employee, 0)
	for _, employee := range s.employees {
		if employee.IsActive && match(employee) {
			employees = append(employees, cloneEmployee(employee))
		}
	}
	sort.Slice(employees, func(i, j int) bool {
		a, b := employees[i], employees[j]
		if a.FamilyNames != b.FamilyNames {
			return a.FamilyNames < b.FamilyNames
		}
		if a.GivenNames != b.GivenNames {
			return a.GivenNames < b.GivenNames
		}
		return a.NationalID < b.NationalID
	})
	if limit > 0 && len(employees) > limit {
		employees = employees[:limit]
	}
	return employees, nil
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, nationalID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	employee, ok := s.employees[strings.TrimSpace(nationalID)]
	if !ok {
		return persistence.ErrNotFound
	}
	at = stamp(at)
	employee.LastLogin = &at
	employee.UpdatedAt = at
	s.employees[employee.NationalID] = employee
	return nil
}

// --- MeetingRepository implementation ---

// CreateMeeting stores a new meeting. Room ids are unique and the host must
// be a known employee.
func (s *Store) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if meeting.ID == "" || strings.TrimSpace(meeting.RoomID) == "" || strings.TrimSpace(meeting.Title) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[meeting.HostID]; !ok {
		return fmt.Errorf("%w: unknown host %s", persistence.ErrConstraintViolation, meeting.HostID)
	}
	if _, ok := s.meetings[meeting.ID]; ok {
		return fmt.Errorf("%w: meeting %s", persistence.ErrDuplicate, meeting.ID)
	}
	for _, existing := range s.meetings {
		if existing.RoomID == meeting.RoomID {
			return fmt.Errorf("%w: room %s", persistence.ErrDuplicate, meeting.RoomID)
		}
	}

	meeting.CreatedAt = stamp(meeting.CreatedAt)
	if meeting.UpdatedAt.IsZero() {
		meeting.UpdatedAt = meeting.CreatedAt
	}
	s.meetings[meeting.ID] = cloneMeeting(meeting)
	return nil
}

// GetMeeting retrieves a meeting by ID.
func (s *Store) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Meeting{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	meeting, ok := s.meetings[id]
	if !ok {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return cloneMeeting(meeting), nil
}

// GetMeetingByRoomID retrieves a meeting by its room identifier.
func (s *Store) GetMeetingByRoomID(ctx context.Context, roomID string) (persistence.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Meeting{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomID = strings.TrimSpace(roomID)
	for _, meeting := range s.meetings {
		if meeting.RoomID == roomID {
			return cloneMeeting(meeting), nil
		}
	}
	return persistence.Meeting{}, persistence.ErrNotFound
}

// ListMeetingsByHost returns the host's meetings, newest first.
func (s *Store) ListMeetingsByHost(ctx context.Context, hostID string, limit int) ([]persistence.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	meetings := make([]persistence.Meeting, 0)
	for _, meeting := range s.meetings {
		if meeting.HostID == hostID {
			meetings = append(meetings, cloneMeeting(meeting))
		}
	}
	sortNewestFirst(meetings)
	if limit > 0 && len(meetings) > limit {
		meetings = meetings[:limit]
	}
	return meetings, nil
}

// FindMeetings returns meetings matching filter, newest first.
func (s *Store) FindMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	meetings := make([]persistence.Meeting, 0)
	for _, meeting := range s.meetings {
		if matchesFilter(meeting, filter) {
			meetings = append(meetings, cloneMeeting(meeting))
		}
	}
	sortNewestFirst(meetings)
	if filter.Limit > 0 && len(meetings) > filter.Limit {
		meetings = meetings[:filter.Limit]
	}
	return meetings, nil
}

func matchesFilter(meeting persistence.Meeting, filter persistence.MeetingFilter) bool {
	if filter.MeetingType != "" && meeting.MeetingType != filter.MeetingType {
		return false
	}
	if filter.LocationType != "" && meeting.LocationType != filter.LocationType {
		return false
	}
	if filter.Season != "" && (meeting.Season == nil || *meeting.Season != filter.Season) {
		return false
	}
	if len(filter.Topics) == 0 {
		return true
	}
	for _, topic := range meeting.Topics {
		if slices.Contains(filter.Topics, topic) {
			return true
		}
	}
	return false
}

func sortNewestFirst(meetings []persistence.Meeting) {
	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].CreatedAt.Equal(meetings[j].CreatedAt) {
			return meetings[i].ID > meetings[j].ID
		}
		return meetings[i].CreatedAt.After(meetings[j].CreatedAt)
	})
}

// MarkMeetingStarted sets StartedAt when it is still unset.
func (s *Store) MarkMeetingStarted(ctx context.Context, id string, at time.Time) (persistence.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Meeting{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meeting, ok := s.meetings[id]
	if !ok {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	if meeting.StartedAt == nil {
		at = stamp(at)
		meeting.StartedAt = &at
		meeting.UpdatedAt = at
		s.meetings[id] = meeting
	}
	return cloneMeeting(meeting), nil
}

// MarkMeetingEnded sets EndedAt and the duration when the meeting has not ended.
func (s *Store) MarkMeetingEnded(ctx context.Context, id string, at time.Time) (persistence.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Meeting{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meeting, ok := s.meetings[id]
	if !ok {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	if meeting.EndedAt == nil {
		at = stamp(at)
		meeting.EndedAt = &at
		meeting.DurationMinutes = persistence.MeetingDuration(meeting.StartedAt, at)
		meeting.UpdatedAt = at
		s.meetings[id] = meeting
	}
	return cloneMeeting(meeting), nil
}

// --- InviteRepository implementation ---

// CreateInvite stores a new invite. Codes are unique across meetings.
func (s *Store) CreateInvite(ctx context.Context, invite persistence.MeetingInvite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	invite.InviteCode = strings.TrimSpace(invite.InviteCode)
	if invite.ID == "" || invite.InviteCode == "" || invite.MaxUses <= 0 ||
		invite.CurrentUses < 0 || invite.CurrentUses > invite.MaxUses {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[invite.MeetingID]; !ok {
		return fmt.Errorf("%w: unknown meeting %s", persistence.ErrConstraintViolation, invite.MeetingID)
	}
	if _, ok := s.invites[invite.InviteCode]; ok {
		return fmt.Errorf("%w: invite code %s", persistence.ErrDuplicate, invite.InviteCode)
	}

	invite.CreatedAt = stamp(invite.CreatedAt)
	invite.ExpiresAt = stamp(invite.ExpiresAt)
	s.invites[invite.InviteCode] = cloneInvite(invite)
	return nil
}

// GetInviteByCode retrieves an invite by its code.
func (s *Store) GetInviteByCode(ctx context.Context, code string) (persistence.MeetingInvite, error) {
	if err := ctx.Err(); err != nil {
		return persistence.MeetingInvite{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	invite, ok := s.invites[strings.TrimSpace(code)]
	if !ok {
		return persistence.MeetingInvite{}, persistence.ErrNotFound
	}
	return cloneInvite(invite), nil
}

// ListInvitesForMeeting returns the meeting's invites, newest first.
func (s *Store) ListInvitesForMeeting(ctx context.Context, meetingID string) ([]persistence.MeetingInvite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	invites := make([]persistence.MeetingInvite, 0)
	for _, invite := range s.invites {
		if invite.MeetingID == meetingID {
			invites = append(invites, cloneInvite(invite))
		}
	}
	sort.Slice(invites, func(i, j int) bool {
		if invites[i].CreatedAt.Equal(invites[j].CreatedAt) {
			return invites[i].ID > invites[j].ID
		}
		return invites[i].CreatedAt.After(invites[j].CreatedAt)
	})
	return invites, nil
}

// IncrementInviteUse consumes one use under the write lock.
func (s *Store) IncrementInviteUse(ctx context.Context, code string, now time.Time) (persistence.MeetingInvite, error) {
	if err := ctx.Err(); err != nil {
		return persistence.MeetingInvite{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	code = strings.TrimSpace(code)
	invite, ok := s.invites[code]
	if !ok {
		return persistence.MeetingInvite{}, persistence.ErrNotFound
	}
	if invite.CurrentUses >= invite.MaxUses || now.After(invite.ExpiresAt) {
		return persistence.MeetingInvite{}, persistence.RejectedUseError(invite, now)
	}
	invite.CurrentUses++
	s.invites[code] = invite
	return cloneInvite(invite), nil
}

// --- ParticipantRepository implementation ---

// CreateParticipant stores a participant join.
func (s *Store) CreateParticipant(ctx context.Context, participant persistence.MeetingParticipant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if participant.ID == "" || strings.TrimSpace(participant.DisplayName) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[participant.MeetingID]; !ok {
		return fmt.Errorf("%w: unknown meeting %s", persistence.ErrConstraintViolation, participant.MeetingID)
	}
	if _, ok := s.participants[participant.ID]; ok {
		return fmt.Errorf("%w: participant %s", persistence.ErrDuplicate, participant.ID)
	}
	if participant.ConnectionQuality == "" {
		participant.ConnectionQuality = "good"
	}
	participant.JoinedAt = stamp(participant.JoinedAt)
	s.participants[participant.ID] = cloneParticipant(participant)
	return nil
}

// GetParticipant retrieves a participant by ID.
func (s *Store) GetParticipant(ctx context.Context, id string) (persistence.MeetingParticipant, error) {
	if err := ctx.Err(); err != nil {
		return persistence.MeetingParticipant{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	participant, ok := s.participants[id]
	if !ok {
		return persistence.MeetingParticipant{}, persistence.ErrNotFound
	}
	return cloneParticipant(participant), nil
}

// ListParticipants returns the meeting's participants in join order.
func (s *Store) ListParticipants(ctx context.Context, meetingID string) ([]persistence.MeetingParticipant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants := make([]persistence.MeetingParticipant, 0)
	for _, participant := range s.participants {
		if participant.MeetingID == meetingID {
			participants = append(participants, cloneParticipant(participant))
		}
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].ID < participants[j].ID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}

// MarkParticipantLeft sets LeftAt when it is still unset.
func (s *Store) MarkParticipantLeft(ctx context.Context, id string, at time.Time) (persistence.MeetingParticipant, error) {
	if err := ctx.Err(); err != nil {
		return persistence.MeetingParticipant{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, ok := s.participants[id]
	if !ok {
		return persistence.MeetingParticipant{}, persistence.ErrNotFound
	}
	if participant.LeftAt == nil {
		at = stamp(at)
		participant.LeftAt = &at
		s.participants[id] = participant
	}
	return cloneParticipant(participant), nil
}

// UpdateConnectionQuality stores the latest reported connection quality.
func (s *Store) UpdateConnectionQuality(ctx context.Context, id, quality string) (persistence.MeetingParticipant, error) {
	if err := ctx.Err(); err != nil {
		return persistence.MeetingParticipant{}, err
	}
	switch quality {
	case "excellent", "good", "fair", "poor":
	default:
		return persistence.MeetingParticipant{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	participant, ok := s.participants[id]
	if !ok {
		return persistence.MeetingParticipant{}, persistence.ErrNotFound
	}
	participant.ConnectionQuality = quality
	s.participants[id] = participant
	return cloneParticipant(participant), nil
}

// --- SessionRepository implementation ---

// CreateSession stores a new session keyed by its token.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.EmployeeID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[session.EmployeeID]; !ok {
		return persistence.Session{}, fmt.Errorf("%w: unknown employee %s", persistence.ErrConstraintViolation, session.EmployeeID)
	}
	if _, ok := s.sessions[session.Token]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	for _, existing := range s.sessions {
		if existing.ID == session.ID {
			return persistence.Session{}, persistence.ErrDuplicate
		}
	}

	session.CreatedAt = stamp(session.CreatedAt)
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}
	session.ExpiresAt = stamp(session.ExpiresAt)
	s.sessions[session.Token] = cloneSession(session)
	return cloneSession(session), nil
}

// GetSession retrieves a session by its token value.
func (s *Store) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[strings.TrimSpace(token)]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// RevokeSession marks a session as revoked.
func (s *Store) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	token = strings.TrimSpace(token)
	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	revokedAt = stamp(revokedAt)
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	s.sessions[token] = session
	return cloneSession(session), nil
}

// DeleteExpiredSessions removes sessions that expired on or before reference.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

// --- Helpers ---

// stamp normalizes a timestamp to the precision the SQL backends keep.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copy := t.UTC().Truncate(time.Microsecond)
	return &copy
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	copy := *s
	return &copy
}

func cloneEmployee(employee persistence.Employee) persistence.Employee {
	clone := employee
	clone.LastLogin = cloneTime(employee.LastLogin)
	return clone
}

func cloneMeeting(meeting persistence.Meeting) persistence.Meeting {
	clone := meeting
	clone.Description = cloneString(meeting.Description)
	clone.Season = cloneString(meeting.Season)
	clone.ScheduledAt = cloneTime(meeting.ScheduledAt)
	clone.Topics = make([]string, len(meeting.Topics))
	copy(clone.Topics, meeting.Topics)
	clone.StartedAt = cloneTime(meeting.StartedAt)
	clone.EndedAt = cloneTime(meeting.EndedAt)
	return clone
}

func cloneInvite(invite persistence.MeetingInvite) persistence.MeetingInvite {
	clone := invite
	clone.CustomMessage = cloneString(invite.CustomMessage)
	return clone
}

func cloneParticipant(participant persistence.MeetingParticipant) persistence.MeetingParticipant {
	clone := participant
	clone.Organization = cloneString(participant.Organization)
	clone.Email = cloneString(participant.Email)
	clone.LeftAt = cloneTime(participant.LeftAt)
	return clone
}

func cloneSession(session persistence.Session) persistence.Session {
	clone := session
	clone.RevokedAt = cloneTime(session.RevokedAt)
	return clone
}
