package main

import (
	"context"
	"time"

	"github.com/example/sirius-meet/internal/application"
	"github.com/example/sirius-meet/internal/persistence"
)

// The application layer owns its own record types; these adapters translate
// between them and whichever persistence.Store backend was opened.

type employeeRepositoryAdapter struct {
	repo persistence.EmployeeRepository
}

func newEmployeeRepositoryAdapter(repo persistence.EmployeeRepository) *employeeRepositoryAdapter {
	return &employeeRepositoryAdapter{repo: repo}
}

func (a *employeeRepositoryAdapter) CreateEmployee(ctx context.Context, employee application.Employee) error {
	return a.repo.CreateEmployee(ctx, toPersistenceEmployee(employee))
}

func (a *employeeRepositoryAdapter) GetEmployee(ctx context.Context, nationalID string) (application.Employee, error) {
	stored, err := a.repo.GetEmployee(ctx, nationalID)
	if err != nil {
		return application.Employee{}, err
	}
	return toApplicationEmployee(stored), nil
}

func (a *employeeRepositoryAdapter) ListActiveEmployees(ctx context.Context) ([]application.Employee, error) {
	models, err := a.repo.ListActiveEmployees(ctx)
	if err != nil {
		return nil, err
	}
	return toApplicationEmployees(models), nil
}

func (a *employeeRepositoryAdapter) SearchEmployees(ctx context.Context, query string, limit int) ([]application.Employee, error) {
	models, err := a.repo.SearchEmployees(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return toApplicationEmployees(models), nil
}

func (a *employeeRepositoryAdapter) TouchLastLogin(ctx context.Context, nationalID string, at time.Time) error {
	return a.repo.TouchLastLogin(ctx, nationalID, at)
}

type meetingRepositoryAdapter struct {
	repo persistence.MeetingRepository
}

func newMeetingRepositoryAdapter(repo persistence.MeetingRepository) *meetingRepositoryAdapter {
	return &meetingRepositoryAdapter{repo: repo}
}

func (a *meetingRepositoryAdapter) CreateMeeting(ctx context.Context, meeting application.Meeting) error {
	return a.repo.CreateMeeting(ctx, toPersistenceMeeting(meeting))
}

func (a *meetingRepositoryAdapter) GetMeeting(ctx context.Context, id string) (application.Meeting, error) {
	stored, err := a.repo.GetMeeting(ctx, id)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *meetingRepositoryAdapter) GetMeetingByRoomID(ctx context.Context, roomID string) (application.Meeting, error) {
	stored, err := a.repo.GetMeetingByRoomID(ctx, roomID)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *meetingRepositoryAdapter) ListMeetingsByHost(ctx context.Context, hostID string, limit int) ([]application.Meeting, error) {
	models, err := a.repo.ListMeetingsByHost(ctx, hostID, limit)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	meetings := make([]application.Meeting, 0, len(models))
	for _, model := range models {
		meetings = append(meetings, toApplicationMeeting(model))
	}
	return meetings, nil
}

func (a *meetingRepositoryAdapter) FindMeetings(ctx context.Context, filter application.MeetingFilter) ([]application.Meeting, error) {
	models, err := a.repo.FindMeetings(ctx, persistence.MeetingFilter{
		MeetingType:  filter.MeetingType,
		LocationType: filter.LocationType,
		Season:       filter.Season,
		Topics:       cloneStrings(filter.Topics),
		Limit:        filter.Limit,
	})
	if err != nil {
		return nil, err
	}
	meetings := make([]application.Meeting, 0, len(models))
	for _, model := range models {
		meetings = append(meetings, toApplicationMeeting(model))
	}
	return meetings, nil
}

func (a *meetingRepositoryAdapter) MarkMeetingStarted(ctx context.Context, id string, at time.Time) (application.Meeting, error) {
	stored, err := a.repo.MarkMeetingStarted(ctx, id, at)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *meetingRepositoryAdapter) MarkMeetingEnded(ctx context.Context, id string, at time.Time) (application.Meeting, error) {
	stored, err := a.repo.MarkMeetingEnded(ctx, id, at)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

type inviteRepositoryAdapter struct {
	repo persistence.InviteRepository
}

func newInviteRepositoryAdapter(repo persistence.InviteRepository) *inviteRepositoryAdapter {
	return &inviteRepositoryAdapter{repo: repo}
}

func (a *inviteRepositoryAdapter) CreateInvite(ctx context.Context, invite application.Invite) error {
	return a.repo.CreateInvite(ctx, toPersistenceInvite(invite))
}

func (a *inviteRepositoryAdapter) GetInviteByCode(ctx context.Context, code string) (application.Invite, error) {
	stored, err := a.repo.GetInviteByCode(ctx, code)
	if err != nil {
		return application.Invite{}, err
	}
	return toApplicationInvite(stored), nil
}

func (a *inviteRepositoryAdapter) ListInvitesForMeeting(ctx context.Context, meetingID string) ([]application.Invite, error) {
	models, err := a.repo.ListInvitesForMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	invites := make([]application.Invite, 0, len(models))
	for _, model := range models {
		invites = append(invites, toApplicationInvite(model))
	}
	return invites, nil
}

func (a *inviteRepositoryAdapter) IncrementInviteUse(ctx context.Context, code string, now time.Time) (application.Invite, error) {
	stored, err := a.repo.IncrementInviteUse(ctx, code, now)
	if err != nil {
		return application.Invite{}, err
	}
	return toApplicationInvite(stored), nil
}

type participantRepositoryAdapter struct {
	repo persistence.ParticipantRepository
}

func newParticipantRepositoryAdapter(repo persistence.ParticipantRepository) *participantRepositoryAdapter {
	return &participantRepositoryAdapter{repo: repo}
}

func (a *participantRepositoryAdapter) CreateParticipant(ctx context.Context, participant application.Participant) error {
	return a.repo.CreateParticipant(ctx, toPersistenceParticipant(participant))
}

func (a *participantRepositoryAdapter) GetParticipant(ctx context.Context, id string) (application.Participant, error) {
	stored, err := a.repo.GetParticipant(ctx, id)
	if err != nil {
		return application.Participant{}, err
	}
	return toApplicationParticipant(stored), nil
}

func (a *participantRepositoryAdapter) ListParticipants(ctx context.Context, meetingID string) ([]application.Participant, error) {
	models, err := a.repo.ListParticipants(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	participants := make([]application.Participant, 0, len(models))
	for _, model := range models {
		participants = append(participants, toApplicationParticipant(model))
	}
	return participants, nil
}

func (a *participantRepositoryAdapter) MarkParticipantLeft(ctx context.Context, id string, at time.Time) (application.Participant, error) {
	stored, err := a.repo.MarkParticipantLeft(ctx, id, at)
	if err != nil {
		return application.Participant{}, err
	}
	return toApplicationParticipant(stored), nil
}

func (a *participantRepositoryAdapter) UpdateConnectionQuality(ctx context.Context, id, quality string) (application.Participant, error) {
	stored, err := a.repo.UpdateConnectionQuality(ctx, id, quality)
	if err != nil {
		return application.Participant{}, err
	}
	return toApplicationParticipant(stored), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

func toPersistenceEmployee(employee application.Employee) persistence.Employee {
	return persistence.Employee{
		NationalID:   employee.NationalID,
		GivenNames:   employee.GivenNames,
		FamilyNames:  employee.FamilyNames,
		FullName:     employee.FullName,
		Role:         employee.Role,
		Organization: employee.Organization,
		IsActive:     employee.IsActive,
		LastLogin:    cloneTime(employee.LastLogin),
		CreatedAt:    employee.CreatedAt,
		UpdatedAt:    employee.UpdatedAt,
	}
}

func toApplicationEmployee(model persistence.Employee) application.Employee {
	return application.Employee{
		NationalID:   model.NationalID,
		GivenNames:   model.GivenNames,
		FamilyNames:  model.FamilyNames,
		FullName:     model.FullName,
		Role:         model.Role,
		Organization: model.Organization,
		IsActive:     model.IsActive,
		LastLogin:    cloneTime(model.LastLogin),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toApplicationEmployees(models []persistence.Employee) []application.Employee {
	if len(models) == 0 {
		return nil
	}
	employees := make([]application.Employee, 0, len(models))
	for _, model := range models {
		employees = append(employees, toApplicationEmployee(model))
	}
	return employees
}

func toPersistenceMeeting(meeting application.Meeting) persistence.Meeting {
	return persistence.Meeting{
		ID:              meeting.ID,
		RoomID:          meeting.RoomID,
		Title:           meeting.Title,
		Description:     cloneString(meeting.Description),
		MeetingType:     meeting.MeetingType,
		LocationType:    meeting.LocationType,
		Season:          cloneString(meeting.Season),
		Topics:          cloneStrings(meeting.Topics),
		HostID:          meeting.HostID,
		ScheduledAt:     cloneTime(meeting.ScheduledAt),
		StartedAt:       cloneTime(meeting.StartedAt),
		EndedAt:         cloneTime(meeting.EndedAt),
		DurationMinutes: meeting.DurationMinutes,
		Settings:        persistence.MeetingSettings(meeting.Settings),
		CreatedAt:       meeting.CreatedAt,
		UpdatedAt:       meeting.UpdatedAt,
	}
}

func toApplicationMeeting(model persistence.Meeting) application.Meeting {
	return application.Meeting{
		ID:              model.ID,
		RoomID:          model.RoomID,
		Title:           model.Title,
		Description:     cloneString(model.Description),
		MeetingType:     model.MeetingType,
		LocationType:    model.LocationType,
		Season:          cloneString(model.Season),
		Topics:          cloneStrings(model.Topics),
		HostID:          model.HostID,
		ScheduledAt:     cloneTime(model.ScheduledAt),
		StartedAt:       cloneTime(model.StartedAt),
		EndedAt:         cloneTime(model.EndedAt),
		DurationMinutes: model.DurationMinutes,
		Settings:        application.MeetingSettings(model.Settings),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceInvite(invite application.Invite) persistence.MeetingInvite {
	return persistence.MeetingInvite{
		ID:            invite.ID,
		MeetingID:     invite.MeetingID,
		InviteCode:    invite.Code,
		Theme:         invite.Theme,
		CustomMessage: cloneString(invite.CustomMessage),
		ExpiresAt:     invite.ExpiresAt,
		MaxUses:       invite.MaxUses,
		CurrentUses:   invite.CurrentUses,
		CreatedAt:     invite.CreatedAt,
	}
}

func toApplicationInvite(model persistence.MeetingInvite) application.Invite {
	return application.Invite{
		ID:            model.ID,
		MeetingID:     model.MeetingID,
		Code:          model.InviteCode,
		Theme:         model.Theme,
		CustomMessage: cloneString(model.CustomMessage),
		ExpiresAt:     model.ExpiresAt,
		MaxUses:       model.MaxUses,
		CurrentUses:   model.CurrentUses,
		CreatedAt:     model.CreatedAt,
	}
}

func toPersistenceParticipant(participant application.Participant) persistence.MeetingParticipant {
	return persistence.MeetingParticipant{
		ID:                participant.ID,
		MeetingID:         participant.MeetingID,
		DisplayName:       participant.DisplayName,
		Organization:      cloneString(participant.Organization),
		Email:             cloneString(participant.Email),
		IsHost:            participant.IsHost,
		JoinedAt:          participant.JoinedAt,
		LeftAt:            cloneTime(participant.LeftAt),
		ConnectionQuality: participant.ConnectionQuality,
	}
}

func toApplicationParticipant(model persistence.MeetingParticipant) application.Participant {
	return application.Participant{
		ID:                model.ID,
		MeetingID:         model.MeetingID,
		DisplayName:       model.DisplayName,
		Organization:      cloneString(model.Organization),
		Email:             cloneString(model.Email),
		IsHost:            model.IsHost,
		JoinedAt:          model.JoinedAt,
		LeftAt:            cloneTime(model.LeftAt),
		ConnectionQuality: model.ConnectionQuality,
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		EmployeeID:  session.EmployeeID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		EmployeeID:  model.EmployeeID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
