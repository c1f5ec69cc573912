package application

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/example/sirius-meet/internal/persistence"
)

const maxDisplayNameLength = 100

// DetermineRole derives the joiner's role from verifiable proof only: an
// authenticated principal who hosts the meeting, or a host grant signed for
// this meeting. Names supplied by the client play no part.
func (s *MeetingService) DetermineRole(ctx context.Context, meeting Meeting, proof RoleProof) ParticipantRole {
	if proof.Principal != nil {
		if id := strings.TrimSpace(proof.Principal.EmployeeID); id != "" && id == meeting.HostID {
			return RoleHost
		}
	}

	token := strings.TrimSpace(proof.Grant)
	if token == "" || s.grants == nil {
		return RoleParticipant
	}
	grant, err := s.grants.Verify(token)
	if err != nil {
		s.loggerWith(ctx, "DetermineRole", "meeting_id", meeting.ID).
			InfoContext(ctx, "ignoring invalid grant", "error", err, "error_kind", ErrorKind(err))
		return RoleParticipant
	}
	if grant.Role == RoleHost && grant.MeetingID == meeting.ID {
		return RoleHost
	}
	return RoleParticipant
}

// RegisterParticipant records a join. Display names need not be unique.
func (s *MeetingService) RegisterParticipant(ctx context.Context, params RegisterParticipantParams) (participant Participant, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "RegisterParticipant",
		"meeting_id", params.MeetingID,
		"is_host", params.IsHost,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register participant", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("participant_id", participant.ID).InfoContext(ctx, "participant registered")
	}()

	input, vErr := normalizeParticipant(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	candidate := Participant{
		ID:                s.idGenerator(),
		MeetingID:         strings.TrimSpace(params.MeetingID),
		DisplayName:       input.DisplayName,
		Organization:      input.Organization,
		Email:             input.Email,
		IsHost:            params.IsHost,
		JoinedAt:          s.now().UTC(),
		ConnectionQuality: DefaultConnectionState,
	}

	sctx, cancel := s.store(ctx)
	err = s.participants.CreateParticipant(sctx, candidate)
	cancel()
	if err != nil {
		if errors.Is(err, persistence.ErrConstraintViolation) {
			err = fmt.Errorf("%w: meeting %s: %v", ErrNotFound, candidate.MeetingID, err)
			return
		}
		err = mapRepoError(err)
		return
	}

	role := RoleParticipant
	if candidate.IsHost {
		role = RoleHost
	}
	s.metrics.ParticipantJoined(role)
	participant = candidate
	return
}

// RecordParticipantLeave stamps left_at on the first call and returns the
// stored participant unchanged on later calls.
func (s *MeetingService) RecordParticipantLeave(ctx context.Context, participantID string) (Participant, error) {
	if err := s.ready(); err != nil {
		return Participant{}, err
	}
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return Participant{}, ErrNotFound
	}

	sctx, cancel := s.store(ctx)
	participant, err := s.participants.MarkParticipantLeft(sctx, participantID, s.now().UTC())
	cancel()
	if err != nil {
		err = mapRepoError(err)
		s.loggerWith(ctx, "RecordParticipantLeave", "participant_id", participantID).
			ErrorContext(ctx, "failed to record leave", "error", err, "error_kind", ErrorKind(err))
		return Participant{}, err
	}
	return participant, nil
}

// UpdateConnectionQuality stores the latest quality reported by a participant.
func (s *MeetingService) UpdateConnectionQuality(ctx context.Context, participantID, quality string) (Participant, error) {
	if err := s.ready(); err != nil {
		return Participant{}, err
	}
	quality = strings.ToLower(strings.TrimSpace(quality))
	if !isOneOf(connectionQualities, quality) {
		return Participant{}, singleFieldError("quality", "connection quality is invalid")
	}

	sctx, cancel := s.store(ctx)
	participant, err := s.participants.UpdateConnectionQuality(sctx, strings.TrimSpace(participantID), quality)
	cancel()
	if err != nil {
		return Participant{}, mapRepoError(err)
	}
	return participant, nil
}

// ListParticipants returns everyone who joined the meeting in join order.
func (s *MeetingService) ListParticipants(ctx context.Context, meetingID string) ([]Participant, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	meeting, err := s.loadMeeting(ctx, strings.TrimSpace(meetingID))
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.store(ctx)
	defer cancel()
	participants, err := s.participants.ListParticipants(sctx, meeting.ID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return participants, nil
}

// StartMeeting stamps started_at on the first call. Later calls return the
// stored meeting unchanged.
func (s *MeetingService) StartMeeting(ctx context.Context, meetingID string) (Meeting, error) {
	if err := s.ready(); err != nil {
		return Meeting{}, err
	}
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return Meeting{}, ErrNotFound
	}

	sctx, cancel := s.store(ctx)
	meeting, err := s.meetings.MarkMeetingStarted(sctx, meetingID, s.now().UTC())
	cancel()
	if err != nil {
		return Meeting{}, mapRepoError(err)
	}
	return meeting, nil
}

// StartMeetingAsHost starts the meeting after checking the caller hosts it.
func (s *MeetingService) StartMeetingAsHost(ctx context.Context, meetingID string, proof RoleProof) (Meeting, error) {
	if err := s.ready(); err != nil {
		return Meeting{}, err
	}
	meeting, err := s.loadMeeting(ctx, strings.TrimSpace(meetingID))
	if err != nil {
		return Meeting{}, err
	}
	if s.DetermineRole(ctx, meeting, proof) != RoleHost {
		return Meeting{}, ErrUnauthorized
	}
	return s.StartMeeting(ctx, meeting.ID)
}

// EndMeeting closes the meeting and records its duration. Only the host may
// end a meeting and only the first call has an effect.
func (s *MeetingService) EndMeeting(ctx context.Context, meetingID string, proof RoleProof) (meeting Meeting, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "EndMeeting", "meeting_id", meetingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to end meeting", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("duration_minutes", meeting.DurationMinutes).InfoContext(ctx, "meeting ended")
	}()

	current, err := s.loadMeeting(ctx, strings.TrimSpace(meetingID))
	if err != nil {
		return
	}
	if s.DetermineRole(ctx, current, proof) != RoleHost {
		err = ErrUnauthorized
		return
	}

	sctx, cancel := s.store(ctx)
	meeting, err = s.meetings.MarkMeetingEnded(sctx, current.ID, s.now().UTC())
	cancel()
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if current.EndedAt == nil {
		s.metrics.MeetingEnded(meeting.DurationMinutes)
	}
	return
}

// JoinMeeting admits someone holding an invite code. The invite must
// resolve; non-host joiners then take one use, and losing the race for the
// last use or the expiry instant rejects the join. Other failures while
// recording the use are logged and do not block the join.
func (s *MeetingService) JoinMeeting(ctx context.Context, params JoinMeetingParams) (result JoinResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	code := normalizeInviteCode(params.InviteCode)
	logger := s.loggerWith(ctx, "JoinMeeting", "invite_code", code)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "join rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"meeting_id", result.Meeting.ID,
			"participant_id", result.Participant.ID,
			"role", string(result.Role),
		).InfoContext(ctx, "participant joined")
	}()

	if _, vErr := normalizeParticipant(RegisterParticipantParams{
		DisplayName:  params.DisplayName,
		Organization: params.Organization,
		Email:        params.Email,
	}); vErr.HasErrors() {
		err = vErr
		return
	}

	preview, err := s.ResolveInvite(ctx, code)
	if err != nil {
		return
	}

	role := s.DetermineRole(ctx, preview.Meeting, params.Proof)
	if role != RoleHost {
		if _, consumeErr := s.ConsumeInviteUse(ctx, code); consumeErr != nil {
			if errors.Is(consumeErr, ErrInviteExhausted) || errors.Is(consumeErr, ErrInviteExpired) || errors.Is(consumeErr, ErrInviteNotFound) {
				err = consumeErr
				return
			}
			logger.WarnContext(ctx, "invite use not recorded", "error", consumeErr, "error_kind", ErrorKind(consumeErr))
		}
	}

	return s.admit(ctx, preview.Meeting, role, params.Proof.Principal, RegisterParticipantParams{
		MeetingID:    preview.Meeting.ID,
		DisplayName:  params.DisplayName,
		Organization: params.Organization,
		Email:        params.Email,
		IsHost:       role == RoleHost,
	})
}

// JoinHostedMeeting lets the host enter their own meeting without an invite.
func (s *MeetingService) JoinHostedMeeting(ctx context.Context, principal Principal, meetingID string) (JoinResult, error) {
	if err := s.ready(); err != nil {
		return JoinResult{}, err
	}
	meeting, err := s.loadMeeting(ctx, strings.TrimSpace(meetingID))
	if err != nil {
		return JoinResult{}, err
	}
	if s.DetermineRole(ctx, meeting, RoleProof{Principal: &principal}) != RoleHost {
		return JoinResult{}, ErrUnauthorized
	}

	displayName := strings.TrimSpace(principal.FullName)
	if displayName == "" {
		displayName = principal.EmployeeID
	}
	organization := Organization
	return s.admit(ctx, meeting, RoleHost, &principal, RegisterParticipantParams{
		MeetingID:    meeting.ID,
		DisplayName:  displayName,
		Organization: &organization,
		IsHost:       true,
	})
}

// VerifyParticipantGrant checks that token is a valid grant issued to participantID.
func (s *MeetingService) VerifyParticipantGrant(token, participantID string) (Grant, error) {
	if s == nil || s.grants == nil {
		return Grant{}, ErrUnauthorized
	}
	grant, err := s.grants.Verify(strings.TrimSpace(token))
	if err != nil {
		return Grant{}, err
	}
	if grant.ParticipantID == "" || grant.ParticipantID != strings.TrimSpace(participantID) {
		return Grant{}, ErrUnauthorized
	}
	return grant, nil
}

func (s *MeetingService) admit(ctx context.Context, meeting Meeting, role ParticipantRole, principal *Principal, params RegisterParticipantParams) (JoinResult, error) {
	participant, err := s.RegisterParticipant(ctx, params)
	if err != nil {
		return JoinResult{}, err
	}

	if role == RoleHost {
		started, startErr := s.StartMeeting(ctx, meeting.ID)
		if startErr != nil {
			s.loggerWith(ctx, "StartMeeting", "meeting_id", meeting.ID).
				WarnContext(ctx, "meeting start not recorded", "error", startErr, "error_kind", ErrorKind(startErr))
		} else {
			meeting = started
		}
	}

	subject := participant.ID
	if principal != nil && principal.EmployeeID != "" {
		subject = principal.EmployeeID
	}
	now := s.now().UTC()
	until := now.Add(ParticipantGrantTTL)
	token, err := s.signGrant(Grant{
		MeetingID:     meeting.ID,
		RoomID:        meeting.RoomID,
		Role:          role,
		ParticipantID: participant.ID,
		Subject:       subject,
		IssuedAt:      now,
		ExpiresAt:     until,
	})
	if err != nil {
		return JoinResult{}, err
	}

	result := JoinResult{Meeting: meeting, Participant: participant, Role: role, Grant: token}
	if token != "" {
		result.GrantUntil = until
	}
	return result, nil
}

type participantInput struct {
	DisplayName  string
	Organization *string
	Email        *string
}

func normalizeParticipant(params RegisterParticipantParams) (participantInput, *ValidationError) {
	vErr := &ValidationError{}
	input := participantInput{
		DisplayName:  strings.TrimSpace(params.DisplayName),
		Organization: normalizeOptionalString(params.Organization),
		Email:        normalizeOptionalString(params.Email),
	}

	switch {
	case input.DisplayName == "":
		vErr.add("display_name", "display name is required")
	case len([]rune(input.DisplayName)) > maxDisplayNameLength:
		vErr.add("display_name", "display name is too long")
	}
	if input.Email != nil {
		if _, err := mail.ParseAddress(*input.Email); err != nil {
			vErr.add("email", "email is invalid")
		}
	}
	return input, vErr
}
