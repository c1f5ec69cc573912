package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/example/sirius-meet/internal/persistence"
)

const (
	maxRoomIDAttempts          = 8
	maxInviteCodeAttempts      = 8
	inviteIssueMaxTries        = 3
	defaultInviteRetryInterval = 200 * time.Millisecond
	maxTitleLength             = 200
	maxCustomMessageLength     = 500
)

// MeetingServiceConfig collects the collaborators of a MeetingService. Only
// the repositories are required.
type MeetingServiceConfig struct {
	Meetings     MeetingRepository
	Invites      InviteRepository
	Participants ParticipantRepository
	Employees    EmployeeRepository
	Grants       GrantSigner
	Metrics      Metrics

	IDGenerator func() string
	Now         func() time.Time
	// Intn returns a value in [0, n) and drives invite code generation.
	Intn func(n int) int
	// StoreTimeout bounds every repository call.
	StoreTimeout time.Duration
	// InviteRetryInterval is the first backoff delay between invite attempts
	// of CreateMeetingWithInvite.
	InviteRetryInterval time.Duration
}

// MeetingService owns the meeting, invite and participant lifecycle.
type MeetingService struct {
	meetings     MeetingRepository
	invites      InviteRepository
	participants ParticipantRepository
	employees    EmployeeRepository
	grants       GrantSigner
	metrics      Metrics

	idGenerator   func() string
	now           func() time.Time
	intn          func(n int) int
	storeTimeout  time.Duration
	retryInterval time.Duration
	logger        *slog.Logger

	roomMu         sync.Mutex
	lastRoomMillis int64
}

// NewMeetingService constructs a MeetingService with the provided dependencies.
func NewMeetingService(config MeetingServiceConfig) *MeetingService {
	return NewMeetingServiceWithLogger(config, nil)
}

// NewMeetingServiceWithLogger constructs a MeetingService with a specified logger.
func NewMeetingServiceWithLogger(config MeetingServiceConfig, logger *slog.Logger) *MeetingService {
	s := &MeetingService{
		meetings:      config.Meetings,
		invites:       config.Invites,
		participants:  config.Participants,
		employees:     config.Employees,
		grants:        config.Grants,
		metrics:       config.Metrics,
		idGenerator:   config.IDGenerator,
		now:           config.Now,
		intn:          config.Intn,
		storeTimeout:  config.StoreTimeout,
		retryInterval: config.InviteRetryInterval,
		logger:        defaultLogger(logger),
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.idGenerator == nil {
		s.idGenerator = func() string { return "" }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.intn == nil {
		s.intn = rand.IntN
	}
	if s.retryInterval <= 0 {
		s.retryInterval = defaultInviteRetryInterval
	}
	return s
}

func (s *MeetingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MeetingService", operation, attrs...)
}

func (s *MeetingService) store(ctx context.Context) (context.Context, context.CancelFunc) {
	return storeContext(ctx, s.storeTimeout)
}

func (s *MeetingService) ready() error {
	if s == nil {
		return fmt.Errorf("MeetingService is nil")
	}
	if s.meetings == nil || s.invites == nil || s.participants == nil {
		return fmt.Errorf("meeting repositories not configured")
	}
	return nil
}

// CreateMeeting validates input and persists a new meeting for the host.
// The host is assumed to be an authenticated, active employee.
func (s *MeetingService) CreateMeeting(ctx context.Context, params CreateMeetingParams) (meeting Meeting, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateMeeting",
		"host_id", params.HostID,
		"meeting_type", params.MeetingType,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create meeting", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("meeting_id", meeting.ID, "room_id", meeting.RoomID).InfoContext(ctx, "meeting created")
	}()

	input, vErr := normalizeCreateMeeting(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	meeting = Meeting{
		ID:           s.idGenerator(),
		Title:        input.Title,
		Description:  input.Description,
		MeetingType:  input.MeetingType,
		LocationType: input.LocationType,
		Season:       input.Season,
		Topics:       input.Topics,
		HostID:       input.HostID,
		ScheduledAt:  input.ScheduledAt,
		Settings:     DefaultMeetingSettings(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var cause error
	for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
		meeting.RoomID = fmt.Sprintf("sirius-%s-%d", meeting.MeetingType, s.nextRoomMillis(now))

		sctx, cancel := s.store(ctx)
		cause = s.meetings.CreateMeeting(sctx, meeting)
		cancel()
		if cause == nil {
			s.metrics.MeetingCreated(meeting.MeetingType)
			return meeting, nil
		}
		if !errors.Is(cause, persistence.ErrDuplicate) {
			break
		}
		logger.WarnContext(ctx, "room id collision, retrying", "room_id", meeting.RoomID, "attempt", attempt+1)
	}

	err = &CreateMeetingError{Cause: mapRepoError(cause)}
	meeting = Meeting{}
	return
}

// nextRoomMillis returns the millisecond component of the next room id. It
// never repeats or goes backwards within one service instance.
func (s *MeetingService) nextRoomMillis(now time.Time) int64 {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()

	millis := now.UnixMilli()
	if millis <= s.lastRoomMillis {
		millis = s.lastRoomMillis + 1
	}
	s.lastRoomMillis = millis
	return millis
}

// IssueInvite mints a new invite code for an existing meeting.
func (s *MeetingService) IssueInvite(ctx context.Context, params IssueInviteParams) (invite Invite, err error) {
	if err = s.ready(); err != nil {
		return
	}

	meetingID := strings.TrimSpace(params.MeetingID)
	theme := normalizeInviteTheme(params.Theme)
	logger := s.loggerWith(ctx, "IssueInvite",
		"meeting_id", meetingID,
		"theme", theme,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to issue invite", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("invite_id", invite.ID, "invite_code", invite.Code).InfoContext(ctx, "invite issued")
	}()

	message, vErr := normalizeCustomMessage(params.CustomMessage)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if meetingID == "" {
		err = ErrNotFound
		return
	}

	if _, err = s.loadMeeting(ctx, meetingID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			err = &IssueInviteError{MeetingID: meetingID, Cause: err}
		}
		return
	}

	now := s.now().UTC()
	var cause error
	for attempt := 0; attempt < maxInviteCodeAttempts; attempt++ {
		candidate := Invite{
			ID:            s.idGenerator(),
			MeetingID:     meetingID,
			Code:          generateInviteCode(theme, s.intn),
			Theme:         theme,
			CustomMessage: message,
			ExpiresAt:     now.Add(InviteTTL),
			MaxUses:       InviteMaxUses,
			CreatedAt:     now,
		}

		sctx, cancel := s.store(ctx)
		cause = s.invites.CreateInvite(sctx, candidate)
		cancel()
		if cause == nil {
			s.metrics.InviteIssued(theme)
			return candidate, nil
		}
		if !errors.Is(cause, persistence.ErrDuplicate) {
			break
		}
		logger.WarnContext(ctx, "invite code collision, retrying", "invite_code", candidate.Code, "attempt", attempt+1)
	}

	err = &IssueInviteError{MeetingID: meetingID, Cause: mapRepoError(cause)}
	return
}

// EnsureInvite returns the newest invite of the meeting that can still be
// used and issues a new one when there is none. Repeating the call after a
// success does not mint further codes.
func (s *MeetingService) EnsureInvite(ctx context.Context, params IssueInviteParams) (Invite, error) {
	if err := s.ready(); err != nil {
		return Invite{}, err
	}

	meetingID := strings.TrimSpace(params.MeetingID)
	sctx, cancel := s.store(ctx)
	existing, err := s.invites.ListInvitesForMeeting(sctx, meetingID)
	cancel()
	if err != nil {
		return Invite{}, &IssueInviteError{MeetingID: meetingID, Cause: mapRepoError(err)}
	}

	now := s.now()
	for _, invite := range existing {
		if !invite.Expired(now) && !invite.Exhausted() {
			s.loggerWith(ctx, "EnsureInvite", "meeting_id", meetingID).
				DebugContext(ctx, "reusing active invite", "invite_id", invite.ID)
			return invite, nil
		}
	}
	return s.IssueInvite(ctx, params)
}

// CreateMeetingWithInvite creates a meeting and then its first invite. The
// two writes are not transactional: when every invite attempt fails the
// result still carries the stored meeting and its host grant, and err is an
// *IssueInviteError the caller can recover from with EnsureInvite.
func (s *MeetingService) CreateMeetingWithInvite(ctx context.Context, params CreateMeetingWithInviteParams) (result MeetingWithInvite, err error) {
	if err = s.ready(); err != nil {
		return
	}

	if _, vErr := normalizeCustomMessage(params.CustomMessage); vErr.HasErrors() {
		err = vErr
		return
	}

	var meeting Meeting
	meeting, err = s.CreateMeeting(ctx, params.Meeting)
	if err != nil {
		return
	}
	result.Meeting = meeting

	logger := s.loggerWith(ctx, "CreateMeetingWithInvite", "meeting_id", meeting.ID)

	grant, until, gErr := s.signHostGrant(meeting)
	if gErr != nil {
		logger.ErrorContext(ctx, "failed to sign host grant", "error", gErr, "error_kind", ErrorKind(gErr))
	} else {
		result.HostGrant = grant
		result.HostGrantUntil = until
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = s.retryInterval

	issueParams := IssueInviteParams{MeetingID: meeting.ID, Theme: params.Theme, CustomMessage: params.CustomMessage}
	invite, issueErr := backoff.Retry(ctx, func() (Invite, error) {
		invite, err := s.EnsureInvite(ctx, issueParams)
		if err == nil {
			return invite, nil
		}
		var vErr *ValidationError
		if errors.As(err, &vErr) || errors.Is(err, ErrNotFound) {
			return Invite{}, backoff.Permanent(err)
		}
		return Invite{}, err
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxTries(inviteIssueMaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "invite issuance failed, retrying", "error", err, "retry_in", next)
		}),
	)
	if issueErr != nil {
		var typed *IssueInviteError
		if !errors.As(issueErr, &typed) {
			issueErr = &IssueInviteError{MeetingID: meeting.ID, Cause: issueErr}
		}
		err = issueErr
		return
	}

	result.Invite = &invite
	return
}

// ResolveInvite looks an invite code up without consuming it. Expiry is
// checked before usage, so an expired invite reports ErrInviteExpired even
// when it is also exhausted.
func (s *MeetingService) ResolveInvite(ctx context.Context, code string) (preview InvitePreview, err error) {
	if err = s.ready(); err != nil {
		return
	}

	code = normalizeInviteCode(code)
	logger := s.loggerWith(ctx, "ResolveInvite", "invite_code", code)
	defer func() {
		if err != nil {
			logger.InfoContext(ctx, "invite rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if code == "" {
		err = ErrInviteNotFound
		return
	}

	sctx, cancel := s.store(ctx)
	invite, err := s.invites.GetInviteByCode(sctx, code)
	cancel()
	if err != nil {
		err = mapInviteRepoError(err)
		return
	}

	now := s.now()
	if invite.Expired(now) {
		err = ErrInviteExpired
		return
	}
	if invite.Exhausted() {
		err = ErrInviteExhausted
		return
	}

	meeting, err := s.loadMeeting(ctx, invite.MeetingID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInviteNotFound
		}
		return
	}

	host, err := s.hostSummary(ctx, meeting.HostID)
	if err != nil {
		return
	}

	preview = InvitePreview{Invite: invite, Meeting: meeting, Host: host}
	return
}

// ConsumeInviteUse atomically takes one use of the invite.
func (s *MeetingService) ConsumeInviteUse(ctx context.Context, code string) (Invite, error) {
	if err := s.ready(); err != nil {
		return Invite{}, err
	}

	code = normalizeInviteCode(code)
	if code == "" {
		s.metrics.InviteConsumed("not_found")
		return Invite{}, ErrInviteNotFound
	}

	sctx, cancel := s.store(ctx)
	invite, err := s.invites.IncrementInviteUse(sctx, code, s.now())
	cancel()
	if err != nil {
		err = mapInviteRepoError(err)
		s.metrics.InviteConsumed(consumeOutcome(err))
		return Invite{}, err
	}
	s.metrics.InviteConsumed("accepted")
	return invite, nil
}

// GetMeeting returns a meeting with its invites.
func (s *MeetingService) GetMeeting(ctx context.Context, id string) (MeetingDetails, error) {
	if err := s.ready(); err != nil {
		return MeetingDetails{}, err
	}
	meeting, err := s.loadMeeting(ctx, strings.TrimSpace(id))
	if err != nil {
		return MeetingDetails{}, err
	}
	return s.withInvites(ctx, meeting)
}

// GetMeetingByRoom returns the meeting owning roomID with its invites.
func (s *MeetingService) GetMeetingByRoom(ctx context.Context, roomID string) (MeetingDetails, error) {
	if err := s.ready(); err != nil {
		return MeetingDetails{}, err
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return MeetingDetails{}, ErrNotFound
	}

	sctx, cancel := s.store(ctx)
	meeting, err := s.meetings.GetMeetingByRoomID(sctx, roomID)
	cancel()
	if err != nil {
		return MeetingDetails{}, mapRepoError(err)
	}
	return s.withInvites(ctx, meeting)
}

// ListHostMeetings returns the host's most recent meetings with their invites.
func (s *MeetingService) ListHostMeetings(ctx context.Context, hostID string, limit int) ([]MeetingDetails, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = HostMeetingsLimit
	}

	sctx, cancel := s.store(ctx)
	meetings, err := s.meetings.ListMeetingsByHost(sctx, strings.TrimSpace(hostID), limit)
	cancel()
	if err != nil {
		return nil, mapRepoError(err)
	}

	details := make([]MeetingDetails, 0, len(meetings))
	for _, meeting := range meetings {
		detail, err := s.withInvites(ctx, meeting)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}

// FindMeetings lists meetings matching the agricultural context in filter,
// newest first. Invites are not included.
func (s *MeetingService) FindMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	normalized, vErr := normalizeMeetingFilter(filter)
	if vErr.HasErrors() {
		return nil, vErr
	}

	sctx, cancel := s.store(ctx)
	meetings, err := s.meetings.FindMeetings(sctx, normalized)
	cancel()
	if err != nil {
		s.loggerWith(ctx, "FindMeetings").ErrorContext(ctx, "failed to find meetings", "error", err)
		return nil, mapRepoError(err)
	}
	if meetings == nil {
		meetings = []Meeting{}
	}
	return meetings, nil
}

func (s *MeetingService) loadMeeting(ctx context.Context, id string) (Meeting, error) {
	if id == "" {
		return Meeting{}, ErrNotFound
	}
	sctx, cancel := s.store(ctx)
	defer cancel()
	meeting, err := s.meetings.GetMeeting(sctx, id)
	if err != nil {
		return Meeting{}, mapRepoError(err)
	}
	return meeting, nil
}

func (s *MeetingService) withInvites(ctx context.Context, meeting Meeting) (MeetingDetails, error) {
	sctx, cancel := s.store(ctx)
	defer cancel()
	invites, err := s.invites.ListInvitesForMeeting(sctx, meeting.ID)
	if err != nil {
		return MeetingDetails{}, mapRepoError(err)
	}
	return MeetingDetails{Meeting: meeting, Invites: invites}, nil
}

func (s *MeetingService) hostSummary(ctx context.Context, hostID string) (HostSummary, error) {
	summary := HostSummary{NationalID: hostID, Organization: Organization}
	if s.employees == nil {
		return summary, nil
	}

	sctx, cancel := s.store(ctx)
	defer cancel()
	employee, err := s.employees.GetEmployee(sctx, hostID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return summary, nil
		}
		return HostSummary{}, err
	}
	return HostSummary{
		NationalID:   employee.NationalID,
		FullName:     employee.FullName,
		Role:         employee.Role,
		Organization: employee.Organization,
	}, nil
}

func (s *MeetingService) signHostGrant(meeting Meeting) (string, time.Time, error) {
	now := s.now().UTC()
	until := now.Add(InviteTTL)
	token, err := s.signGrant(Grant{
		MeetingID: meeting.ID,
		RoomID:    meeting.RoomID,
		Role:      RoleHost,
		Subject:   meeting.HostID,
		IssuedAt:  now,
		ExpiresAt: until,
	})
	if err != nil || token == "" {
		return "", time.Time{}, err
	}
	return token, until, nil
}

func (s *MeetingService) signGrant(grant Grant) (string, error) {
	if s.grants == nil {
		return "", nil
	}
	token, err := s.grants.Sign(grant)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return token, nil
}

type createMeetingInput struct {
	HostID       string
	Title        string
	Description  *string
	MeetingType  string
	LocationType string
	Season       *string
	Topics       []string
	ScheduledAt  *time.Time
}

func normalizeCreateMeeting(params CreateMeetingParams) (createMeetingInput, *ValidationError) {
	vErr := &ValidationError{}
	input := createMeetingInput{
		HostID:       strings.TrimSpace(params.HostID),
		Title:        strings.TrimSpace(params.Title),
		MeetingType:  strings.TrimSpace(params.MeetingType),
		LocationType: strings.TrimSpace(params.LocationType),
	}

	if input.HostID == "" {
		vErr.add("host_id", "host is required")
	}
	switch {
	case input.Title == "":
		vErr.add("title", "title is required")
	case len([]rune(input.Title)) > maxTitleLength:
		vErr.add("title", "title is too long")
	}
	if !isOneOf(meetingTypes, input.MeetingType) {
		vErr.add("meeting_type", "meeting type is invalid")
	}
	if input.LocationType == "" {
		input.LocationType = DefaultLocationType
	}
	if !isOneOf(locationTypes, input.LocationType) {
		vErr.add("location_type", "location type is invalid")
	}

	if season := strings.ToLower(strings.TrimSpace(params.Season)); season != "" {
		if isOneOf(seasons, season) {
			input.Season = &season
		} else {
			vErr.add("season", "season is invalid")
		}
	}
	if params.ScheduledAt != nil {
		if params.ScheduledAt.IsZero() {
			vErr.add("scheduled_at", "scheduled time is invalid")
		} else {
			scheduled := params.ScheduledAt.UTC()
			input.ScheduledAt = &scheduled
		}
	}

	input.Topics = normalizeTopics(params.Topics)

	if description := normalizeOptionalString(params.Description); description != nil {
		input.Description = description
	} else {
		fallback := "Reunión creada por empleado " + input.HostID
		input.Description = &fallback
	}
	return input, vErr
}

func normalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		if trimmed := strings.TrimSpace(topic); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeMeetingFilter(filter MeetingFilter) (MeetingFilter, *ValidationError) {
	vErr := &ValidationError{}
	out := MeetingFilter{
		MeetingType:  strings.TrimSpace(filter.MeetingType),
		LocationType: strings.TrimSpace(filter.LocationType),
		Season:       strings.ToLower(strings.TrimSpace(filter.Season)),
		Topics:       normalizeTopics(filter.Topics),
		Limit:        filter.Limit,
	}
	if out.MeetingType != "" && !isOneOf(meetingTypes, out.MeetingType) {
		vErr.add("type", "meeting type is invalid")
	}
	if out.LocationType != "" && !isOneOf(locationTypes, out.LocationType) {
		vErr.add("location", "location type is invalid")
	}
	if out.Season != "" && !isOneOf(seasons, out.Season) {
		vErr.add("season", "season is invalid")
	}
	switch {
	case out.Limit <= 0:
		out.Limit = MeetingSearchLimit
	case out.Limit > MaxMeetingSearchLimit:
		out.Limit = MaxMeetingSearchLimit
	}
	return out, vErr
}

func normalizeCustomMessage(message *string) (*string, *ValidationError) {
	normalized := normalizeOptionalString(message)
	if normalized != nil && len([]rune(*normalized)) > maxCustomMessageLength {
		return nil, singleFieldError("custom_message", "custom message is too long")
	}
	return normalized, nil
}

func normalizeInviteCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func consumeOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInviteNotFound):
		return "not_found"
	case errors.Is(err, ErrInviteExpired):
		return "expired"
	case errors.Is(err, ErrInviteExhausted):
		return "exhausted"
	default:
		return "error"
	}
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}

func mapInviteRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrInviteNotFound
	case errors.Is(err, persistence.ErrExpired):
		return ErrInviteExpired
	case errors.Is(err, persistence.ErrUsageLimitReached):
		return ErrInviteExhausted
	}
	return err
}
