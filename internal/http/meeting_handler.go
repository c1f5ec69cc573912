package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/sirius-meet/internal/application"
)

type meetingService interface {
	CreateMeetingWithInvite(ctx context.Context, params application.CreateMeetingWithInviteParams) (application.MeetingWithInvite, error)
	ListHostMeetings(ctx context.Context, hostID string, limit int) ([]application.MeetingDetails, error)
	FindMeetings(ctx context.Context, filter application.MeetingFilter) ([]application.Meeting, error)
	GetMeeting(ctx context.Context, id string) (application.MeetingDetails, error)
	GetMeetingByRoom(ctx context.Context, roomID string) (application.MeetingDetails, error)
	DetermineRole(ctx context.Context, meeting application.Meeting, proof application.RoleProof) application.ParticipantRole
	EnsureInvite(ctx context.Context, params application.IssueInviteParams) (application.Invite, error)
	IssueInvite(ctx context.Context, params application.IssueInviteParams) (application.Invite, error)
	StartMeetingAsHost(ctx context.Context, meetingID string, proof application.RoleProof) (application.Meeting, error)
	EndMeeting(ctx context.Context, meetingID string, proof application.RoleProof) (application.Meeting, error)
	JoinHostedMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.JoinResult, error)
	ListParticipants(ctx context.Context, meetingID string) ([]application.Participant, error)
}

// MeetingHandler serves the host facing meeting endpoints.
type MeetingHandler struct {
	service   meetingService
	validator *requestValidator
	responder responder
	logger    *slog.Logger
}

func NewMeetingHandler(service meetingService, logger *slog.Logger) *MeetingHandler {
	base := defaultLogger(logger)
	return &MeetingHandler{service: service, validator: newRequestValidator(), responder: newResponder(base), logger: base}
}

func (h *MeetingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MeetingHandler", operation, attrs...)
}

// Create stores a meeting and issues its first invite.
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req createMeetingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.EmployeeID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode meeting request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.EmployeeID)

	result, err := h.service.CreateMeetingWithInvite(r.Context(), application.CreateMeetingWithInviteParams{
		Meeting: application.CreateMeetingParams{
			HostID:       principal.EmployeeID,
			Title:        req.Title,
			Description:  req.Description,
			MeetingType:  req.MeetingType,
			Topics:       req.Topics,
			LocationType: req.LocationType,
			Season:       req.Season,
			ScheduledAt:  req.ScheduledAt,
		},
		Theme:         req.Theme,
		CustomMessage: req.CustomMessage,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "meeting creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := createMeetingResponse{Meeting: toMeetingResponse(result.Meeting)}
	if result.HostGrant != "" {
		resp.HostGrant = result.HostGrant
		resp.HostGrantUntil = formatTime(result.HostGrantUntil)
	}
	if result.Invite != nil {
		invite := toInviteResponse(*result.Invite)
		resp.Invite = &invite
	}

	logger.With("meeting_id", result.Meeting.ID, "room_id", result.Meeting.RoomID).InfoContext(r.Context(), "meeting created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, resp)
}

// List returns the signed in employee's recent meetings. With any of the
// type, location, season or topic query parameters it instead searches all
// meetings by context.
func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.EmployeeID)

	if filter, ok := meetingFilterFromQuery(r.URL.Query()); ok {
		h.search(w, r, logger, filter)
		return
	}

	limit := application.HostMeetingsLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	meetings, err := h.service.ListHostMeetings(r.Context(), principal.EmployeeID, limit)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to list meetings", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]meetingResponse, 0, len(meetings))
	for _, details := range meetings {
		out = append(out, toMeetingDetailsResponse(details, true))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingListResponse{Meetings: out})
}

func (h *MeetingHandler) search(w http.ResponseWriter, r *http.Request, logger *slog.Logger, filter application.MeetingFilter) {
	meetings, err := h.service.FindMeetings(r.Context(), filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to search meetings", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]meetingResponse, 0, len(meetings))
	for _, meeting := range meetings {
		out = append(out, toMeetingResponse(meeting))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingListResponse{Meetings: out})
}

// meetingFilterFromQuery reads the context filter. topic may repeat or hold a
// comma separated list. ok is false when no filter parameter is present.
func meetingFilterFromQuery(query url.Values) (application.MeetingFilter, bool) {
	filter := application.MeetingFilter{
		MeetingType:  strings.TrimSpace(query.Get("type")),
		LocationType: strings.TrimSpace(query.Get("location")),
		Season:       strings.TrimSpace(query.Get("season")),
	}
	for _, raw := range query["topic"] {
		for _, topic := range strings.Split(raw, ",") {
			if topic = strings.TrimSpace(topic); topic != "" {
				filter.Topics = append(filter.Topics, topic)
			}
		}
	}
	if filter.MeetingType == "" && filter.LocationType == "" && filter.Season == "" && len(filter.Topics) == 0 {
		return application.MeetingFilter{}, false
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(query.Get("limit"))); err == nil && parsed > 0 {
		filter.Limit = parsed
	}
	return filter, true
}

// Get returns a meeting by id. Invites are only shown to its host.
func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := chi.URLParam(r, "meetingID")
	details, err := h.service.GetMeeting(r.Context(), meetingID)
	h.writeDetails(w, r, "Get", details, err)
}

// GetByRoom returns the meeting owning a room id.
func (h *MeetingHandler) GetByRoom(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := chi.URLParam(r, "roomID")
	details, err := h.service.GetMeetingByRoom(r.Context(), roomID)
	h.writeDetails(w, r, "GetByRoom", details, err)
}

func (h *MeetingHandler) writeDetails(w http.ResponseWriter, r *http.Request, operation string, details application.MeetingDetails, err error) {
	logger := h.log(r.Context(), operation)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to load meeting", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	isHost := h.service.DetermineRole(r.Context(), details.Meeting, roleProofFromRequest(r)) == application.RoleHost
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingEnvelope{Meeting: toMeetingDetailsResponse(details, isHost)})
}

// CreateInvite returns a usable invite for the meeting, issuing a fresh one
// when none is left or when ?force=true.
func (h *MeetingHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := chi.URLParam(r, "meetingID")
	logger := h.log(r.Context(), "CreateInvite", "meeting_id", meetingID)

	var req createInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode invite request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	details, err := h.service.GetMeeting(r.Context(), meetingID)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to load meeting", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if h.service.DetermineRole(r.Context(), details.Meeting, roleProofFromRequest(r)) != application.RoleHost {
		logger.WarnContext(r.Context(), "non-host attempted to issue an invite", "error_kind", "unauthorized")
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthorized)
		return
	}

	params := application.IssueInviteParams{MeetingID: details.Meeting.ID, Theme: req.Theme, CustomMessage: req.CustomMessage}
	issue := h.service.EnsureInvite
	status := http.StatusOK
	if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); force {
		issue = h.service.IssueInvite
		status = http.StatusCreated
	}

	invite, err := issue(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to issue invite", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("invite_code", invite.Code).InfoContext(r.Context(), "invite ready")
	h.responder.writeJSON(r.Context(), w, status, inviteEnvelope{Invite: toInviteResponse(invite)})
}

// Start marks the meeting as started. Only the host may start it.
func (h *MeetingHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := chi.URLParam(r, "meetingID")
	logger := h.log(r.Context(), "Start", "meeting_id", meetingID)

	meeting, err := h.service.StartMeetingAsHost(r.Context(), meetingID, roleProofFromRequest(r))
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to start meeting", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "meeting started")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingEnvelope{Meeting: toMeetingResponse(meeting)})
}

// End closes the meeting and records its duration.
func (h *MeetingHandler) End(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := chi.URLParam(r, "meetingID")
	logger := h.log(r.Context(), "End", "meeting_id", meetingID)

	meeting, err := h.service.EndMeeting(r.Context(), meetingID, roleProofFromRequest(r))
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to end meeting", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("duration_minutes", meeting.DurationMinutes).InfoContext(r.Context(), "meeting ended")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingEnvelope{Meeting: toMeetingResponse(meeting)})
}

// Join lets the host enter their own meeting without an invite code.
func (h *MeetingHandler) Join(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	meetingID := chi.URLParam(r, "meetingID")
	logger := h.log(r.Context(), "Join", "meeting_id", meetingID, "principal_id", principal.EmployeeID)

	result, err := h.service.JoinHostedMeeting(r.Context(), principal, meetingID)
	if err != nil {
		logger.ErrorContext(r.Context(), "host join failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("participant_id", result.Participant.ID).InfoContext(r.Context(), "host joined meeting")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toJoinResponse(result))
}

// Participants lists everyone who joined the meeting, in join order.
func (h *MeetingHandler) Participants(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := chi.URLParam(r, "meetingID")
	logger := h.log(r.Context(), "Participants", "meeting_id", meetingID)

	participants, err := h.service.ListParticipants(r.Context(), meetingID)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to list participants", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, participantListResponse{Participants: toParticipantResponses(participants)})
}

type createMeetingRequest struct {
	Title         string     `json:"title" validate:"required"`
	Description   *string    `json:"description" validate:"omitempty,max=2000"`
	MeetingType   string     `json:"meeting_type" validate:"required"`
	Topics        []string   `json:"topics" validate:"omitempty,max=20,dive,max=60"`
	LocationType  string     `json:"location_type"`
	Season        string     `json:"season" validate:"omitempty,max=20"`
	ScheduledAt   *time.Time `json:"scheduled_at"`
	Theme         string     `json:"theme" validate:"omitempty,max=40"`
	CustomMessage *string    `json:"custom_message"`
}

type createInviteRequest struct {
	Theme         string  `json:"theme" validate:"omitempty,max=40"`
	CustomMessage *string `json:"custom_message"`
}

type createMeetingResponse struct {
	Meeting        meetingResponse `json:"meeting"`
	Invite         *inviteResponse `json:"invite"`
	HostGrant      string          `json:"host_grant,omitempty"`
	HostGrantUntil string          `json:"host_grant_expires_at,omitempty"`
}

type meetingEnvelope struct {
	Meeting meetingResponse `json:"meeting"`
}

type meetingListResponse struct {
	Meetings []meetingResponse `json:"meetings"`
}

type inviteEnvelope struct {
	Invite inviteResponse `json:"invite"`
}

type participantListResponse struct {
	Participants []participantResponse `json:"participants"`
}
