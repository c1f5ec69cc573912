package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/sirius-meet/internal/application"
)

type inviteService interface {
	ResolveInvite(ctx context.Context, code string) (application.InvitePreview, error)
	JoinMeeting(ctx context.Context, params application.JoinMeetingParams) (application.JoinResult, error)
}

// InviteHandler serves the public invite endpoints.
type InviteHandler struct {
	service   inviteService
	validator *requestValidator
	responder responder
	logger    *slog.Logger
}

func NewInviteHandler(service inviteService, logger *slog.Logger) *InviteHandler {
	base := defaultLogger(logger)
	return &InviteHandler{service: service, validator: newRequestValidator(), responder: newResponder(base), logger: base}
}

func (h *InviteHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "InviteHandler", operation, attrs...)
}

// Preview resolves an invite code without using it.
func (h *InviteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	code := chi.URLParam(r, "code")
	logger := h.log(r.Context(), "Preview", "invite_code", code)

	preview, err := h.service.ResolveInvite(r.Context(), code)
	if err != nil {
		logger.InfoContext(r.Context(), "invite rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, invitePreviewResponse{
		Invite:  toInviteResponse(preview.Invite),
		Meeting: toMeetingResponse(preview.Meeting),
		Host: hostResponse{
			NationalID:   preview.Host.NationalID,
			FullName:     preview.Host.FullName,
			Role:         preview.Host.Role,
			Organization: preview.Host.Organization,
		},
	})
}

// Join admits the caller into the meeting behind the invite code.
func (h *InviteHandler) Join(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	code := chi.URLParam(r, "code")
	logger := h.log(r.Context(), "Join", "invite_code", code)

	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode join request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	result, err := h.service.JoinMeeting(r.Context(), application.JoinMeetingParams{
		InviteCode:   code,
		DisplayName:  req.DisplayName,
		Organization: req.Organization,
		Email:        req.Email,
		Proof:        roleProofFromRequest(r),
	})
	if err != nil {
		logger.InfoContext(r.Context(), "join rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With(
		"meeting_id", result.Meeting.ID,
		"participant_id", result.Participant.ID,
		"role", result.Role,
	).InfoContext(r.Context(), "participant joined")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toJoinResponse(result))
}

type joinRequest struct {
	DisplayName  string  `json:"display_name" validate:"required"`
	Organization *string `json:"organization" validate:"omitempty,max=120"`
	Email        *string `json:"email" validate:"omitempty,max=254"`
}
