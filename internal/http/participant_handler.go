package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/sirius-meet/internal/application"
)

type participantService interface {
	VerifyParticipantGrant(token, participantID string) (application.Grant, error)
	RecordParticipantLeave(ctx context.Context, participantID string) (application.Participant, error)
	UpdateConnectionQuality(ctx context.Context, participantID, quality string) (application.Participant, error)
}

// ParticipantHandler serves updates sent from inside a meeting. Every call
// must carry the grant issued to that participant on join.
type ParticipantHandler struct {
	service   participantService
	validator *requestValidator
	responder responder
	logger    *slog.Logger
}

func NewParticipantHandler(service participantService, logger *slog.Logger) *ParticipantHandler {
	base := defaultLogger(logger)
	return &ParticipantHandler{service: service, validator: newRequestValidator(), responder: newResponder(base), logger: base}
}

func (h *ParticipantHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ParticipantHandler", operation, attrs...)
}

func (h *ParticipantHandler) authorize(w http.ResponseWriter, r *http.Request, logger *slog.Logger, participantID string) bool {
	token := grantFromRequest(r)
	if token == "" {
		logger.WarnContext(r.Context(), "missing participant grant", "error_kind", "unauthorized")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingGrant)
		return false
	}
	if _, err := h.service.VerifyParticipantGrant(token, participantID); err != nil {
		logger.WarnContext(r.Context(), "participant grant rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return false
	}
	return true
}

// Leave records that the participant left. Repeated calls keep the first time.
// A store failure is logged and answered with 204 since the client is already
// gone; only an unknown participant is reported.
func (h *ParticipantHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	participantID := chi.URLParam(r, "participantID")
	logger := h.log(r.Context(), "Leave", "participant_id", participantID)
	if !h.authorize(w, r, logger, participantID) {
		return
	}

	participant, err := h.service.RecordParticipantLeave(r.Context(), participantID)
	if errors.Is(err, application.ErrNotFound) {
		logger.WarnContext(r.Context(), "leave for unknown participant", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to record leave, continuing", "error", err, "error_kind", application.ErrorKind(err))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	logger.InfoContext(r.Context(), "participant left")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, participantEnvelope{Participant: toParticipantResponse(participant)})
}

// UpdateConnection stores the latest connection quality report.
func (h *ParticipantHandler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	participantID := chi.URLParam(r, "participantID")
	logger := h.log(r.Context(), "UpdateConnection", "participant_id", participantID)
	if !h.authorize(w, r, logger, participantID) {
		return
	}

	var req connectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode connection request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	participant, err := h.service.UpdateConnectionQuality(r.Context(), participantID, req.Quality)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to update connection quality", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("quality", participant.ConnectionQuality).DebugContext(r.Context(), "connection quality updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, participantEnvelope{Participant: toParticipantResponse(participant)})
}

type connectionRequest struct {
	Quality string `json:"quality" validate:"required,oneof=excellent good fair poor"`
}

type participantEnvelope struct {
	Participant participantResponse `json:"participant"`
}
