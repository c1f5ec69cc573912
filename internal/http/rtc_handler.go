package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/sirius-meet/internal/application"
)

type rtcService interface {
	IssueToken(ctx context.Context, params application.RTCTokenParams) (application.RTCToken, error)
	Status(channel string) (application.RTCStatus, error)
}

// RTCHandler hands out media tokens to meeting grant holders.
type RTCHandler struct {
	service   rtcService
	responder responder
	logger    *slog.Logger
}

func NewRTCHandler(service rtcService, logger *slog.Logger) *RTCHandler {
	base := defaultLogger(logger)
	return &RTCHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RTCHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RTCHandler", operation, attrs...)
}

// Token issues a media token for the requested channel.
func (h *RTCHandler) Token(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req rtcTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Token", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode token request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	grant := grantFromRequest(r)
	if grant == "" {
		grant = strings.TrimSpace(req.Grant)
	}
	logger := h.log(r.Context(), "Token", "channel", req.Channel)

	token, err := h.service.IssueToken(r.Context(), application.RTCTokenParams{
		Channel: req.Channel,
		UID:     string(req.UID),
		Role:    req.Role,
		Grant:   grant,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to issue rtc token", "error", err, "error_kind", application.ErrorKind(err))
		h.writeTokenError(r.Context(), w, err)
		return
	}

	logger.With("uid", token.UID, "role", token.Role).InfoContext(r.Context(), "rtc token issued")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, rtcTokenResponse{
		Token:     token.Token,
		AppID:     token.AppID,
		Channel:   token.Channel,
		UID:       token.UID,
		Role:      token.Role,
		ExpiresAt: formatTime(token.ExpiresAt),
	})
}

// Health answers the per channel readiness probe.
func (h *RTCHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status, err := h.service.Status(r.URL.Query().Get("channel"))
	if err != nil {
		h.writeTokenError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, rtcHealthResponse{
		Message:    "El servicio de tokens RTC está disponible para " + status.Channel + ".",
		Timestamp:  formatTime(status.CheckedAt),
		Status:     "healthy",
		Configured: status.Configured,
	})
}

// writeTokenError reports a missing channel as a plain bad request, the
// contract media clients already rely on.
func (h *RTCHandler) writeTokenError(ctx context.Context, w http.ResponseWriter, err error) {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		h.responder.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "RTC_BAD_REQUEST",
			Message:   localizedStatusMessage(http.StatusBadRequest),
			Errors:    localizeValidationErrors(vErr),
		})
		return
	}
	h.responder.handleServiceError(ctx, w, err)
}

type rtcTokenRequest struct {
	Channel string         `json:"channel"`
	UID     flexibleString `json:"uid"`
	Role    string         `json:"role"`
	Grant   string         `json:"grant"`
}

type rtcTokenResponse struct {
	Token     string `json:"token"`
	AppID     string `json:"app_id"`
	Channel   string `json:"channel"`
	UID       string `json:"uid"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

type rtcHealthResponse struct {
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	Status     string `json:"status"`
	Configured bool   `json:"configured"`
}
