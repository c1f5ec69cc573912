package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/sirius-meet/internal/application"
)

const maxRequestBodyBytes = 1 << 20

var (
	errBadRequestBody      = errors.New("Formato de solicitud no válido.")
	errMissingSessionToken = errors.New("Debes indicar un token de sesión.")
	errMissingGrant        = errors.New("Debes indicar la credencial de la reunión.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIALS",
			Message:   "La cédula no corresponde a un empleado activo.",
		})
	case errors.Is(err, application.ErrSessionExpired):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "Tu sesión expiró. Inicia sesión de nuevo.",
		})
	case errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_REVOKED",
			Message:   "Tu sesión fue cerrada. Inicia sesión de nuevo.",
		})
	case errors.Is(err, application.ErrAccountDisabled):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_ACCOUNT_DISABLED",
			Message:   "Tu cuenta está desactivada.",
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "No tienes permiso para realizar esta acción.",
		})
	case errors.Is(err, application.ErrInviteNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "INVITE_NOT_FOUND",
			Message:   "El código de invitación no existe.",
		})
	case errors.Is(err, application.ErrInviteExpired):
		r.writeJSON(ctx, w, http.StatusGone, errorResponse{
			ErrorCode: "INVITE_EXPIRED",
			Message:   "La invitación ha expirado.",
		})
	case errors.Is(err, application.ErrInviteExhausted):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "INVITE_EXHAUSTED",
			Message:   "La invitación alcanzó su límite de usos.",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "No se encontró el recurso solicitado."})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "El recurso ya existe."})
	case errors.Is(err, application.ErrRTCNotConfigured):
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: "RTC_NOT_CONFIGURED",
			Message:   "El servicio de video no está configurado correctamente.",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				ErrorCode: "VALIDATION_FAILED",
				Message:   "Los datos enviados contienen errores.",
				Errors:    localizeValidationErrors(vErr),
			})
			return
		}

		var issueErr *application.IssueInviteError
		if errors.As(err, &issueErr) {
			r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
				ErrorCode: "INVITE_ISSUE_FAILED",
				Message:   "La reunión se creó pero no se pudo generar la invitación. Inténtalo de nuevo.",
				MeetingID: issueErr.MeetingID,
			})
			return
		}

		var createErr *application.CreateMeetingError
		if errors.As(err, &createErr) {
			r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
				ErrorCode: "MEETING_CREATE_FAILED",
				Message:   "No se pudo crear la reunión. Inténtalo de nuevo.",
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "Ocurrió un error interno en el servidor."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "La solicitud no es válida."
	case http.StatusUnauthorized:
		return "Se requiere autenticación."
	case http.StatusForbidden:
		return "No tienes permiso para realizar esta acción."
	case http.StatusNotFound:
		return "No se encontró el recurso solicitado."
	case http.StatusConflict:
		return "La solicitud entra en conflicto con el estado actual del recurso."
	case http.StatusGone:
		return "El recurso ya no está disponible."
	case http.StatusUnprocessableEntity:
		return "Los datos enviados contienen errores."
	case http.StatusTooManyRequests:
		return "Demasiadas solicitudes. Espera un momento e inténtalo de nuevo."
	case http.StatusServiceUnavailable:
		return "El servicio no está disponible. Inténtalo de nuevo."
	default:
		return "Ocurrió un error interno en el servidor."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "host is required":
		return "El anfitrión es obligatorio."
	case "title is required":
		return "El título es obligatorio."
	case "title is too long":
		return "El título es demasiado largo."
	case "meeting type is invalid":
		return "El tipo de reunión no es válido."
	case "location type is invalid":
		return "El tipo de ubicación no es válido."
	case "season is invalid":
		return "La temporada no es válida."
	case "scheduled time is invalid":
		return "La fecha programada no es válida."
	case "custom message is too long":
		return "El mensaje personalizado es demasiado largo."
	case "display name is required":
		return "El nombre para mostrar es obligatorio."
	case "display name is too long":
		return "El nombre para mostrar es demasiado largo."
	case "email is invalid":
		return "El correo electrónico no es válido."
	case "connection quality is invalid":
		return "La calidad de conexión no es válida."
	case "national id is required":
		return "La cédula es obligatoria."
	case "national id must contain only digits":
		return "La cédula solo puede contener dígitos."
	case "given names are required":
		return "Los nombres son obligatorios."
	case "given names are too long":
		return "Los nombres son demasiado largos."
	case "family names are required":
		return "Los apellidos son obligatorios."
	case "family names are too long":
		return "Los apellidos son demasiado largos."
	case "role is invalid":
		return "El rol no es válido."
	case "channel is required":
		return "El nombre del canal es obligatorio."
	case "is required":
		return "Este campo es obligatorio."
	case "is invalid":
		return "El valor no es válido."
	case "must be a valid email address":
		return "Debe ser un correo electrónico válido."
	case "must contain only digits":
		return "Solo puede contener dígitos."
	default:
		if rest, ok := strings.CutPrefix(message, "must not exceed "); ok {
			return "No debe superar " + strings.TrimSuffix(rest, " characters") + " caracteres."
		}
		if rest, ok := strings.CutPrefix(message, "must be at least "); ok {
			return "Debe tener al menos " + strings.TrimSuffix(rest, " characters") + " caracteres."
		}
		if rest, ok := strings.CutPrefix(message, "must be one of: "); ok {
			return "Debe ser uno de: " + rest
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	MeetingID string            `json:"meeting_id,omitempty"`
}
