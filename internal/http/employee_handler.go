package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/sirius-meet/internal/application"
)

type employeeService interface {
	SearchEmployees(ctx context.Context, query string) ([]application.Employee, error)
}

type employeeProfileService interface {
	Employee(ctx context.Context, principal application.Principal) (application.Employee, error)
}

// EmployeeHandler serves the company directory.
type EmployeeHandler struct {
	service   employeeService
	profiles  employeeProfileService
	responder responder
	logger    *slog.Logger
}

func NewEmployeeHandler(service employeeService, profiles employeeProfileService, logger *slog.Logger) *EmployeeHandler {
	base := defaultLogger(logger)
	return &EmployeeHandler{service: service, profiles: profiles, responder: newResponder(base), logger: base}
}

func (h *EmployeeHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EmployeeHandler", operation, attrs...)
}

// Me returns the signed in employee.
func (h *EmployeeHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.profiles == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Me", "principal_id", principal.EmployeeID)

	employee, err := h.profiles.Employee(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to load employee", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, employeeEnvelope{Employee: toEmployeeResponse(employee)})
}

// Search lists active employees matching ?q=, or all of them without a query.
func (h *EmployeeHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query().Get("q")
	logger := h.log(r.Context(), "Search", "principal_id", principal.EmployeeID)

	employees, err := h.service.SearchEmployees(r.Context(), query)
	if err != nil {
		logger.ErrorContext(r.Context(), "employee search failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("count", len(employees)).InfoContext(r.Context(), "employees listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, employeeListResponse{Employees: toEmployeeResponses(employees)})
}

type employeeEnvelope struct {
	Employee employeeResponse `json:"employee"`
}

type employeeListResponse struct {
	Employees []employeeResponse `json:"employees"`
}
