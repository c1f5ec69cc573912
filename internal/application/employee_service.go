package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/example/sirius-meet/internal/persistence"
)

const (
	maxNameLength       = 120
	maxNationalIDLength = 20
)

// EmployeeService manages the company directory.
type EmployeeService struct {
	employees    EmployeeRepository
	now          func() time.Time
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(employees EmployeeRepository, now func() time.Time, storeTimeout time.Duration) *EmployeeService {
	return NewEmployeeServiceWithLogger(employees, now, storeTimeout, nil)
}

// NewEmployeeServiceWithLogger constructs an EmployeeService with a specified logger.
func NewEmployeeServiceWithLogger(employees EmployeeRepository, now func() time.Time, storeTimeout time.Duration, logger *slog.Logger) *EmployeeService {
	if now == nil {
		now = time.Now
	}
	return &EmployeeService{
		employees:    employees,
		now:          now,
		storeTimeout: storeTimeout,
		logger:       defaultLogger(logger),
	}
}

func (s *EmployeeService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EmployeeService", operation, attrs...)
}

// RegisterEmployee adds an employee to the directory.
func (s *EmployeeService) RegisterEmployee(ctx context.Context, params RegisterEmployeeParams) (employee Employee, err error) {
	if s == nil {
		err = fmt.Errorf("EmployeeService is nil")
		return
	}
	if s.employees == nil {
		err = fmt.Errorf("employee repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "RegisterEmployee", "national_id", strings.TrimSpace(params.NationalID))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register employee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("role", employee.Role).InfoContext(ctx, "employee registered")
	}()

	employee, vErr := normalizeEmployee(params)
	if vErr != nil {
		err = vErr
		return
	}

	now := s.now().UTC()
	employee.CreatedAt = now
	employee.UpdatedAt = now

	sctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()
	if err = s.employees.CreateEmployee(sctx, employee); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = ErrAlreadyExists
			return
		}
		err = mapRepoError(err)
		return
	}
	return
}

// GetEmployee returns a directory entry by national ID.
func (s *EmployeeService) GetEmployee(ctx context.Context, nationalID string) (Employee, error) {
	if s == nil {
		return Employee{}, fmt.Errorf("EmployeeService is nil")
	}
	if s.employees == nil {
		return Employee{}, fmt.Errorf("employee repository not configured")
	}
	id := strings.TrimSpace(nationalID)
	if id == "" {
		return Employee{}, singleFieldError("national_id", "national id is required")
	}

	sctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()
	employee, err := s.employees.GetEmployee(sctx, id)
	if err != nil {
		return Employee{}, mapRepoError(err)
	}
	return employee, nil
}

// ListActiveEmployees returns active employees ordered by family names.
func (s *EmployeeService) ListActiveEmployees(ctx context.Context) ([]Employee, error) {
	if s == nil {
		return nil, fmt.Errorf("EmployeeService is nil")
	}
	if s.employees == nil {
		return nil, fmt.Errorf("employee repository not configured")
	}

	sctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()
	employees, err := s.employees.ListActiveEmployees(sctx)
	if err != nil {
		s.loggerWith(ctx, "ListActiveEmployees").ErrorContext(ctx, "failed to list employees", "error", err, "error_kind", ErrorKind(err))
		return nil, mapRepoError(err)
	}
	return employees, nil
}

// SearchEmployees looks up active employees by a case-insensitive
// substring. An empty query lists every active employee.
func (s *EmployeeService) SearchEmployees(ctx context.Context, query string) ([]Employee, error) {
	if s == nil {
		return nil, fmt.Errorf("EmployeeService is nil")
	}
	if s.employees == nil {
		return nil, fmt.Errorf("employee repository not configured")
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return s.ListActiveEmployees(ctx)
	}

	sctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()
	employees, err := s.employees.SearchEmployees(sctx, trimmed, EmployeeSearchLimit)
	if err != nil {
		s.loggerWith(ctx, "SearchEmployees", "query", trimmed).ErrorContext(ctx, "failed to search employees", "error", err, "error_kind", ErrorKind(err))
		return nil, mapRepoError(err)
	}
	return employees, nil
}

func normalizeEmployee(params RegisterEmployeeParams) (Employee, error) {
	vErr := &ValidationError{}

	nationalID := strings.TrimSpace(params.NationalID)
	switch {
	case nationalID == "":
		vErr.add("national_id", "national id is required")
	case len(nationalID) > maxNationalIDLength || !isDigits(nationalID):
		vErr.add("national_id", "national id must contain only digits")
	}

	given := strings.Join(strings.Fields(params.GivenNames), " ")
	family := strings.Join(strings.Fields(params.FamilyNames), " ")
	if given == "" {
		vErr.add("given_names", "given names are required")
	} else if len(given) > maxNameLength {
		vErr.add("given_names", "given names are too long")
	}
	if family == "" {
		vErr.add("family_names", "family names are required")
	} else if len(family) > maxNameLength {
		vErr.add("family_names", "family names are too long")
	}

	role := strings.ToLower(strings.TrimSpace(params.Role))
	if !isOneOf(employeeRoles, role) {
		vErr.add("role", "role is invalid")
	}

	if vErr.HasErrors() {
		return Employee{}, vErr
	}

	return Employee{
		NationalID:   nationalID,
		GivenNames:   given,
		FamilyNames:  family,
		FullName:     given + " " + family,
		Role:         role,
		Organization: Organization,
		IsActive:     !params.Inactive,
	}, nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return value != ""
}
