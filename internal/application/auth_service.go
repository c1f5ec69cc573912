package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

// AuthServiceConfig collects the collaborators of an AuthService.
type AuthServiceConfig struct {
	Employees      EmployeeRepository
	Sessions       SessionRepository
	IDGenerator    func() string
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	StoreTimeout   time.Duration
}

// AuthService signs employees in by national ID and manages their sessions.
type AuthService struct {
	employees      EmployeeRepository
	sessions       SessionRepository
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	storeTimeout   time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(config AuthServiceConfig) *AuthService {
	return NewAuthServiceWithLogger(config, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(config AuthServiceConfig, logger *slog.Logger) *AuthService {
	s := &AuthService{
		employees:      config.Employees,
		sessions:       config.Sessions,
		idGenerator:    config.IDGenerator,
		tokenGenerator: config.TokenGenerator,
		now:            config.Now,
		sessionTTL:     config.SessionTTL,
		storeTimeout:   config.StoreTimeout,
		logger:         defaultLogger(logger),
	}
	if s.idGenerator == nil {
		s.idGenerator = func() string { return "" }
	}
	if s.tokenGenerator == nil {
		s.tokenGenerator = func() string { return "" }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}
	return s
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) store(ctx context.Context) (context.Context, context.CancelFunc) {
	return storeContext(ctx, s.storeTimeout)
}

// Authenticate signs an employee in by national ID and issues a session.
// Unknown and inactive employees both report ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.employees == nil || s.sessions == nil {
		err = fmt.Errorf("auth repositories not configured")
		return
	}

	nationalID := strings.TrimSpace(params.NationalID)
	logger := s.loggerWith(ctx, "Authenticate", "national_id", nationalID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", result.Session.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if nationalID == "" {
		err = ErrInvalidCredentials
		return
	}

	sctx, cancel := s.store(ctx)
	employee, err := s.employees.GetEmployee(sctx, nationalID)
	cancel()
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if !employee.IsActive {
		err = ErrInvalidCredentials
		return
	}

	now := s.now().UTC()
	sctx, cancel = s.store(ctx)
	err = s.employees.TouchLastLogin(sctx, employee.NationalID, now)
	cancel()
	if err != nil {
		err = mapRepoError(err)
		return
	}
	employee.LastLogin = &now
	employee.UpdatedAt = now

	sctx, cancel = s.store(ctx)
	if pruneErr := s.sessions.DeleteExpiredSessions(sctx, now); pruneErr != nil {
		logger.WarnContext(ctx, "failed to prune expired sessions", "error", pruneErr)
	}
	cancel()

	session := Session{
		ID:          s.idGenerator(),
		EmployeeID:  employee.NationalID,
		Token:       s.tokenGenerator(),
		Fingerprint: strings.TrimSpace(params.Fingerprint),
		ExpiresAt:   now.Add(s.sessionTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if session.Token == "" {
		err = fmt.Errorf("token generator returned an empty token")
		return
	}

	sctx, cancel = s.store(ctx)
	persisted, err := s.sessions.CreateSession(sctx, session)
	cancel()
	if err != nil {
		err = mapRepoError(err)
		return
	}

	result = AuthenticateResult{Employee: employee, Session: persisted}
	return
}

// ValidateSession verifies that the token belongs to a live session of an
// active employee and returns its principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.employees == nil || s.sessions == nil {
		err = fmt.Errorf("auth repositories not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.InfoContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.EmployeeID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	sctx, cancel := s.store(ctx)
	session, err := s.sessions.GetSession(sctx, trimmed)
	cancel()
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	now := s.now()
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.After(now) {
		err = ErrSessionExpired
		return
	}

	sctx, cancel = s.store(ctx)
	employee, err := s.employees.GetEmployee(sctx, session.EmployeeID)
	cancel()
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrAccountDisabled
		}
		return
	}
	if !employee.IsActive {
		err = ErrAccountDisabled
		return
	}

	principal = Principal{EmployeeID: employee.NationalID, FullName: employee.FullName, Role: employee.Role}
	return
}

// RevokeSession invalidates an existing session token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "RevokeSession", "token_provided", true)

	sctx, cancel := s.store(ctx)
	_, err := s.sessions.RevokeSession(sctx, trimmed, s.now().UTC())
	cancel()
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "session revoked")
	return nil
}

// Employee returns the directory entry of an authenticated principal.
func (s *AuthService) Employee(ctx context.Context, principal Principal) (Employee, error) {
	if s == nil || s.employees == nil {
		return Employee{}, fmt.Errorf("employee repository not configured")
	}
	sctx, cancel := s.store(ctx)
	defer cancel()
	employee, err := s.employees.GetEmployee(sctx, principal.EmployeeID)
	if err != nil {
		return Employee{}, mapRepoError(err)
	}
	return employee, nil
}
