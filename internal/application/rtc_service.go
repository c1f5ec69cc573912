package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RTC roles understood by the media provider.
const (
	RTCRolePublisher  = "publisher"
	RTCRoleSubscriber = "subscriber"
)

// RTCStatus answers the channel readiness probe.
type RTCStatus struct {
	Channel    string
	Configured bool
	CheckedAt  time.Time
}

// RTCService hands out media credentials to holders of a meeting grant.
type RTCService struct {
	issuer RTCTokenIssuer
	grants GrantSigner
	now    func() time.Time
	logger *slog.Logger
}

// NewRTCService constructs an RTCService.
func NewRTCService(issuer RTCTokenIssuer, grants GrantSigner, now func() time.Time) *RTCService {
	return NewRTCServiceWithLogger(issuer, grants, now, nil)
}

// NewRTCServiceWithLogger constructs an RTCService with a specified logger.
func NewRTCServiceWithLogger(issuer RTCTokenIssuer, grants GrantSigner, now func() time.Time, logger *slog.Logger) *RTCService {
	if now == nil {
		now = time.Now
	}
	return &RTCService{issuer: issuer, grants: grants, now: now, logger: defaultLogger(logger)}
}

// IssueToken mints RTC credentials for the channel named by params. The
// caller's grant must be bound to that channel's room. Hosts always publish;
// other joiners get the requested role, publisher by default.
func (s *RTCService) IssueToken(ctx context.Context, params RTCTokenParams) (token RTCToken, err error) {
	if s == nil {
		err = fmt.Errorf("RTCService is nil")
		return
	}

	channel := strings.TrimSpace(params.Channel)
	logger := serviceLogger(ctx, s.logger, "RTCService", "IssueToken", "channel", channel)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to issue rtc token", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("uid", token.UID, "rtc_role", token.Role).InfoContext(ctx, "rtc token issued")
	}()

	if channel == "" {
		err = singleFieldError("channel", "channel is required")
		return
	}
	role := strings.ToLower(strings.TrimSpace(params.Role))
	switch role {
	case "":
		role = RTCRolePublisher
	case RTCRolePublisher, RTCRoleSubscriber:
	default:
		err = singleFieldError("role", "role is invalid")
		return
	}

	if s.grants == nil {
		err = ErrUnauthorized
		return
	}
	grant, err := s.grants.Verify(strings.TrimSpace(params.Grant))
	if err != nil {
		return
	}
	if grant.RoomID != channel {
		err = ErrUnauthorized
		return
	}
	if grant.Role == RoleHost {
		role = RTCRolePublisher
	}

	if s.issuer == nil || !s.issuer.Configured() {
		err = ErrRTCNotConfigured
		return
	}

	uid := strings.TrimSpace(params.UID)
	if uid == "" {
		uid = grant.ParticipantID
	}
	if uid == "" {
		uid = "0"
	}

	token, err = s.issuer.Issue(channel, uid, role)
	return
}

// Status reports whether credentials can be issued for channel.
func (s *RTCService) Status(channel string) (RTCStatus, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return RTCStatus{}, singleFieldError("channel", "channel is required")
	}
	configured := s != nil && s.issuer != nil && s.issuer.Configured()
	now := time.Now
	if s != nil {
		now = s.now
	}
	return RTCStatus{Channel: channel, Configured: configured, CheckedAt: now().UTC()}, nil
}
