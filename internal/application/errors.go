package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when a national ID cannot be used to sign in.
	// Unknown and inactive employees share this error so callers cannot enumerate the directory.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a session belongs to a deactivated employee.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a session token is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session token was revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrInviteNotFound is returned when no invite matches a code.
	ErrInviteNotFound = errors.New("application: invite not found")
	// ErrInviteExpired is returned when an invite is past its expiry, whatever its usage.
	ErrInviteExpired = errors.New("application: invite expired")
	// ErrInviteExhausted is returned when an invite has no uses left.
	ErrInviteExhausted = errors.New("application: invite exhausted")
	// ErrRTCNotConfigured is returned when RTC credentials are missing.
	ErrRTCNotConfigured = errors.New("application: rtc not configured")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func singleFieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// CreateMeetingError reports that a meeting could not be persisted.
type CreateMeetingError struct {
	Cause error
}

func (e *CreateMeetingError) Error() string {
	return fmt.Sprintf("create meeting failed: %v", e.Cause)
}

func (e *CreateMeetingError) Unwrap() error { return e.Cause }

// IssueInviteError reports that no invite could be issued for an existing meeting.
// The meeting itself is intact and the caller may retry with EnsureInvite.
type IssueInviteError struct {
	MeetingID string
	Cause     error
}

func (e *IssueInviteError) Error() string {
	return fmt.Sprintf("issue invite for meeting %s failed: %v", e.MeetingID, e.Cause)
}

func (e *IssueInviteError) Unwrap() error { return e.Cause }
