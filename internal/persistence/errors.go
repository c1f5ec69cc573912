package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key (national ID, room id, invite code) is already taken.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record fails a storage constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrUsageLimitReached is returned when an invite has no uses left.
	ErrUsageLimitReached = errors.New("persistence: invite usage limit reached")
	// ErrExpired is returned when an invite is past its expiry.
	ErrExpired = errors.New("persistence: invite expired")
)
