package domain

import "errors"

var (
	// ErrValidation marks malformed, missing or oversized input.
	ErrValidation = errors.New("validation error")
	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials is returned for any failed login, whatever the cause.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated means the request carries no usable session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrNotFound covers both missing records and records owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable wraps failures of the underlying persistence layer.
	ErrStoreUnavailable = errors.New("store unavailable")
)
