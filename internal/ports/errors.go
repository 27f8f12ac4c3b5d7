package ports

import "errors"

// Sentinel errors shared by services, handlers and the API client.
// Wrap them with %w and test with errors.Is.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrNoActiveRequest = errors.New("no active boarding request")
	ErrConflict        = errors.New("concurrent update conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTransient       = errors.New("transient failure")
	ErrEmailTaken      = errors.New("email already registered")
)
