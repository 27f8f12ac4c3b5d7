package boarding

import (
	"errors"
	"strings"
	"time"
)

// Request is the domain entity corresponding to the `requests` table.
// A user owns at most one Request at a time.
type Request struct {
	ID          int64
	UserID      string
	Origin      string
	LineID      string
	State       State
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
}

var (
	ErrUserRequired      = errors.New("user id is required")
	ErrOriginRequired    = errors.New("origin is required")
	ErrLineRequired      = errors.New("line id is required")
	ErrNotRequested      = errors.New("requested flag must be true")
	ErrInvalidTransition = errors.New("invalid boarding state transition")
)

// NewRequest creates a new request in REQUESTED state.
func NewRequest(userID, origin, lineID string, now time.Time) (*Request, error) {
	r := &Request{
		UserID:    strings.TrimSpace(userID),
		Origin:    strings.TrimSpace(origin),
		LineID:    strings.TrimSpace(lineID),
		State:     StateRequested,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks invariants of the Request.
func (r *Request) Validate() error {
	if r.UserID == "" {
		return ErrUserRequired
	}
	if r.Origin == "" {
		return ErrOriginRequired
	}
	if r.LineID == "" {
		return ErrLineRequired
	}
	if !r.State.Valid() {
		return ErrInvalidState
	}
	if r.State == StateConfirmed && r.ConfirmedAt == nil {
		return ErrInvalidTransition
	}
	return nil
}

// Confirm moves the request to CONFIRMED. Confirming twice is an error; callers
// that want idempotent confirmation check IsConfirmed first.
func (r *Request) Confirm(at time.Time) error {
	if !r.State.CanTransitionTo(StateConfirmed) {
		return ErrInvalidTransition
	}
	t := at.UTC()
	r.State = StateConfirmed
	r.ConfirmedAt = &t
	r.UpdatedAt = t
	return nil
}

// Requested reports the legacy boolean view of the state.
func (r *Request) Requested() bool { return r.State == StateRequested }

// IsConfirmed reports whether boarding was already confirmed.
func (r *Request) IsConfirmed() bool { return r.State == StateConfirmed }
