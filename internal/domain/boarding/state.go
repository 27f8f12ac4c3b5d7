package boarding

import (
	"errors"
	"strings"
)

// State is a boarding request state as stored in `requests.state`.
type State string

const (
	StateRequested State = "REQUESTED"
	StateConfirmed State = "CONFIRMED"
)

var ErrInvalidState = errors.New("invalid boarding state")

// ParseState normalizes (uppercases+trims) and validates a state string.
func ParseState(in string) (State, error) {
	state := State(strings.ToUpper(strings.TrimSpace(in)))
	if state.Valid() {
		return state, nil
	}
	return "", ErrInvalidState
}

// Valid reports whether state is one of the allowed state constants.
func (state State) Valid() bool {
	switch state {
	case StateRequested, StateConfirmed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the State.
func (state State) String() string {
	return string(state)
}

// CanTransitionTo specifies if the state can transition to the next state.
// Any state may go back to REQUESTED through create-or-replace.
func (state State) CanTransitionTo(next State) bool {
	switch next {
	case StateRequested:
		return true
	case StateConfirmed:
		return state == StateRequested
	default:
		return false
	}
}
