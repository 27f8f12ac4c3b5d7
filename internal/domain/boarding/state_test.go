package boarding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	s, err := ParseState(" confirmed ")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, s)

	_, err = ParseState("cancelled")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, StateRequested.CanTransitionTo(StateConfirmed))
	assert.False(t, StateConfirmed.CanTransitionTo(StateConfirmed))
	assert.True(t, StateConfirmed.CanTransitionTo(StateRequested))
	assert.True(t, StateRequested.CanTransitionTo(StateRequested))
	assert.False(t, StateRequested.CanTransitionTo(State("GONE")))
}

func TestNormalizeLineKey(t *testing.T) {
	assert.Equal(t, "875A", NormalizeLineKey("  875A\t"))
	assert.Equal(t, "875A-10", NormalizeLineKey("875a-10"))
}
