package natsingest

import (
	"testing"
	"time"

	"bus-boarding/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	in, err := Decode([]byte(`{"tripId":"T-17","routeId":"875A","timestamp":"2026-03-01T12:00:05Z","lat":-23.55,"lon":-46.63,"bearing":90,"progress":0.4,"speedMps":11.5}`))
	require.NoError(t, err)

	assert.Equal(t, "T-17", in.VehicleID)
	assert.Equal(t, -23.55, in.Latitude)
	assert.Equal(t, -46.63, in.Longitude)
	require.NotNil(t, in.SpeedMPS)
	assert.Equal(t, 11.5, *in.SpeedMPS)
	require.NotNil(t, in.LineID)
	assert.Equal(t, "875A", *in.LineID)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC), in.RecordedAt.UTC())
	assert.Equal(t, "nats", in.Source)
}

func TestDecodeWithoutRoute(t *testing.T) {
	in, err := Decode([]byte(`{"tripId":"T-1","lat":1,"lon":2}`))
	require.NoError(t, err)
	assert.Nil(t, in.LineID)
	assert.True(t, in.RecordedAt.IsZero())
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte(`{"routeId":"875A","lat":1,"lon":2}`))
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
	assert.ErrorIs(t, err, ErrNoTrip)

	_, err = Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
}
