package vehicle

import (
	"math"
	"testing"
	"time"

	"bus-boarding/internal/domain/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPosition(t *testing.T) {
	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	line := "  875A "
	speed := 4.2

	p, err := NewPosition(" bus-1 ", -23.55, -46.63, &speed, &line, time.Time{}, received)
	require.NoError(t, err)

	assert.Equal(t, "bus-1", p.VehicleID)
	assert.Equal(t, "875A", p.Line())
	assert.Equal(t, received, p.RecordedAt, "zero recorded_at falls back to received_at")
	assert.Equal(t, 4.2, *p.SpeedMPS)
}

func TestNewPositionBlankLineIsAbsent(t *testing.T) {
	blank := "   "
	p, err := NewPosition("bus-1", 0, 0, nil, &blank, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Nil(t, p.LineID)
	assert.Equal(t, "", p.Line())
}

func TestNewPositionInvalid(t *testing.T) {
	now := time.Now()
	neg := -1.0
	nan := math.NaN()

	tests := []struct {
		name  string
		id    string
		lat   float64
		lon   float64
		speed *float64
		want  error
	}{
		{"missing id", " ", 0, 0, nil, ErrMissingVehicleID},
		{"latitude", "v", 91, 0, nil, geo.ErrInvalidLatitude},
		{"longitude", "v", 0, -181, nil, geo.ErrInvalidLongitude},
		{"negative speed", "v", 0, 0, &neg, ErrNegativeSpeed},
		{"nan speed", "v", 0, 0, &nan, ErrNegativeSpeed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPosition(tc.id, tc.lat, tc.lon, tc.speed, nil, now, now)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewerThan(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &Position{ID: 1, RecordedAt: t0}
	b := &Position{ID: 2, RecordedAt: t0}
	c := &Position{ID: 0, RecordedAt: t0.Add(time.Second)}

	assert.True(t, b.NewerThan(a))
	assert.False(t, a.NewerThan(b))
	assert.True(t, c.NewerThan(b))
}
