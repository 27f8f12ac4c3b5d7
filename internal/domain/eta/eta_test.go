package eta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		distance *float64
		speed    *float64
		want     Estimate
	}{
		{"moving", ptr(1800), ptr(5), Estimate{Seconds: 360}},
		{"close", ptr(90), ptr(5), Estimate{Seconds: 18}},
		{"at the stop", ptr(0), ptr(3), Estimate{Seconds: 0}},
		{"missing speed", ptr(100), nil, Indeterminate},
		{"missing distance", nil, ptr(5), Indeterminate},
		{"stopped", ptr(100), ptr(0), Indeterminate},
		{"speed at threshold", ptr(100), ptr(MinMovingSpeedMPS), Indeterminate},
		{"infinite distance", ptr(math.Inf(1)), ptr(5), Indeterminate},
		{"nan distance", ptr(math.NaN()), ptr(5), Indeterminate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Compute(tc.distance, tc.speed)
			assert.Equal(t, tc.want.Indeterminate, got.Indeterminate)
			if !tc.want.Indeterminate {
				assert.InDelta(t, tc.want.Seconds, got.Seconds, 1e-9)
			}
		})
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		e    Estimate
		want string
	}{
		{Estimate{Seconds: 360}, "6 min"},
		{Estimate{Seconds: 18}, "18s"},
		{Estimate{Seconds: 59.4}, "59s"},
		{Estimate{Seconds: 60}, "1 min"},
		{Estimate{Seconds: 89}, "1 min"},
		{Estimate{Seconds: 90}, "2 min"},
		{Estimate{Seconds: 0}, "0s"},
		{Indeterminate, IndeterminateText},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.e.Display())
	}
}

func TestNear(t *testing.T) {
	assert.True(t, Estimate{Seconds: 19.9}.Near())
	assert.False(t, Estimate{Seconds: AlertThresholdSeconds}.Near())
	assert.False(t, Indeterminate.Near())
}
