package eta

import (
	"fmt"
	"math"
)

const (
	// MinMovingSpeedMPS is the speed at or below which a vehicle is treated as stopped.
	MinMovingSpeedMPS = 0.5

	// AlertThresholdSeconds is the arrival time below which the near-arrival alert fires.
	AlertThresholdSeconds = 20.0
)

// IndeterminateText is shown when no arrival time can be computed.
const IndeterminateText = "calculating..."

// Estimate is the outcome of an arrival-time computation.
// When Indeterminate is true Seconds is meaningless and must not be used.
type Estimate struct {
	Seconds       float64 `json:"seconds"`
	Indeterminate bool    `json:"indeterminate"`
}

// Indeterminate is the zero-information estimate.
var Indeterminate = Estimate{Indeterminate: true}

// Compute derives an arrival estimate from a distance in meters and a speed in m/s.
// A missing or near-zero speed, a missing distance, or a non-finite result is indeterminate.
func Compute(distanceMeters, speedMPS *float64) Estimate {
	if distanceMeters == nil || speedMPS == nil {
		return Indeterminate
	}
	if *speedMPS <= MinMovingSpeedMPS {
		return Indeterminate
	}
	s := *distanceMeters / *speedMPS
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
		return Indeterminate
	}
	return Estimate{Seconds: s}
}

// Display renders the estimate: "18s" below one minute, "6 min" otherwise.
func (e Estimate) Display() string {
	if e.Indeterminate {
		return IndeterminateText
	}
	if e.Seconds < 60 {
		return fmt.Sprintf("%ds", int(math.Round(e.Seconds)))
	}
	return fmt.Sprintf("%d min", int(math.Round(e.Seconds/60)))
}

// Near reports whether the estimate is under the alert threshold.
func (e Estimate) Near() bool {
	return !e.Indeterminate && e.Seconds < AlertThresholdSeconds
}
