package vehicle

import (
	"errors"
	"math"
	"strings"
	"time"

	"bus-boarding/internal/domain/geo"
)

// Position is one immutable telemetry sample, the domain entity behind the `vehicle_positions` table.
type Position struct {
	ID         int64
	VehicleID  string
	Point      geo.Point
	SpeedMPS   *float64 // nil when the source did not report speed
	LineID     *string  // nil when the source did not report a line
	RecordedAt time.Time
	ReceivedAt time.Time
}

var (
	ErrMissingVehicleID = errors.New("vehicle_id is required")
	ErrNegativeSpeed    = errors.New("speed cannot be negative")
	ErrRecordedAtZero   = errors.New("recorded_at must be a valid timestamp")
)

// NewPosition builds a validated sample. A zero recordedAt is replaced by receivedAt.
func NewPosition(vehicleID string, latitude, longitude float64, speed *float64, lineID *string, recordedAt, receivedAt time.Time) (*Position, error) {
	p := &Position{
		VehicleID:  strings.TrimSpace(vehicleID),
		Point:      geo.Point{Latitude: latitude, Longitude: longitude},
		SpeedMPS:   speed,
		RecordedAt: recordedAt.UTC(),
		ReceivedAt: receivedAt.UTC(),
	}
	if lineID != nil {
		if l := strings.TrimSpace(*lineID); l != "" {
			p.LineID = &l
		}
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = p.ReceivedAt
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks invariants of the Position.
func (p *Position) Validate() error {
	if p.VehicleID == "" {
		return ErrMissingVehicleID
	}
	if err := p.Point.Validate(); err != nil {
		return err
	}
	if p.SpeedMPS != nil && (math.IsNaN(*p.SpeedMPS) || *p.SpeedMPS < 0) {
		return ErrNegativeSpeed
	}
	if p.RecordedAt.IsZero() {
		return ErrRecordedAtZero
	}
	return nil
}

// Line returns the reported line or "" when absent.
func (p *Position) Line() string {
	if p.LineID == nil {
		return ""
	}
	return *p.LineID
}

// NewerThan reports whether p supersedes other as the current position of the same vehicle.
// Samples with equal recorded_at are ordered by insertion id.
func (p *Position) NewerThan(other *Position) bool {
	if !p.RecordedAt.Equal(other.RecordedAt) {
		return p.RecordedAt.After(other.RecordedAt)
	}
	return p.ID > other.ID
}

// NormalizeLine trims and lowercases a line identifier for matching.
func NormalizeLine(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
