package geo

import (
	"errors"
	"math"
)

// Point is a WGS84 location in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrNegativeRadius   = errors.New("radius cannot be negative")
)

// NewPoint constructs a validated Point.
func NewPoint(latitude, longitude float64) (Point, error) {
	p := Point{Latitude: latitude, Longitude: longitude}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks that the coordinates are finite and in range.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}
