package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for all great-circle distances.
const EarthRadiusMeters = 6_371_008.8

// DistanceMeters returns the great-circle distance between a and b on a spherical Earth.
// Altitude is ignored.
func DistanceMeters(a, b Point) float64 {
	la := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	lb := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return la.Distance(lb).Radians() * EarthRadiusMeters
}

// NorthOf returns the point meters due north of p along its meridian.
func NorthOf(p Point, meters float64) Point {
	dLat := meters / EarthRadiusMeters * 180 / math.Pi
	return Point{Latitude: p.Latitude + dLat, Longitude: p.Longitude}
}
