package vehicle

import (
	"sort"

	"bus-boarding/internal/domain/geo"
)

// MaxNearbyResults caps the size of a nearby query result.
const MaxNearbyResults = 10

// Nearby is a position ranked by its distance to the query center.
type Nearby struct {
	Position
	DistanceMeters float64
}

// Rank selects the vehicles whose current position lies within radiusMeters of center,
// optionally restricted to one line, closest first and capped at MaxNearbyResults.
//
// samples may contain several rows per vehicle; only the newest one per vehicle counts.
// Ties on distance are broken by vehicle id so results are stable.
func Rank(samples []Position, center geo.Point, radiusMeters float64, lineFilter string) []Nearby {
	latest := make(map[string]*Position, len(samples))
	for i := range samples {
		s := &samples[i]
		if cur, ok := latest[s.VehicleID]; !ok || s.NewerThan(cur) {
			latest[s.VehicleID] = s
		}
	}

	filter := NormalizeLine(lineFilter)
	out := make([]Nearby, 0, len(latest))
	for _, s := range latest {
		if filter != "" && NormalizeLine(s.Line()) != filter {
			continue
		}
		d := geo.DistanceMeters(center, s.Point)
		if d > radiusMeters {
			continue
		}
		out = append(out, Nearby{Position: *s, DistanceMeters: d})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].VehicleID < out[j].VehicleID
	})

	if len(out) > MaxNearbyResults {
		out = out[:MaxNearbyResults]
	}
	return out
}
