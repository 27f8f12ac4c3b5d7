package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"bus-boarding/internal/domain/geo"
	"bus-boarding/internal/domain/vehicle"
	"bus-boarding/internal/ports"
)

// Nearby ranks the latest sample of every vehicle around in.Center.
func (service *vehicleService) Nearby(ctx context.Context, in ports.NearbyInput) (ports.NearbyResult, error) {
	if err := in.Center.Validate(); err != nil {
		return ports.NearbyResult{}, fmt.Errorf("%w: %w", ports.ErrInvalidInput, err)
	}
	if math.IsNaN(in.RadiusMeters) || in.RadiusMeters < 0 {
		return ports.NearbyResult{}, fmt.Errorf("%w: %w", ports.ErrInvalidInput, geo.ErrNegativeRadius)
	}

	var latest []vehicle.Position
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		latest, err = service.positions.LatestAll(txCtx)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "nearby_query_failed", "Failed to load latest vehicle positions", err, nil)
		return ports.NearbyResult{}, err
	}

	ranked := vehicle.Rank(latest, in.Center, in.RadiusMeters, in.LineFilter)

	out := ports.NearbyResult{
		Buses:      make([]ports.BusView, 0, len(ranked)),
		LastUpdate: service.clock.Now().UTC().Truncate(time.Millisecond),
	}
	for _, n := range ranked {
		out.Buses = append(out.Buses, ports.NewBusView(n))
	}

	service.metrics.NearbyQueries.Inc()
	service.metrics.NearbyResults.Observe(float64(len(out.Buses)))

	return out, nil
}

// History returns the samples of one vehicle recorded at or after since, oldest first.
func (service *vehicleService) History(ctx context.Context, vehicleID string, since time.Time) ([]vehicle.Position, error) {
	if vehicleID == "" {
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidInput, vehicle.ErrMissingVehicleID)
	}

	var out []vehicle.Position
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		out, err = service.positions.History(txCtx, vehicleID, since)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "history_query_failed", "Failed to load vehicle history", err, map[string]any{
			"vehicle_id": vehicleID,
		})
		return nil, err
	}
	return out, nil
}
