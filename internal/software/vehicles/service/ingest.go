package service

import (
	"context"
	"fmt"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/domain/vehicle"
	"bus-boarding/internal/general/contracts"
	"bus-boarding/internal/general/rabbitmq"
	"bus-boarding/internal/ports"

	"github.com/google/uuid"
)

const defaultSource = "http"

// Ingest validates and appends one telemetry sample. A reported line is registered in the
// demand counter at zero within the same transaction.
func (service *vehicleService) Ingest(ctx context.Context, in ports.IngestInput) (*vehicle.Position, error) {
	source := in.Source
	if source == "" {
		source = defaultSource
	}

	// build and validate the sample
	p, err := vehicle.NewPosition(
		in.VehicleID,
		in.Latitude,
		in.Longitude,
		in.SpeedMPS,
		in.LineID,
		in.RecordedAt,
		service.clock.Now(),
	)
	if err != nil {
		service.metrics.IngestRejected.WithLabelValues(source).Inc()
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidInput, err)
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if err := service.positions.Append(txCtx, p); err != nil {
			return err
		}
		if p.LineID != nil {
			return service.demand.Register(txCtx, boarding.NormalizeLineKey(*p.LineID))
		}
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "position_ingest_failed", "Failed to store vehicle position", err, map[string]any{
			"vehicle_id": p.VehicleID,
			"source":     source,
		})
		return nil, err
	}
	service.metrics.PositionsIngested.WithLabelValues(source).Inc()

	// fan the sample out to live feed subscribers
	msg := contracts.VehiclePositionMessage{
		VehicleID:  p.VehicleID,
		LineID:     p.LineID,
		Location:   contracts.GeoPoint{Lat: p.Point.Latitude, Lng: p.Point.Longitude},
		SpeedMPS:   p.SpeedMPS,
		RecordedAt: p.RecordedAt,
		Source:     source,
		Envelope: contracts.Envelope{
			CorrelationID: uuid.NewString(),
			Producer:      service.producer,
			SentAt:        service.clock.Now().UTC(),
		},
	}
	service.publish(ctx, contracts.ExchangeVehicleFanout, "", msg)

	service.logger.Debug(ctx, "position_ingested", "Vehicle position stored", map[string]any{
		"vehicle_id": p.VehicleID,
		"position":   p.ID,
		"source":     source,
	})

	return p, nil
}

// publish hands v to the publisher and only logs failures; the stored sample stays authoritative.
func (service *vehicleService) publish(ctx context.Context, exchange, routingKey string, v any) {
	if err := rabbitmq.PublishJSON(service.pub, exchange, routingKey, v); err != nil {
		service.metrics.EventPublishErrs.WithLabelValues(exchange).Inc()
		service.logger.Error(ctx, "event_publish_failed", "Failed to publish event", err, map[string]any{
			"exchange":    exchange,
			"routing_key": routingKey,
		})
	}
}
