package service

import (
	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"
	"bus-boarding/internal/ports"
)

// vehicleService owns the position store and the nearest-vehicle query engine.
type vehicleService struct {
	logger    *logger.Logger
	uow       ports.UnitOfWork
	positions ports.PositionRepository
	demand    ports.DemandRepository
	pub       ports.EventPublisher
	metrics   *metrics.Collector
	clock     clock.Clock
	producer  string
}

// NewVehicleService creates a new VehicleService. producer names the process in
// published envelopes.
func NewVehicleService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	positions ports.PositionRepository,
	demand ports.DemandRepository,
	pub ports.EventPublisher,
	metrics *metrics.Collector,
	clk clock.Clock,
	producer string,
) ports.VehicleService {
	return &vehicleService{
		logger:    logger,
		uow:       uow,
		positions: positions,
		demand:    demand,
		pub:       pub,
		metrics:   metrics,
		clock:     clk,
		producer:  producer,
	}
}
