package service

import (
	"context"
	"fmt"

	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"
	"bus-boarding/internal/general/rabbitmq"
	"bus-boarding/internal/ports"

	"github.com/google/uuid"
)

// boardingService owns the request lifecycle and the per-line demand counter.
type boardingService struct {
	logger   *logger.Logger
	uow      ports.UnitOfWork
	requests ports.RequestRepository
	demand   ports.DemandRepository
	pub      ports.EventPublisher
	metrics  *metrics.Collector
	clock    clock.Clock
}

// NewBoardingService creates a new BoardingService with the provided dependencies.
func NewBoardingService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	requests ports.RequestRepository,
	demand ports.DemandRepository,
	pub ports.EventPublisher,
	metrics *metrics.Collector,
	clk clock.Clock,
) ports.BoardingService {
	return &boardingService{
		logger:   logger,
		uow:      uow,
		requests: requests,
		demand:   demand,
		pub:      pub,
		metrics:  metrics,
		clock:    clk,
	}
}

// checkUserID rejects subjects that cannot be a users.id.
func checkUserID(userID string) error {
	if err := uuid.Validate(userID); err != nil {
		return fmt.Errorf("%w: user id: %w", ports.ErrInvalidInput, err)
	}
	return nil
}

// publish hands v to the publisher and only logs failures; the committed row stays authoritative.
func (service *boardingService) publish(ctx context.Context, exchange, routingKey string, v any) {
	if err := rabbitmq.PublishJSON(service.pub, exchange, routingKey, v); err != nil {
		service.metrics.EventPublishErrs.WithLabelValues(exchange).Inc()
		service.logger.Error(ctx, "event_publish_failed", "Failed to publish event", err, map[string]any{
			"exchange":    exchange,
			"routing_key": routingKey,
		})
		return
	}
	service.logger.Debug(ctx, "event_queued", "Queued event for RabbitMQ", map[string]any{
		"exchange":    exchange,
		"routing_key": routingKey,
	})
}
