package service

import (
	"context"
	"errors"
	"fmt"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/general/contracts"
	"bus-boarding/internal/ports"

	"github.com/google/uuid"
)

// CreateOrReplace files a boarding request for the user. An existing request, confirmed or not,
// is overwritten and the row goes back to REQUESTED.
func (service *boardingService) CreateOrReplace(ctx context.Context, in ports.CreateRequestInput) (ports.CreateRequestResult, error) {
	if err := checkUserID(in.UserID); err != nil {
		return ports.CreateRequestResult{}, err
	}

	req, err := boarding.NewRequest(in.UserID, in.Origin, in.LineID, service.clock.Now())
	if err != nil {
		return ports.CreateRequestResult{}, fmt.Errorf("%w: %w", ports.ErrInvalidInput, err)
	}

	var replaced bool
	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		prev, err := service.requests.GetByUser(txCtx, req.UserID)
		switch {
		case errors.Is(err, ports.ErrNotFound):
		case err != nil:
			return err
		default:
			replaced = prev.Requested()
		}
		return service.requests.Upsert(txCtx, req)
	})
	if err != nil {
		service.logger.Error(ctx, "request_create_failed", "Failed to store boarding request", err, map[string]any{
			"user_id": in.UserID,
			"line_id": req.LineID,
		})
		return ports.CreateRequestResult{}, err
	}
	service.metrics.RequestsCreated.Inc()

	if replaced {
		service.logger.Warn(ctx, "request_replaced", "Unconfirmed boarding request was replaced", map[string]any{
			"request_id": req.ID,
			"user_id":    req.UserID,
		})
	}

	service.publish(ctx, contracts.ExchangeBoardingTopic,
		contracts.RouteBoardingRequestedPrefix+contracts.RoutingToken(req.LineID),
		contracts.BoardingRequestedMessage{
			RequestID: req.ID,
			UserID:    req.UserID,
			LineID:    req.LineID,
			Origin:    req.Origin,
			CreatedAt: req.CreatedAt,
			Envelope: contracts.Envelope{
				CorrelationID: uuid.NewString(),
				Producer:      contracts.ProducerBoardingService,
				SentAt:        service.clock.Now().UTC(),
			},
		})

	service.logger.Info(ctx, "request_created", fmt.Sprintf("Boarding request %d stored", req.ID), map[string]any{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"line_id":    req.LineID,
	})

	return ports.CreateRequestResult{
		ID:       req.ID,
		Message:  "Boarding request registered",
		Replaced: replaced,
	}, nil
}

// Current returns the user's request, confirmed or not, or ports.ErrNotFound.
func (service *boardingService) Current(ctx context.Context, userID string) (*boarding.Request, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}

	var out *boarding.Request
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		out, err = service.requests.GetByUser(txCtx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
