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

// conflictRetries is how many times a serialization failure or deadlock is retried
// before ports.ErrConflict reaches the caller.
const conflictRetries = 1

// confirmOutcome is what one confirm transaction produced.
type confirmOutcome struct {
	request   *boarding.Request
	total     uint64
	duplicate bool
}

// Confirm marks the user's request CONFIRMED and increments the line's demand counter in one
// transaction. Confirming an already confirmed request succeeds without counting again.
func (service *boardingService) Confirm(ctx context.Context, in ports.ConfirmInput) (ports.ConfirmResult, error) {
	if err := checkUserID(in.UserID); err != nil {
		return ports.ConfirmResult{}, err
	}
	line := boarding.NormalizeLineKey(in.LineID)
	if line == "" {
		return ports.ConfirmResult{}, fmt.Errorf("%w: %w", ports.ErrInvalidInput, boarding.ErrLineRequired)
	}

	var (
		out confirmOutcome
		err error
	)
	for attempt := 0; ; attempt++ {
		out, err = service.confirmOnce(ctx, in.UserID, line)
		if err == nil || !errors.Is(err, ports.ErrConflict) || attempt >= conflictRetries {
			break
		}
		service.metrics.ConflictRetries.Inc()
		service.logger.Warn(ctx, "confirm_retry", "Retrying boarding confirmation after a conflict", map[string]any{
			"user_id": in.UserID,
			"attempt": attempt + 1,
		})
	}
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrNoActiveRequest):
			service.metrics.Confirmations.WithLabelValues("no_request").Inc()
		case errors.Is(err, ports.ErrConflict):
			service.metrics.Confirmations.WithLabelValues("conflict").Inc()
			service.logger.Error(ctx, "confirm_conflict", "Boarding confirmation conflicted twice", err, map[string]any{
				"user_id": in.UserID,
				"line_id": line,
			})
		default:
			service.logger.Error(ctx, "confirm_failed", "Failed to confirm boarding", err, map[string]any{
				"user_id": in.UserID,
				"line_id": line,
			})
		}
		return ports.ConfirmResult{}, err
	}

	if out.duplicate {
		service.metrics.Confirmations.WithLabelValues("duplicate").Inc()
		service.logger.Info(ctx, "confirm_duplicate", "Boarding was already confirmed", map[string]any{
			"request_id": out.request.ID,
			"user_id":    in.UserID,
		})
		return ports.ConfirmResult{
			Message:   "Boarding already confirmed",
			Request:   ports.NewRequestView(out.request),
			Duplicate: true,
		}, nil
	}
	service.metrics.Confirmations.WithLabelValues("confirmed").Inc()

	service.publish(ctx, contracts.ExchangeBoardingTopic,
		contracts.RouteBoardingConfirmedPrefix+contracts.RoutingToken(line),
		contracts.BoardingConfirmedMessage{
			RequestID:          out.request.ID,
			UserID:             out.request.UserID,
			LineID:             line,
			TotalConfirmations: out.total,
			ConfirmedAt:        *out.request.ConfirmedAt,
			Envelope: contracts.Envelope{
				CorrelationID: uuid.NewString(),
				Producer:      contracts.ProducerBoardingService,
				SentAt:        service.clock.Now().UTC(),
			},
		})

	service.logger.Info(ctx, "boarding_confirmed", fmt.Sprintf("Boarding confirmed on line %s", line), map[string]any{
		"request_id":          out.request.ID,
		"user_id":             in.UserID,
		"total_confirmations": out.total,
	})

	return ports.ConfirmResult{
		Message: "Boarding confirmed",
		Request: ports.NewRequestView(out.request),
	}, nil
}

// confirmOnce runs one locked read-modify-write of the user's request.
func (service *boardingService) confirmOnce(ctx context.Context, userID, line string) (confirmOutcome, error) {
	var out confirmOutcome
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		req, err := service.requests.LockByUser(txCtx, userID)
		if errors.Is(err, ports.ErrNotFound) {
			return ports.ErrNoActiveRequest
		}
		if err != nil {
			return err
		}

		if req.IsConfirmed() {
			out = confirmOutcome{request: req, duplicate: true}
			return nil
		}

		req.LineID = line
		if err := req.Confirm(service.clock.Now()); err != nil {
			return err
		}
		if err := service.requests.MarkConfirmed(txCtx, req); err != nil {
			return err
		}

		total, err := service.demand.Increment(txCtx, line)
		if err != nil {
			return err
		}
		out = confirmOutcome{request: req, total: total}
		return nil
	})
	return out, err
}

// Demand returns the confirmed boarding tally of a line.
func (service *boardingService) Demand(ctx context.Context, lineID string) (*boarding.LineDemand, error) {
	line := boarding.NormalizeLineKey(lineID)
	if line == "" {
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidInput, boarding.ErrLineRequired)
	}

	var out *boarding.LineDemand
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		out, err = service.demand.Get(txCtx, line)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
