package tracker

import (
	"context"
	"errors"
	"time"

	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/ports"
)

// Submitter files a boarding request.
type Submitter interface {
	CreateRequest(ctx context.Context, token, origin, line string) (ports.CreateRequestResult, error)
}

// RetryPolicy bounds SubmitWithRetry.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// SubmitWithRetry files the request, waiting attempt × BaseDelay between attempts.
// Authentication failures and rejected input are returned at once.
func SubmitWithRetry(ctx context.Context, api Submitter, clk clock.Clock, policy RetryPolicy, token, origin, line string) (ports.CreateRequestResult, error) {
	attempts := max(policy.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := api.CreateRequest(ctx, token, origin, line)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil || attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ports.CreateRequestResult{}, ctx.Err()
		case <-clk.After(time.Duration(attempt) * policy.BaseDelay):
		}
	}
	return ports.CreateRequestResult{}, lastErr
}

func retryable(err error) bool {
	return !errors.Is(err, ports.ErrUnauthenticated) && !errors.Is(err, ports.ErrInvalidInput)
}
