package service

import (
	"context"
	"time"

	"bus-boarding/internal/ports"
)

const (
	// reportingWindow is how recent a sample must be for its vehicle to count as reporting.
	reportingWindow = 5 * time.Minute
	topLinesLimit   = 10
)

// Overview collects aggregate figures about requests, confirmations and telemetry.
// "Today" is the current UTC day.
func (service *adminService) Overview(ctx context.Context) (ports.OverviewResult, error) {
	var res ports.OverviewResult
	now := service.clock.Now().UTC()
	res.Timestamp = now

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		// ----- request figures -----

		nActive, err := service.stats.CountActiveRequests(txCtx)
		if err != nil {
			return err
		}
		res.Metrics.ActiveRequests = nActive

		nToday, err := service.stats.CountRequestsBetween(txCtx, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		res.Metrics.RequestsToday = nToday

		nConfirmed, err := service.stats.CountConfirmedBetween(txCtx, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		res.Metrics.ConfirmationsToday = nConfirmed

		// ----- telemetry -----

		nReporting, err := service.stats.CountReportingSince(txCtx, now.Add(-reportingWindow))
		if err != nil {
			return err
		}
		res.Metrics.ReportingVehicles = nReporting

		// ----- busiest lines -----

		lines, err := service.stats.TopLines(txCtx, topLinesLimit)
		if err != nil {
			return err
		}
		res.TopLines = make([]ports.LineActivityView, 0, len(lines))
		for _, l := range lines {
			res.TopLines = append(res.TopLines, ports.LineActivityView{
				LineID:             l.LineID,
				PendingRequests:    l.PendingRequests,
				TotalConfirmations: l.TotalConfirmations,
			})
		}

		return nil
	})
	if err != nil {
		return ports.OverviewResult{}, err
	}

	return res, nil
}
