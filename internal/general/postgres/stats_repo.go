package postgres

import (
	"context"
	"time"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/ports"
)

// StatsRepo runs the read-only aggregate queries of the operations board.
type StatsRepo struct{}

// NewStatsRepo constructs a new StatsRepo.
func NewStatsRepo() ports.StatsRepository {
	return &StatsRepo{}
}

// CountActiveRequests returns the number of requests still waiting for a boarding confirmation.
func (repo *StatsRepo) CountActiveRequests(ctx context.Context) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM requests
		WHERE state = 'REQUESTED'
	`).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// CountRequestsBetween returns the number of requests filed within [start, end).
// A replaced request counts once, at its latest filing time.
func (repo *StatsRepo) CountRequestsBetween(ctx context.Context, start, end time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM requests
		WHERE created_at >= $1 AND created_at < $2
	`, start, end).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// CountConfirmedBetween returns the number of requests confirmed within [start, end).
func (repo *StatsRepo) CountConfirmedBetween(ctx context.Context, start, end time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM requests
		WHERE state = 'CONFIRMED' AND confirmed_at >= $1 AND confirmed_at < $2
	`, start, end).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// CountReportingSince returns the number of distinct vehicles with a sample received at or after since.
func (repo *StatsRepo) CountReportingSince(ctx context.Context, since time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(DISTINCT vehicle_id)
		FROM vehicle_positions
		WHERE received_at >= $1
	`, since).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// TopLines ranks lines by pending requests plus confirmations.
func (repo *StatsRepo) TopLines(ctx context.Context, limit int) ([]ports.LineActivity, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := tx.Query(ctx, `
		WITH pending AS (
			SELECT lower(line_id) AS line_key, min(line_id) AS line_id, COUNT(*) AS pending_requests
			FROM requests
			WHERE state = 'REQUESTED'
			GROUP BY lower(line_id)
		),
		demand AS (
			SELECT lower(line_id) AS line_key, min(line_id) AS line_id, SUM(total_confirmations) AS total_confirmations
			FROM line_demand
			GROUP BY lower(line_id)
		)
		SELECT
			COALESCE(d.line_id, p.line_id)         AS line_id,
			COALESCE(p.pending_requests, 0)        AS pending_requests,
			COALESCE(d.total_confirmations, 0)::bigint AS total_confirmations
		FROM demand d
		FULL OUTER JOIN pending p ON d.line_key = p.line_key
		ORDER BY (COALESCE(p.pending_requests, 0) + COALESCE(d.total_confirmations, 0)) DESC,
		         COALESCE(d.line_id, p.line_id)
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.LineActivity
	for rows.Next() {
		var (
			a     ports.LineActivity
			total int64
		)
		if err := rows.Scan(&a.LineID, &a.PendingRequests, &total); err != nil {
			return nil, err
		}
		a.TotalConfirmations = uint64(total)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// ListActiveRequests returns one page of waiting requests, oldest first.
func (repo *StatsRepo) ListActiveRequests(ctx context.Context, offset, limit int) ([]boarding.Request, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE state = 'REQUESTED'
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []boarding.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
