package postgres

import (
	"context"
	"errors"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/ports"

	"github.com/jackc/pgx/v5"
)

// DemandRepo persists per-line confirmation counters using pgx and plain SQL.
type DemandRepo struct{}

// NewDemandRepo constructs a new DemandRepo.
func NewDemandRepo() ports.DemandRepository {
	return &DemandRepo{}
}

// Register creates the line's counter at zero if it does not exist yet.
// An existing counter is never touched.
func (repo *DemandRepo) Register(ctx context.Context, lineID string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO line_demand (line_id, total_confirmations)
		VALUES ($1, 0)
		ON CONFLICT (line_id) DO NOTHING
	`, lineID)
	return err
}

// Increment atomically adds one to the line's counter, creating it when absent,
// and returns the new total.
func (repo *DemandRepo) Increment(ctx context.Context, lineID string) (uint64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	err = tx.QueryRow(ctx, `
		INSERT INTO line_demand (line_id, total_confirmations, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (line_id) DO UPDATE SET
			total_confirmations = line_demand.total_confirmations + 1,
			updated_at          = now()
		RETURNING total_confirmations
	`, lineID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return uint64(total), nil
}

// Get returns the line's counter or ports.ErrNotFound.
func (repo *DemandRepo) Get(ctx context.Context, lineID string) (*boarding.LineDemand, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out   boarding.LineDemand
		total int64
	)
	err = tx.QueryRow(ctx, `
		SELECT line_id, total_confirmations
		FROM line_demand
		WHERE line_id = $1
	`, lineID).Scan(&out.LineID, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	out.TotalConfirmations = uint64(total)
	return &out, nil
}
