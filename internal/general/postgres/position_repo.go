package postgres

import (
	"context"
	"time"

	"bus-boarding/internal/domain/vehicle"
	"bus-boarding/internal/ports"

	"github.com/jackc/pgx/v5"
)

// PositionRepo persists vehicle position samples using pgx and plain SQL.
type PositionRepo struct{}

// NewPositionRepo constructs a new PositionRepo.
func NewPositionRepo() ports.PositionRepository {
	return &PositionRepo{}
}

// Append inserts a single immutable sample and fills in its id.
func (repo *PositionRepo) Append(ctx context.Context, p *vehicle.Position) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// validate domain invariants
	if err := p.Validate(); err != nil {
		return err
	}

	return tx.QueryRow(ctx, `
		INSERT INTO vehicle_positions (
			vehicle_id, latitude, longitude, speed_mps, line_id, recorded_at, received_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		RETURNING id, received_at
	`,
		p.VehicleID,
		p.Point.Latitude,
		p.Point.Longitude,
		p.SpeedMPS,
		p.LineID,
		p.RecordedAt,
		nullTime(p.ReceivedAt),
	).Scan(&p.ID, &p.ReceivedAt)
}

// LatestAll returns exactly one sample per vehicle: the one with the greatest
// recorded_at, ties resolved by the most recent insert.
func (repo *PositionRepo) LatestAll(ctx context.Context) ([]vehicle.Position, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT DISTINCT ON (vehicle_id)
			id, vehicle_id, latitude, longitude, speed_mps, line_id, recorded_at, received_at
		FROM vehicle_positions
		ORDER BY vehicle_id, recorded_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	return collectPositions(rows)
}

// History returns the samples of one vehicle recorded at or after since, oldest first.
func (repo *PositionRepo) History(ctx context.Context, vehicleID string, since time.Time) ([]vehicle.Position, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, vehicle_id, latitude, longitude, speed_mps, line_id, recorded_at, received_at
		FROM vehicle_positions
		WHERE vehicle_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC, id ASC
	`, vehicleID, since.UTC())
	if err != nil {
		return nil, err
	}
	return collectPositions(rows)
}

func collectPositions(rows pgx.Rows) ([]vehicle.Position, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (vehicle.Position, error) {
		var p vehicle.Position
		err := row.Scan(
			&p.ID, &p.VehicleID, &p.Point.Latitude, &p.Point.Longitude,
			&p.SpeedMPS, &p.LineID, &p.RecordedAt, &p.ReceivedAt,
		)
		p.RecordedAt = p.RecordedAt.UTC()
		p.ReceivedAt = p.ReceivedAt.UTC()
		return p, err
	})
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
