package postgres

import (
	"context"
	"errors"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RequestRepo persists boarding requests using pgx and plain SQL.
// The requests.user_id unique constraint is what enforces one row per user.
type RequestRepo struct{}

// NewRequestRepo constructs a new RequestRepo.
func NewRequestRepo() ports.RequestRepository {
	return &RequestRepo{}
}

const requestColumns = `id, user_id::text, origin, line_id, state, created_at, updated_at, confirmed_at`

// Upsert writes r as the user's only request, replacing whatever was there.
// The row is forced back to REQUESTED and confirmed_at is cleared.
// r.ID and timestamps are filled from the stored row.
func (repo *RequestRepo) Upsert(ctx context.Context, r *boarding.Request) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if err := r.Validate(); err != nil {
		return err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO requests (user_id, origin, line_id, state, created_at, updated_at, confirmed_at)
		VALUES (($1::text)::uuid, $2, $3, 'REQUESTED', $4, $4, NULL)
		ON CONFLICT (user_id) DO UPDATE SET
			origin       = EXCLUDED.origin,
			line_id      = EXCLUDED.line_id,
			state        = 'REQUESTED',
			created_at   = EXCLUDED.created_at,
			updated_at   = EXCLUDED.updated_at,
			confirmed_at = NULL
		RETURNING `+requestColumns,
		r.UserID, r.Origin, r.LineID, r.CreatedAt,
	)
	out, err := scanRequest(row)
	if err != nil {
		return err
	}
	*r = *out
	return nil
}

// GetByUser returns the user's request or ports.ErrNotFound.
func (repo *RequestRepo) GetByUser(ctx context.Context, userID string) (*boarding.Request, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	return scanRequest(tx.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE user_id = ($1::text)::uuid
	`, userID))
}

// LockByUser returns the user's request and holds a row lock until the transaction ends.
func (repo *RequestRepo) LockByUser(ctx context.Context, userID string) (*boarding.Request, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	return scanRequest(tx.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE user_id = ($1::text)::uuid
		FOR UPDATE
	`, userID))
}

// MarkConfirmed persists a CONFIRMED transition of r.
func (repo *RequestRepo) MarkConfirmed(ctx context.Context, r *boarding.Request) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE requests
		SET state = 'CONFIRMED', line_id = $2, confirmed_at = $3, updated_at = $3
		WHERE id = $1 AND state = 'REQUESTED'
	`, r.ID, r.LineID, r.ConfirmedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ports.ErrConflict
	}
	return nil
}

func scanRequest(row pgx.Row) (*boarding.Request, error) {
	var (
		r     boarding.Request
		state string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Origin, &r.LineID, &state, &r.CreatedAt, &r.UpdatedAt, &r.ConfirmedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	r.State = boarding.State(state)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	if r.ConfirmedAt != nil {
		t := r.ConfirmedAt.UTC()
		r.ConfirmedAt = &t
	}
	return &r, nil
}
