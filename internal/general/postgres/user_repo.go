package postgres

import (
	"context"
	"errors"

	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/ports"

	"github.com/jackc/pgx/v5"
)

// UserRepo persists users using pgx and plain SQL.
type UserRepo struct{}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo() ports.UserRepository {
	return &UserRepo{}
}

// CreateUser inserts a new user row and fills in its id and timestamps.
// A duplicate email is reported as ports.ErrEmailTaken.
func (repo *UserRepo) CreateUser(ctx context.Context, u *user.User) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if err := u.Validate(); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (name, email, role, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at, updated_at
	`,
		u.Name,
		u.Email,
		u.Role.String(),
		u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrEmailTaken
		}
		return err
	}
	return nil
}

// GetByID returns one user by id or ports.ErrNotFound.
func (repo *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	return scanUser(tx.QueryRow(ctx, `
		SELECT id::text, created_at, updated_at, name, email, role, password_hash
		FROM users
		WHERE id = ($1::text)::uuid
	`, id))
}

// GetByEmail returns one user by normalized email or ports.ErrNotFound.
func (repo *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	return scanUser(tx.QueryRow(ctx, `
		SELECT id::text, created_at, updated_at, name, email, role, password_hash
		FROM users
		WHERE email = $1
	`, user.NormalizeEmail(email)))
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		out      user.User
		roleText string
	)
	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt,
		&out.Name, &out.Email, &roleText, &out.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	out.Role = user.Role(roleText)
	return &out, nil
}
