package ports

import (
	"context"
	"time"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/domain/vehicle"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the methods for managing user data.
type UserRepository interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// PositionRepository is the append-only vehicle position log.
type PositionRepository interface {
	Append(ctx context.Context, p *vehicle.Position) error
	LatestAll(ctx context.Context) ([]vehicle.Position, error)
	History(ctx context.Context, vehicleID string, since time.Time) ([]vehicle.Position, error)
}

// RequestRepository manages the single boarding request row per user.
type RequestRepository interface {
	Upsert(ctx context.Context, r *boarding.Request) error
	GetByUser(ctx context.Context, userID string) (*boarding.Request, error)
	LockByUser(ctx context.Context, userID string) (*boarding.Request, error)
	MarkConfirmed(ctx context.Context, r *boarding.Request) error
}

// DemandRepository manages per-line confirmed boarding counters.
type DemandRepository interface {
	Register(ctx context.Context, lineID string) error
	Increment(ctx context.Context, lineID string) (uint64, error)
	Get(ctx context.Context, lineID string) (*boarding.LineDemand, error)
}

// LineActivity is one row of the busiest-lines ranking.
type LineActivity struct {
	LineID             string
	PendingRequests    int
	TotalConfirmations uint64
}

// StatsRepository answers the aggregate queries of the operations board.
type StatsRepository interface {
	CountActiveRequests(ctx context.Context) (int, error)
	CountRequestsBetween(ctx context.Context, start, end time.Time) (int, error)
	CountConfirmedBetween(ctx context.Context, start, end time.Time) (int, error)
	CountReportingSince(ctx context.Context, since time.Time) (int, error)
	TopLines(ctx context.Context, limit int) ([]LineActivity, error)
	ListActiveRequests(ctx context.Context, offset, limit int) ([]boarding.Request, error)
}
