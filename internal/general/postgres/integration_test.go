package postgres

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/domain/vehicle"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects to DATABASE_URL and bootstraps the schema. Without it the test is skipped.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	log := logger.NewWithWriter("test", io.Discard)
	pool, err := NewPoolFromDSN(ctx, dsn, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, EnsureSchema(ctx, pool, log))
	return pool
}

func inTx(t *testing.T, uow ports.UnitOfWork, fn func(ctx context.Context) error) {
	t.Helper()
	require.NoError(t, uow.WithinTx(context.Background(), fn))
}

func newTestUser(t *testing.T, uow ports.UnitOfWork) *user.User {
	t.Helper()
	u, err := user.NewUser("Test", uuid.NewString()+"@example.com", user.RoleRider, "hash")
	require.NoError(t, err)
	inTx(t, uow, func(ctx context.Context) error { return NewUserRepo().CreateUser(ctx, u) })
	return u
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	pool := testPool(t)
	require.NoError(t, EnsureSchema(context.Background(), pool, logger.NewWithWriter("test", io.Discard)))
}

func TestLatestAllKeepsNewestSamplePerVehicle(t *testing.T) {
	pool := testPool(t)
	uow := NewUnitOfWork(pool)
	repo := NewPositionRepo()

	id := "it-" + uuid.NewString()
	line := "X"
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	for _, at := range []time.Time{t0.Add(-time.Minute), t0, t0.Add(-2 * time.Minute)} {
		p, err := vehicle.NewPosition(id, 1, 2, nil, &line, at, time.Time{})
		require.NoError(t, err)
		inTx(t, uow, func(ctx context.Context) error { return repo.Append(ctx, p) })
	}

	var latest []vehicle.Position
	inTx(t, uow, func(ctx context.Context) (err error) {
		latest, err = repo.LatestAll(ctx)
		return err
	})

	var mine []vehicle.Position
	for _, p := range latest {
		if p.VehicleID == id {
			mine = append(mine, p)
		}
	}
	require.Len(t, mine, 1)
	assert.True(t, t0.Equal(mine[0].RecordedAt))

	var history []vehicle.Position
	inTx(t, uow, func(ctx context.Context) (err error) {
		history, err = repo.History(ctx, id, t0.Add(-90*time.Second))
		return err
	})
	require.Len(t, history, 2)
	assert.True(t, history[0].RecordedAt.Before(history[1].RecordedAt))
}

func TestRequestUpsertConfirmAndDemand(t *testing.T) {
	pool := testPool(t)
	uow := NewUnitOfWork(pool)
	requests := NewRequestRepo()
	demand := NewDemandRepo()
	u := newTestUser(t, uow)
	line := "IT-" + uuid.NewString()[:8]

	first, err := boarding.NewRequest(u.ID, "A", "old", time.Now().UTC())
	require.NoError(t, err)
	inTx(t, uow, func(ctx context.Context) error { return requests.Upsert(ctx, first) })

	second, err := boarding.NewRequest(u.ID, "B", line, time.Now().UTC())
	require.NoError(t, err)
	inTx(t, uow, func(ctx context.Context) error { return requests.Upsert(ctx, second) })
	assert.Equal(t, first.ID, second.ID, "one row per user")

	var total uint64
	inTx(t, uow, func(ctx context.Context) error {
		r, err := requests.LockByUser(ctx, u.ID)
		if err != nil {
			return err
		}
		if err := r.Confirm(time.Now().UTC()); err != nil {
			return err
		}
		if err := requests.MarkConfirmed(ctx, r); err != nil {
			return err
		}
		total, err = demand.Increment(ctx, line)
		return err
	})
	assert.Equal(t, uint64(1), total)

	err = uow.WithinTx(context.Background(), func(ctx context.Context) error {
		r, err := requests.GetByUser(ctx, u.ID)
		if err != nil {
			return err
		}
		return requests.MarkConfirmed(ctx, r)
	})
	assert.ErrorIs(t, err, ports.ErrConflict, "a confirmed row cannot be confirmed again")

	var got *boarding.LineDemand
	inTx(t, uow, func(ctx context.Context) (err error) {
		if err := demand.Register(ctx, line); err != nil {
			return err
		}
		got, err = demand.Get(ctx, line)
		return err
	})
	assert.Equal(t, uint64(1), got.TotalConfirmations, "register never resets a counter")
}

func TestStatsActiveRequests(t *testing.T) {
	pool := testPool(t)
	uow := NewUnitOfWork(pool)
	stats := NewStatsRepo()
	u := newTestUser(t, uow)

	var before int
	inTx(t, uow, func(ctx context.Context) (err error) {
		before, err = stats.CountActiveRequests(ctx)
		return err
	})

	r, err := boarding.NewRequest(u.ID, "A", "X", time.Now().UTC())
	require.NoError(t, err)
	inTx(t, uow, func(ctx context.Context) error { return NewRequestRepo().Upsert(ctx, r) })

	var after int
	var page []boarding.Request
	inTx(t, uow, func(ctx context.Context) (err error) {
		if after, err = stats.CountActiveRequests(ctx); err != nil {
			return err
		}
		page, err = stats.ListActiveRequests(ctx, 0, after)
		return err
	})
	assert.Equal(t, before+1, after)

	found := false
	for _, p := range page {
		found = found || p.ID == r.ID
	}
	assert.True(t, found)
}
