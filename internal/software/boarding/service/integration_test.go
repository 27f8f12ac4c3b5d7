package service

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"
	"bus-boarding/internal/general/postgres"
	"bus-boarding/internal/general/rabbitmq"
	"bus-boarding/internal/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const concurrentCallers = 8

type pgEnv struct {
	pool *pgxpool.Pool
	uow  ports.UnitOfWork
	svc  ports.BoardingService
}

// newPGEnv runs the service against DATABASE_URL. Without it the test is skipped.
func newPGEnv(t *testing.T) *pgEnv {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	log := logger.NewWithWriter("test", io.Discard)
	pool, err := postgres.NewPoolFromDSN(ctx, dsn, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.EnsureSchema(ctx, pool, log))

	uow := postgres.NewUnitOfWork(pool)
	svc := NewBoardingService(log, uow, postgres.NewRequestRepo(), postgres.NewDemandRepo(),
		rabbitmq.DiscardPublisher{}, metrics.NewCollector(), clock.Real())
	return &pgEnv{pool: pool, uow: uow, svc: svc}
}

func (e *pgEnv) newRider(t *testing.T) string {
	t.Helper()
	u, err := user.NewUser("Rider", uuid.NewString()+"@example.com", user.RoleRider, "hash")
	require.NoError(t, err)
	require.NoError(t, e.uow.WithinTx(context.Background(), func(ctx context.Context) error {
		return postgres.NewUserRepo().CreateUser(ctx, u)
	}))
	return u.ID
}

// parallel runs fn from n goroutines released together.
func parallel(n int, fn func(i int)) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			fn(i)
		}()
	}
	close(start)
	wg.Wait()
}

func TestConcurrentConfirmsCountOnce(t *testing.T) {
	e := newPGEnv(t)
	ctx := context.Background()
	rider := e.newRider(t)
	line := "it-" + uuid.NewString()[:8]

	_, err := e.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: rider, Origin: "A", LineID: line})
	require.NoError(t, err)

	results := make([]ports.ConfirmResult, concurrentCallers)
	errs := make([]error, concurrentCallers)
	parallel(concurrentCallers, func(i int) {
		results[i], errs[i] = e.svc.Confirm(ctx, ports.ConfirmInput{UserID: rider, LineID: line})
	})

	counted := 0
	for i, err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, ports.ErrConflict), "unexpected error: %v", err)
			continue
		}
		if !results[i].Duplicate {
			counted++
		}
	}
	assert.Equal(t, 1, counted, "exactly one confirm increments")

	d, err := e.svc.Demand(ctx, line)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.TotalConfirmations)
}

func TestConcurrentCreateOrReplaceKeepsOneRow(t *testing.T) {
	e := newPGEnv(t)
	ctx := context.Background()
	rider := e.newRider(t)

	ids := make([]int64, concurrentCallers)
	errs := make([]error, concurrentCallers)
	parallel(concurrentCallers, func(i int) {
		var res ports.CreateRequestResult
		res, errs[i] = e.svc.CreateOrReplace(ctx, ports.CreateRequestInput{
			UserID: rider,
			Origin: "A",
			LineID: "L" + string(rune('0'+i)),
		})
		ids[i] = res.ID
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id, "every caller lands on the same row")
	}

	var rows int
	require.NoError(t, e.pool.QueryRow(ctx,
		`SELECT count(*) FROM requests WHERE user_id = ($1::text)::uuid`, rider).Scan(&rows))
	assert.Equal(t, 1, rows)

	cur, err := e.svc.Current(ctx, rider)
	require.NoError(t, err)
	assert.True(t, cur.Requested())
}
