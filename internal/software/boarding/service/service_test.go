package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/general/contracts"
	"bus-boarding/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ana = "3f2b9a8e-5c1d-4e6f-9a7b-2c3d4e5f6a7b"
	bob = "9d1c0b7a-1111-4222-8333-444455556666"
)

func TestCreateOrReplace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "Praça da Sé", LineID: "875A"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, "Boarding request registered", res.Message)
	assert.False(t, res.Replaced)

	cur, err := f.svc.Current(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, boarding.StateRequested, cur.State)
	assert.Equal(t, "875A", cur.LineID)

	msgs := f.pub.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, contracts.ExchangeBoardingTopic, msgs[0].exchange)
	assert.Equal(t, "boarding.requested.875A", msgs[0].key)

	var msg contracts.BoardingRequestedMessage
	require.NoError(t, json.Unmarshal(msgs[0].body, &msg))
	assert.Equal(t, ana, msg.UserID)
	assert.Equal(t, "Praça da Sé", msg.Origin)
	assert.Equal(t, contracts.ProducerBoardingService, msg.Producer)
}

func TestCreateOrReplaceOverwritesSingleRow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "1"})
	require.NoError(t, err)
	second, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "B", LineID: "2"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Replaced)
	assert.Len(t, f.store.requests, 1)

	cur, err := f.svc.Current(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, "B", cur.Origin)
	assert.Equal(t, "2", cur.LineID)
}

func TestCreateAfterConfirmStartsFreshCycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "X"})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, ports.ConfirmInput{UserID: ana, LineID: "X"})
	require.NoError(t, err)

	res, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "X"})
	require.NoError(t, err)
	assert.False(t, res.Replaced, "a confirmed request is not an overwrite")

	cur, err := f.svc.Current(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, boarding.StateRequested, cur.State)
	assert.Nil(t, cur.ConfirmedAt)
}

func TestCreateOrReplaceInvalid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []ports.CreateRequestInput{
		{UserID: "not-a-uuid", Origin: "A", LineID: "X"},
		{UserID: ana, Origin: " ", LineID: "X"},
		{UserID: ana, Origin: "A", LineID: ""},
	}
	for _, in := range tests {
		_, err := f.svc.CreateOrReplace(ctx, in)
		assert.ErrorIs(t, err, ports.ErrInvalidInput)
	}
	assert.Empty(t, f.store.requests)
	assert.Empty(t, f.pub.all())
}

func TestCurrentNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Current(context.Background(), bob)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestConfirm(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "X"})
	require.NoError(t, err)
	f.clock.Advance(3 * time.Minute)

	res, err := f.svc.Confirm(ctx, ports.ConfirmInput{UserID: ana, LineID: " X "})
	require.NoError(t, err)
	assert.Equal(t, "Boarding confirmed", res.Message)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "CONFIRMED", res.Request.State)
	assert.False(t, res.Request.Requested)
	require.NotNil(t, res.Request.ConfirmedAt)
	assert.Equal(t, t0.Add(3*time.Minute), *res.Request.ConfirmedAt)

	d, err := f.svc.Demand(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.TotalConfirmations)

	msgs := f.pub.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, "boarding.confirmed.X", msgs[1].key)
	var msg contracts.BoardingConfirmedMessage
	require.NoError(t, json.Unmarshal(msgs[1].body, &msg))
	assert.Equal(t, uint64(1), msg.TotalConfirmations)
}

func TestDemandKeyIgnoresCase(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for user, line := range map[string]string{ana: "x", bob: "X"} {
		_, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: user, Origin: "A", LineID: line})
		require.NoError(t, err)
		_, err = f.svc.Confirm(ctx, ports.ConfirmInput{UserID: user, LineID: line})
		require.NoError(t, err)
	}

	d, err := f.svc.Demand(ctx, " x ")
	require.NoError(t, err)
	assert.Equal(t, "X", d.LineID)
	assert.Equal(t, uint64(2), d.TotalConfirmations)
}

func TestConfirmTwiceCountsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "X"})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, ports.ConfirmInput{UserID: ana, LineID: "X"})
	require.NoError(t, err)

	res, err := f.svc.Confirm(ctx, ports.ConfirmInput{UserID: ana, LineID: "X"})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, "Boarding already confirmed", res.Message)

	d, err := f.svc.Demand(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.TotalConfirmations)
	assert.Len(t, f.pub.all(), 2, "a duplicate publishes nothing")
}

func TestConfirmUsesConfirmedLine(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "X"})
	require.NoError(t, err)
	res, err := f.svc.Confirm(ctx, ports.ConfirmInput{UserID: ana, LineID: "Y"})
	require.NoError(t, err)
	assert.Equal(t, "Y", res.Request.LineID)

	_, err = f.svc.Demand(ctx, "X")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	d, err := f.svc.Demand(ctx, "Y")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.TotalConfirmations)
}

func TestConfirmWithoutRequest(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Confirm(context.Background(), ports.ConfirmInput{UserID: ana, LineID: "X"})
	assert.ErrorIs(t, err, ports.ErrNoActiveRequest)
	assert.Empty(t, f.store.demand)
}

func TestConfirmMissingLine(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Confirm(context.Background(), ports.ConfirmInput{UserID: ana, LineID: "  "})
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
	assert.Zero(t, f.store.txCount)
}

func TestConfirmIsAtomic(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "X"})
	require.NoError(t, err)

	boom := errors.New("disk full")
	f.store.incrementErr = boom
	_, err = f.svc.Confirm(ctx, ports.ConfirmInput{UserID: ana, LineID: "X"})
	require.ErrorIs(t, err, boom)

	cur, err := f.svc.Current(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, boarding.StateRequested, cur.State, "the confirmation rolled back with the counter")
	assert.Empty(t, f.store.demand)
}

func TestConfirmRetriesOneConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "X"})
	require.NoError(t, err)

	f.store.lockErrs = []error{ports.ErrConflict}
	res, err := f.svc.Confirm(ctx, ports.ConfirmInput{UserID: ana, LineID: "X"})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, f.store.rolledBack)
	assert.Equal(t, uint64(1), f.store.demand["X"])
}

func TestConfirmGivesUpAfterSecondConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "X"})
	require.NoError(t, err)

	f.store.lockErrs = []error{ports.ErrConflict, ports.ErrConflict, ports.ErrConflict}
	_, err = f.svc.Confirm(ctx, ports.ConfirmInput{UserID: ana, LineID: "X"})
	assert.ErrorIs(t, err, ports.ErrConflict)
	assert.Len(t, f.store.lockErrs, 1, "exactly one retry")
	assert.Empty(t, f.store.demand)
}

func TestPublishFailureDoesNotFailConfirm(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrReplace(ctx, ports.CreateRequestInput{UserID: ana, Origin: "A", LineID: "X"})
	require.NoError(t, err)

	f.pub.err = errors.New("broker down")
	_, err = f.svc.Confirm(ctx, ports.ConfirmInput{UserID: ana, LineID: "X"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.store.demand["X"])
}

func TestDemandMissingLine(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Demand(context.Background(), "")
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
}
