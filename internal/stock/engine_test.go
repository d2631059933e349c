package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockguard/internal/lock"
	"stockguard/internal/models"
	"stockguard/internal/unit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const est = "est-1"

var (
	t1 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 = t1.Add(24 * time.Hour)
	t3 = t2.Add(24 * time.Hour)
)

func newEngine(repo Repository, retries int) *Engine {
	return NewEngine(repo, unit.NewConverter(nil), lock.NewLocal(), zap.NewNop(), retries)
}

func TestDeductConservation(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "lot-a", "flour", 10, "kg", t1)
	e := newEngine(repo, 3)

	report, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "flour", Quantity: 2, Unit: "kg"}}, 2)
	require.NoError(t, err)

	assert.True(t, report.Complete())
	assert.Equal(t, 6.0, repo.lot("lot-a").Quantity)
}

func TestDeductFloorsAtZero(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "lot-a", "flour", 10, "kg", t1)
	e := newEngine(repo, 3)

	report, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "flour", Quantity: 15, Unit: "kg"}}, 1)
	require.NoError(t, err)

	assert.Equal(t, 0.0, repo.lot("lot-a").Quantity)
	require.Len(t, report.Shortfalls, 1)
	assert.Equal(t, Shortfall{ProductID: "flour", Missing: 5, Unit: "kg"}, report.Shortfalls[0])
}

func TestDeductMultiLotFIFO(t *testing.T) {
	// Cheese: lot A 5kg at T1, lot B 3kg at T2, recipe needs 6kg.
	repo := newFakeRepo()
	repo.addLot(est, "lot-b", "cheese", 3, "kg", t2)
	repo.addLot(est, "lot-a", "cheese", 5, "kg", t1)
	e := newEngine(repo, 3)

	report, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "cheese", Quantity: 6, Unit: "kg"}}, 1)
	require.NoError(t, err)

	assert.True(t, report.Complete())
	assert.Equal(t, 0.0, repo.lot("lot-a").Quantity)
	assert.Equal(t, 2.0, repo.lot("lot-b").Quantity)
}

func TestDeductSkipsEmptyLotsAndConvertsUnits(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "empty", "cheese", 0, "kg", t1)
	repo.addLot(est, "lot-a", "cheese", 1, "kg", t2)
	e := newEngine(repo, 3)

	_, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "cheese", Quantity: 150, Unit: "g"}}, 2)
	require.NoError(t, err)

	assert.Equal(t, 0.0, repo.lot("empty").Quantity)
	assert.InDelta(t, 0.7, repo.lot("lot-a").Quantity, 1e-9)
}

func TestDeductWithoutLotsIsNoop(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := newFakeRepo()
	e := NewEngine(repo, unit.NewConverter(nil), lock.NewLocal(), zap.New(core), 3)

	report, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "bun", Quantity: 3, Unit: "units"}}, 10)
	require.NoError(t, err)

	assert.Empty(t, repo.lots)
	assert.Equal(t, []Shortfall{{ProductID: "bun", Missing: 30, Unit: "units"}}, report.Shortfalls)
	assert.Equal(t, 1, logs.FilterMessage("insufficient stock").Len())
}

func TestDeductIgnoresOtherEstablishments(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot("est-2", "foreign", "bun", 50, "units", t1)
	repo.addLot(est, "mine", "bun", 5, "units", t2)
	e := newEngine(repo, 3)

	_, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "bun", Quantity: 1, Unit: "units"}}, 10)
	require.NoError(t, err)

	assert.Equal(t, 50.0, repo.lot("foreign").Quantity)
	assert.Equal(t, 0.0, repo.lot("mine").Quantity)
}

func TestDeductRetriesVersionConflicts(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "lot-a", "bun", 100, "units", t1)
	repo.conflicts = 2
	e := newEngine(repo, 3)

	_, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "bun", Quantity: 3, Unit: "units"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, 70.0, repo.lot("lot-a").Quantity)
}

func TestDeductGivesUpAfterMaxRetries(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "lot-a", "bun", 100, "units", t1)
	repo.conflicts = 5
	e := newEngine(repo, 2)

	_, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "bun", Quantity: 3, Unit: "units"}}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, 100.0, repo.lot("lot-a").Quantity)
}

// busyLocker never grants its lock.
type busyLocker struct{ err error }

func (b busyLocker) Acquire(context.Context, string) (func(), error) {
	return nil, b.err
}

func TestMutationsProceedWhenLockIsBusy(t *testing.T) {
	repo := newFakeRepo()
	repo.addProduct(est, "bun", "units")
	repo.addLot(est, "lot-a", "bun", 100, "units", t1)
	e := NewEngine(repo, unit.NewConverter(nil), busyLocker{err: lock.ErrNotAcquired}, zap.NewNop(), 3)
	bun := []Demand{{ProductID: "bun", Quantity: 3, Unit: "units"}}

	report, err := e.Deduct(context.Background(), est, bun, 10)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 70.0, repo.lot("lot-a").Quantity)

	require.NoError(t, e.Restore(context.Background(), est, bun, 10))
	assert.Equal(t, 100.0, repo.lot("lot-a").Quantity)
}

func TestDeductFailsOnLockError(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "lot-a", "bun", 100, "units", t1)
	e := NewEngine(repo, unit.NewConverter(nil), busyLocker{err: context.Canceled}, zap.NewNop(), 3)

	_, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "bun", Quantity: 3, Unit: "units"}}, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 100.0, repo.lot("lot-a").Quantity)
}

func TestDeductFailureIsolatedPerProduct(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "cheese-a", "cheese", 5, "kg", t1)
	repo.addLot(est, "cheese-b", "cheese", 3, "kg", t2)
	repo.addLot(est, "bun-a", "bun", 10, "units", t1)
	boom := errors.New("connection reset")
	repo.failUpdate["cheese-b"] = boom
	e := newEngine(repo, 3)

	demands := []Demand{
		{ProductID: "cheese", Quantity: 6, Unit: "kg"},
		{ProductID: "bun", Quantity: 1, Unit: "units"},
	}
	_, err := e.Deduct(context.Background(), est, demands, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// the failing product rolls back as a whole, the other one proceeds
	assert.Equal(t, 5.0, repo.lot("cheese-a").Quantity)
	assert.Equal(t, 3.0, repo.lot("cheese-b").Quantity)
	assert.Equal(t, 9.0, repo.lot("bun-a").Quantity)
}

func TestDeductRejectsInvalidQuantity(t *testing.T) {
	e := newEngine(newFakeRepo(), 3)
	for _, q := range []float64{0, -1} {
		_, err := e.Deduct(context.Background(), est, nil, q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
}

func TestDeductRejectsMalformedLot(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "bad", "bun", 4, "", t1)
	e := newEngine(repo, 3)

	_, err := e.Deduct(context.Background(), est, []Demand{{ProductID: "bun", Quantity: 1, Unit: "units"}}, 1)
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestRestoreWithoutLotsCreatesZeroPriceLot(t *testing.T) {
	repo := newFakeRepo()
	repo.addProduct(est, "cheese", "kg")
	e := newEngine(repo, 3)

	err := e.Restore(context.Background(), est, []Demand{{ProductID: "cheese", Quantity: 250, Unit: "g"}}, 2)
	require.NoError(t, err)

	lots := repo.lotsOf("cheese")
	require.Len(t, lots, 1)
	assert.InDelta(t, 0.5, lots[0].Quantity, 1e-9)
	assert.Equal(t, "kg", lots[0].Unit)
	assert.True(t, lots[0].UnitPrice.IsZero())
}

func TestRestoreUnknownProductFails(t *testing.T) {
	e := newEngine(newFakeRepo(), 3)

	err := e.Restore(context.Background(), est, []Demand{{ProductID: "ghost", Quantity: 1, Unit: "kg"}}, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestRestoreGoesToNewestLot(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "old", "cheese", 0, "kg", t1)
	repo.addLot(est, "mid", "cheese", 0, "kg", t2)
	repo.addLot(est, "new", "cheese", 1, "kg", t3)
	e := newEngine(repo, 3)

	require.NoError(t, e.Restore(context.Background(), est, []Demand{{ProductID: "cheese", Quantity: 6, Unit: "kg"}}, 1))

	assert.Equal(t, 0.0, repo.lot("old").Quantity)
	assert.Equal(t, 0.0, repo.lot("mid").Quantity)
	assert.Equal(t, 7.0, repo.lot("new").Quantity)
}

func TestBunSaleThenRestoreIsNetZero(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "bun-lot", "bun", 100, "units", t1)
	e := newEngine(repo, 3)
	demands := []Demand{{ProductID: "bun", Quantity: 3, Unit: "units"}}

	_, err := e.Deduct(context.Background(), est, demands, 10)
	require.NoError(t, err)
	assert.Equal(t, 70.0, repo.lot("bun-lot").Quantity)

	require.NoError(t, e.Restore(context.Background(), est, demands, 10))
	assert.Equal(t, 100.0, repo.lot("bun-lot").Quantity)
}

func TestShortfalls(t *testing.T) {
	repo := newFakeRepo()
	repo.addLot(est, "cheese-a", "cheese", 5, "kg", t1)
	repo.addLot(est, "cheese-b", "cheese", 3, "kg", t2)
	repo.addLot(est, "bun-a", "bun", 2, "units", t1)
	e := newEngine(repo, 3)

	// the same product listed twice is summed before comparing
	demands := []Demand{
		{ProductID: "cheese", Quantity: 3000, Unit: "g"},
		{ProductID: "cheese", Quantity: 2, Unit: "kg"},
		{ProductID: "bun", Quantity: 1, Unit: "units"},
		{ProductID: "salad", Quantity: 50, Unit: "g"},
	}
	got, err := e.Shortfalls(context.Background(), est, demands, 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "cheese", got[0].ProductID)
	assert.Equal(t, "kg", got[0].Unit)
	assert.InDelta(t, 2, got[0].Missing, 1e-9)
	assert.Equal(t, Shortfall{ProductID: "salad", Missing: 100, Unit: "g"}, got[1])
	assert.Zero(t, repo.updates)

	got, err = e.Shortfalls(context.Background(), est, demands[:3], 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDemandsFor(t *testing.T) {
	got := DemandsFor([]models.Ingredient{
		{ProductID: "bun", Quantity: 1, Unit: "units"},
		{ProductID: "cheese", Quantity: 30, Unit: "g"},
	})
	assert.Equal(t, []Demand{
		{ProductID: "bun", Quantity: 1, Unit: "units"},
		{ProductID: "cheese", Quantity: 30, Unit: "g"},
	}, got)
}
