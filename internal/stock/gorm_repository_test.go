package stock

import (
	"context"
	"testing"
	"time"

	"stockguard/internal/database/dbtest"
	"stockguard/internal/lock"
	"stockguard/internal/models"
	"stockguard/internal/unit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func seedLot(t *testing.T, db *gorm.DB, estID, productID string, qty float64, unit string, created time.Time) models.StockLot {
	t.Helper()
	lot := models.StockLot{
		Model:           models.Model{CreatedAt: created},
		EstablishmentID: estID,
		ProductID:       productID,
		Quantity:        qty,
		Unit:            unit,
		UnitPrice:       decimal.NewFromFloat(12.5),
	}
	require.NoError(t, db.Create(&lot).Error)
	return lot
}

func TestGormSelectLotsOrder(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	cheese := dbtest.Product(t, db, estID, "Cheese", "kg")
	repo := NewGormRepository(db)
	ctx := context.Background()

	b := seedLot(t, db, estID, cheese.ID, 3, "kg", t2)
	a := seedLot(t, db, estID, cheese.ID, 5, "kg", t1)
	empty := seedLot(t, db, estID, cheese.ID, 0, "kg", t3)

	fifo, err := SelectLots(ctx, repo, LotQuery{EstablishmentID: estID, ProductID: cheese.ID, Order: FIFO, OnlyAvailable: true})
	require.NoError(t, err)
	require.Len(t, fifo, 2)
	assert.Equal(t, a.ID, fifo[0].ID)
	assert.Equal(t, b.ID, fifo[1].ID)
	assert.True(t, fifo[0].UnitPrice.Equal(decimal.NewFromFloat(12.5)))

	lifo, err := SelectLots(ctx, repo, LotQuery{EstablishmentID: estID, ProductID: cheese.ID, Order: LIFO})
	require.NoError(t, err)
	require.Len(t, lifo, 3)
	assert.Equal(t, []string{empty.ID, b.ID, a.ID}, []string{lifo[0].ID, lifo[1].ID, lifo[2].ID})

	none, err := SelectLots(ctx, repo, LotQuery{EstablishmentID: "other", ProductID: cheese.ID})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormUpdateLotQuantityVersionCheck(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	bun := dbtest.Product(t, db, estID, "Bun", "units")
	repo := NewGormRepository(db)
	ctx := context.Background()

	lot := seedLot(t, db, estID, bun.ID, 100, "units", t1)
	stale := lot

	require.NoError(t, repo.UpdateLotQuantity(ctx, &lot, 70))
	assert.Equal(t, 1, lot.Version)

	err := repo.UpdateLotQuantity(ctx, &stale, 90)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	var stored models.StockLot
	require.NoError(t, db.First(&stored, "id = ?", lot.ID).Error)
	assert.Equal(t, 70.0, stored.Quantity)
	assert.Equal(t, 1, stored.Version)
}

func TestGormProductScopedToEstablishment(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	otherID := dbtest.Establishment(t, db, "Brasserie")
	bun := dbtest.Product(t, db, estID, "Bun", "units")
	repo := NewGormRepository(db)

	_, err := repo.Product(context.Background(), otherID, bun.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	p, err := repo.Product(context.Background(), estID, bun.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bun", p.Name)
}

func TestGormEngineCheeseScenario(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	cheese := dbtest.Product(t, db, estID, "Cheese", "kg")
	a := seedLot(t, db, estID, cheese.ID, 5, "kg", t1)
	b := seedLot(t, db, estID, cheese.ID, 3, "kg", t2)
	e := NewEngine(NewGormRepository(db), unit.NewConverter(nil), lock.NewLocal(), zap.NewNop(), 3)
	ctx := context.Background()

	report, err := e.Deduct(ctx, estID, []Demand{{ProductID: cheese.ID, Quantity: 6, Unit: "kg"}}, 1)
	require.NoError(t, err)
	assert.True(t, report.Complete())

	var lots []models.StockLot
	require.NoError(t, db.Order("created_at").Find(&lots, "product_id = ?", cheese.ID).Error)
	require.Len(t, lots, 2)
	assert.Equal(t, a.ID, lots[0].ID)
	assert.Equal(t, 0.0, lots[0].Quantity)
	assert.Equal(t, b.ID, lots[1].ID)
	assert.Equal(t, 2.0, lots[1].Quantity)

	// restoration lands entirely on the newest lot
	require.NoError(t, e.Restore(ctx, estID, []Demand{{ProductID: cheese.ID, Quantity: 6, Unit: "kg"}}, 1))
	require.NoError(t, db.Order("created_at").Find(&lots, "product_id = ?", cheese.ID).Error)
	assert.Equal(t, 0.0, lots[0].Quantity)
	assert.Equal(t, 8.0, lots[1].Quantity)
}

func TestGormRestoreCreatesLot(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	milk := dbtest.Product(t, db, estID, "Milk", "L")
	e := NewEngine(NewGormRepository(db), unit.NewConverter(nil), lock.NewLocal(), zap.NewNop(), 3)

	require.NoError(t, e.Restore(context.Background(), estID, []Demand{{ProductID: milk.ID, Quantity: 25, Unit: "cl"}}, 2))

	var lots []models.StockLot
	require.NoError(t, db.Find(&lots, "product_id = ?", milk.ID).Error)
	require.Len(t, lots, 1)
	assert.InDelta(t, 0.5, lots[0].Quantity, 1e-9)
	assert.Equal(t, "L", lots[0].Unit)
	assert.True(t, lots[0].UnitPrice.IsZero())
}
