package sale

import (
	"context"
	"testing"
	"time"

	"stockguard/internal/database"
	"stockguard/internal/database/dbtest"
	"stockguard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedSale(t *testing.T, db *gorm.DB, estID, total string, soldAt time.Time) {
	t.Helper()
	s := models.Sale{
		EstablishmentID: estID,
		MenuItemID:      "item",
		Quantity:        1,
		UnitPrice:       decimal.RequireFromString(total),
		TotalPrice:      decimal.RequireFromString(total),
		VATRate:         decimal.RequireFromString("0.10"),
		SoldAt:          soldAt.UTC(),
	}
	require.NoError(t, db.Omit("MenuItem").Create(&s).Error)
}

func newReports(t *testing.T, db *gorm.DB, now time.Time) *Reports {
	t.Helper()
	x, err := database.SQLX(db)
	require.NoError(t, err)
	r := NewReports(x, time.UTC)
	r.now = func() time.Time { return now }
	return r
}

func TestReportsTotals(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	otherID := dbtest.Establishment(t, db, "Cafe")
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	seedSale(t, db, estID, "12.50", time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	seedSale(t, db, estID, "9.50", time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))
	seedSale(t, db, estID, "20", time.Date(2025, 6, 3, 19, 0, 0, 0, time.UTC))
	seedSale(t, db, estID, "100", time.Date(2025, 5, 31, 21, 0, 0, 0, time.UTC))
	seedSale(t, db, otherID, "50", time.Date(2025, 6, 15, 11, 0, 0, 0, time.UTC))

	totals, err := newReports(t, db, now).Totals(context.Background(), estID)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Today.Sales)
	assert.Equal(t, "22.00", totals.Today.Revenue.StringFixed(2))
	assert.Equal(t, 3, totals.Month.Sales)
	assert.Equal(t, "42.00", totals.Month.Revenue.StringFixed(2))
}

func TestReportsTotalsEmpty(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")

	today, err := newReports(t, db, time.Now()).TodayTotal(context.Background(), estID)
	require.NoError(t, err)
	assert.Zero(t, today.Sales)
	assert.True(t, today.Revenue.IsZero())
}

func TestReportsDaily(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	seedSale(t, db, estID, "12.50", time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	seedSale(t, db, estID, "9.50", time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))
	seedSale(t, db, estID, "4", time.Date(2025, 6, 13, 23, 59, 0, 0, time.UTC))

	days, err := newReports(t, db, now).Daily(context.Background(), estID,
		time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-06-14", days[0].Date)
	assert.Zero(t, days[0].Sales)
	assert.True(t, days[0].Revenue.IsZero())
	assert.Equal(t, "2025-06-15", days[1].Date)
	assert.Equal(t, 2, days[1].Sales)
	assert.Equal(t, "22.00", days[1].Revenue.StringFixed(2))

	empty, err := newReports(t, db, now).Daily(context.Background(), estID, now, now)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
