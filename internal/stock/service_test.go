package stock

import (
	"context"
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockguard/internal/apperr"
	"stockguard/internal/audit"
	"stockguard/internal/auth"
	"stockguard/internal/database/dbtest"
	"stockguard/internal/httpx"
	"stockguard/internal/models"
	"stockguard/internal/unit"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(db *gorm.DB) *Service {
	return NewService(NewGormRepository(db), unit.NewConverter(nil), zap.NewNop())
}

func TestReceiveValidates(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	cheese := dbtest.Product(t, db, estID, "Cheese", "kg")
	svc := newService(db)
	ctx := context.Background()

	_, err := svc.Receive(ctx, estID, ReceiveInput{ProductID: cheese.ID, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Receive(ctx, estID, ReceiveInput{ProductID: cheese.ID, Quantity: 1, Unit: "L"})
	assert.Error(t, err)

	_, err = svc.Receive(ctx, estID, ReceiveInput{ProductID: cheese.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(-1)})
	assert.Error(t, err)

	_, err = svc.Receive(ctx, "elsewhere", ReceiveInput{ProductID: cheese.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)

	lot, err := svc.Receive(ctx, estID, ReceiveInput{ProductID: cheese.ID, Quantity: 2500, Unit: "g", UnitPrice: decimal.RequireFromString("0.018")})
	require.NoError(t, err)
	assert.NotEmpty(t, lot.ID)
	assert.Equal(t, "g", lot.Unit)
}

func TestLevelsAndLowStock(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	cheese := dbtest.Product(t, db, estID, "Cheese", "kg")
	bun := dbtest.Product(t, db, estID, "Bun", "units")
	require.NoError(t, db.Model(&bun).Update("min_stock", 50).Error)
	svc := newService(db)
	ctx := context.Background()

	_, err := svc.Receive(ctx, estID, ReceiveInput{ProductID: cheese.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, estID, ReceiveInput{ProductID: cheese.ID, Quantity: 500, Unit: "g"})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, estID, ReceiveInput{ProductID: bun.ID, Quantity: 20})
	require.NoError(t, err)

	levels, err := svc.Levels(ctx, estID)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	// ordered by name
	assert.Equal(t, "Bun", levels[0].Name)
	assert.True(t, levels[0].Low)
	assert.Equal(t, "Cheese", levels[1].Name)
	assert.InDelta(t, 2.5, levels[1].Quantity, 1e-9)
	assert.Equal(t, 2, levels[1].Lots)
	assert.False(t, levels[1].Low)

	low, err := svc.LowStock(ctx, estID)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, bun.ID, low[0].ProductID)
}

func TestExpiring(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	milk := dbtest.Product(t, db, estID, "Milk", "L")
	svc := newService(db)
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	soon := now.Add(48 * time.Hour)
	later := now.Add(10 * 24 * time.Hour)
	_, err := svc.Receive(ctx, estID, ReceiveInput{ProductID: milk.ID, Quantity: 6, ExpiresAt: &soon})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, estID, ReceiveInput{ProductID: milk.ID, Quantity: 6, ExpiresAt: &later})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, estID, ReceiveInput{ProductID: milk.ID, Quantity: 6})
	require.NoError(t, err)

	lots, err := svc.Expiring(ctx, estID, now, 3)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].ExpiresAt.Equal(soon))

	// a huge window is capped rather than wrapping into the past
	distant := now.AddDate(2, 0, 0)
	_, err = svc.Receive(ctx, estID, ReceiveInput{ProductID: milk.ID, Quantity: 6, ExpiresAt: &distant})
	require.NoError(t, err)
	lots, err = svc.Expiring(ctx, estID, now, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, lots, 2)

	_, err = svc.Expiring(ctx, estID, now, -1)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestReceiveLotHandler(t *testing.T) {
	db := dbtest.New(t)
	estID := dbtest.Establishment(t, db, "Bistro")
	cheese := dbtest.Product(t, db, estID, "Cheese", "kg")
	auditSvc := audit.NewService(db, zap.NewNop())
	h := NewHandler(newService(db), auditSvc, zap.NewNop(), 3)

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	api := app.Group("/api", auth.WithIdentity(auth.Identity{UserID: "u1", EstablishmentID: estID, Role: models.RoleManager}))
	h.Register(api)

	body := `{"product_id":"` + cheese.ID + `","quantity":5,"unit_price":"12.40","expires_at":"2025-07-01","supplier":"Fromagerie Dupont"}`
	req := httptest.NewRequest("POST", "/api/stock-lots", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var lot models.StockLot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lot))
	assert.Equal(t, "kg", lot.Unit)
	assert.True(t, lot.UnitPrice.Equal(decimal.RequireFromString("12.4")))

	logs, err := auditSvc.List(context.Background(), estID, audit.Filter{EntityType: "stock_lot"})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	req = httptest.NewRequest("GET", "/api/stock-lots?product_id="+cheese.ID+"&order=sideways", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/stock-lots?product_id=missing", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
