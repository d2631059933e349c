package stock

import (
	"fmt"
	"time"

	"stockguard/internal/audit"
	"stockguard/internal/auth"
	"stockguard/internal/httpx"
	"stockguard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ReceiveLotRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  float64         `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ExpiresAt string          `json:"expires_at"` // "2025-12-09", optional
	Supplier  string          `json:"supplier"`
}

type Handler struct {
	svc          *Service
	audit        *audit.Service
	log          *zap.Logger
	expiringDays int
	now          func() time.Time
}

func NewHandler(svc *Service, auditSvc *audit.Service, log *zap.Logger, expiringDays int) *Handler {
	return &Handler{svc: svc, audit: auditSvc, log: log, expiringDays: expiringDays, now: time.Now}
}

func (h *Handler) Register(r fiber.Router) {
	r.Post("/stock-lots", h.ReceiveLot())
	r.Get("/stock-lots", h.ListLots())
	r.Get("/stock/current", h.Current())
	r.Get("/stock/low", h.Low())
	r.Get("/stock/expiring", h.Expiring())
}

// POST /api/stock-lots
func (h *Handler) ReceiveLot() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}

		var body ReceiveLotRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.ProductID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "product_id is required")
		}

		var expires *time.Time
		if body.ExpiresAt != "" {
			d, err := httpx.ParseDate(body.ExpiresAt, time.Time{}, time.UTC)
			if err != nil {
				return err
			}
			expires = &d
		}

		lot, err := h.svc.Receive(c.UserContext(), id.EstablishmentID, ReceiveInput{
			ProductID: body.ProductID,
			Quantity:  body.Quantity,
			Unit:      body.Unit,
			UnitPrice: body.UnitPrice,
			ExpiresAt: expires,
			Supplier:  body.Supplier,
		})
		if err != nil {
			return httpx.FromError(h.log, err, "could not receive lot")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "stock_lot",
			EntityID:        lot.ID,
			Action:          models.AuditActionCreate,
			Description:     fmt.Sprintf("lot received: %.3f %s", lot.Quantity, lot.Unit),
			After:           lot,
		})

		return c.Status(fiber.StatusCreated).JSON(lot)
	}
}

// GET /api/stock-lots?product_id=...&order=FIFO|LIFO
func (h *Handler) ListLots() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		productID := c.Query("product_id")
		if productID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "product_id is required")
		}
		order, err := ParseOrder(c.Query("order"))
		if err != nil {
			return httpx.FromError(h.log, err, "invalid order")
		}

		lots, err := h.svc.Lots(c.UserContext(), id.EstablishmentID, productID, order)
		if err != nil {
			return httpx.FromError(h.log, err, "could not list lots")
		}
		return c.JSON(lots)
	}
}

// GET /api/stock/current
func (h *Handler) Current() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		levels, err := h.svc.Levels(c.UserContext(), id.EstablishmentID)
		if err != nil {
			return httpx.FromError(h.log, err, "could not compute stock levels")
		}
		return c.JSON(levels)
	}
}

// GET /api/stock/low
func (h *Handler) Low() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		levels, err := h.svc.LowStock(c.UserContext(), id.EstablishmentID)
		if err != nil {
			return httpx.FromError(h.log, err, "could not compute low stock")
		}
		return c.JSON(levels)
	}
}

// GET /api/stock/expiring?days=3
func (h *Handler) Expiring() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		lots, err := h.svc.Expiring(c.UserContext(), id.EstablishmentID, h.now(), c.QueryInt("days", h.expiringDays))
		if err != nil {
			return httpx.FromError(h.log, err, "could not list expiring lots")
		}
		return c.JSON(lots)
	}
}
