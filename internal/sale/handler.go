package sale

import (
	"errors"
	"fmt"
	"time"

	"stockguard/internal/audit"
	"stockguard/internal/auth"
	"stockguard/internal/httpx"
	"stockguard/internal/models"
	"stockguard/internal/stock"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type RecordSaleRequest struct {
	MenuItemID string  `json:"menu_item_id"`
	Quantity   float64 `json:"quantity"`
}

// Result is the body of every sale mutation.
type Result struct {
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Warning    string            `json:"warning,omitempty"`
	Sale       *models.Sale      `json:"sale,omitempty"`
	Shortfalls []stock.Shortfall `json:"shortfalls,omitempty"`
}

type Handler struct {
	ledger  *Ledger
	reports *Reports
	audit   *audit.Service
	log     *zap.Logger
}

func NewHandler(ledger *Ledger, reports *Reports, auditSvc *audit.Service, log *zap.Logger) *Handler {
	return &Handler{ledger: ledger, reports: reports, audit: auditSvc, log: log}
}

func (h *Handler) Register(r fiber.Router) {
	r.Post("/sales", h.Record())
	r.Get("/sales", h.List())
	r.Get("/sales/totals", h.Totals())
	r.Get("/sales/daily", h.Daily())
	r.Delete("/sales/:id", h.Delete())
}

// failure renders a failed mutation as {"success": false, "error": ...} with the mapped status.
func (h *Handler) failure(c *fiber.Ctx, err error, msg string, shortfalls []stock.Shortfall) error {
	status := fiber.StatusInternalServerError
	text := msg
	var fe *fiber.Error
	if errors.As(httpx.FromError(h.log, err, msg), &fe) {
		status, text = fe.Code, fe.Message
	}
	return c.Status(status).JSON(Result{Success: false, Error: text, Shortfalls: shortfalls})
}

// POST /api/sales
func (h *Handler) Record() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		var body RecordSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(Result{Error: "invalid request body"})
		}
		if body.MenuItemID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(Result{Error: "menu_item_id is required"})
		}

		receipt, err := h.ledger.RecordSale(c.UserContext(), Seller{EstablishmentID: id.EstablishmentID, UserID: id.UserID}, body.MenuItemID, body.Quantity)
		if err != nil {
			var shortfalls []stock.Shortfall
			if receipt != nil {
				shortfalls = receipt.Shortfalls
			}
			return h.failure(c, err, "could not record sale", shortfalls)
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "sale",
			EntityID:        receipt.Sale.ID,
			Action:          models.AuditActionCreate,
			Description:     fmt.Sprintf("sale recorded: %g x %s", receipt.Sale.Quantity, receipt.Sale.MenuItemID),
			After:           receipt.Sale,
		})

		res := Result{Success: true, Sale: receipt.Sale, Shortfalls: receipt.Shortfalls}
		if receipt.StockError != nil {
			res.Warning = "sale recorded but stock could not be updated"
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// DELETE /api/sales/:id
func (h *Handler) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}

		d, err := h.ledger.DeleteSale(c.UserContext(), id.EstablishmentID, c.Params("id"))
		if err != nil {
			return h.failure(c, err, "could not delete sale", nil)
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "sale",
			EntityID:        d.Sale.ID,
			Action:          models.AuditActionDelete,
			Description:     fmt.Sprintf("sale deleted: %g x %s", d.Sale.Quantity, d.Sale.MenuItemID),
			Before:          d.Sale,
		})

		res := Result{Success: true}
		if d.StockError != nil {
			res.Warning = "sale deleted but stock could not be restored"
		}
		return c.JSON(res)
	}
}

// GET /api/sales?date_from=2025-01-01&date_to=2025-01-31
func (h *Handler) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		from, to, err := httpx.QueryDateRange(c, h.reports.loc)
		if err != nil {
			return err
		}
		sales, err := h.ledger.Sales(c.UserContext(), id.EstablishmentID, from, to)
		if err != nil {
			return httpx.FromError(h.log, err, "could not list sales")
		}
		return c.JSON(sales)
	}
}

// GET /api/sales/totals
func (h *Handler) Totals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		totals, err := h.reports.Totals(c.UserContext(), id.EstablishmentID)
		if err != nil {
			return httpx.FromError(h.log, err, "could not compute sales totals")
		}
		return c.JSON(totals)
	}
}

// GET /api/sales/daily?date_from=2025-01-01&date_to=2025-01-31
// Defaults to the last 7 days.
func (h *Handler) Daily() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		now := h.reports.now().In(h.reports.loc)
		from, err := httpx.ParseDate(c.Query("date_from"), now.AddDate(0, 0, -6), h.reports.loc)
		if err != nil {
			return err
		}
		to, err := httpx.ParseDate(c.Query("date_to"), now, h.reports.loc)
		if err != nil {
			return err
		}
		if to.Sub(from) > 366*24*time.Hour {
			return fiber.NewError(fiber.StatusBadRequest, "date range must not exceed one year")
		}

		days, err := h.reports.Daily(c.UserContext(), id.EstablishmentID, from, to.AddDate(0, 0, 1))
		if err != nil {
			return httpx.FromError(h.log, err, "could not compute daily sales")
		}
		return c.JSON(days)
	}
}
