package waste

import (
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

type CreateWasteEntryRequest struct {
	Date      string  `json:"date"` // "2025-12-09", defaults to today
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	Note      string  `json:"note"` // who or what caused the loss, at least 3 characters
}

type WasteEntryResponse struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	UserID      string            `json:"user_id"`
	Date        string            `json:"date"`
	Quantity    float64           `json:"quantity"`
	Unit        string            `json:"unit"`
	Note        string            `json:"note"`
	CreatedAt   string            `json:"created_at"`
	Shortfalls  []stock.Shortfall `json:"shortfalls,omitempty"`
	Warning     string            `json:"warning,omitempty"`
}

// toResponse renders the entry date as a calendar day in loc.
func toResponse(e *models.WasteEntry, loc *time.Location) WasteEntryResponse {
	res := WasteEntryResponse{
		ID:        e.ID,
		ProductID: e.ProductID,
		UserID:    e.UserID,
		Date:      e.Date.In(loc).Format(httpx.DateLayout),
		Quantity:  e.Quantity,
		Unit:      e.Unit,
		Note:      e.Note,
		CreatedAt: e.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if e.Product != nil {
		res.ProductName = e.Product.Name
	}
	return res
}

type Handler struct {
	svc   *Service
	audit *audit.Service
	log   *zap.Logger
	loc   *time.Location // calendar days of entry dates and list filters
	now   func() time.Time
}

func NewHandler(svc *Service, auditSvc *audit.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, audit: auditSvc, log: log, loc: time.Local, now: time.Now}
}

func (h *Handler) Register(r fiber.Router) {
	r.Post("/waste-entries", h.Create())
	r.Get("/waste-entries", h.List())
	r.Get("/waste-entries/:id", h.Get())
	r.Delete("/waste-entries/:id", h.Delete())
}

// POST /api/waste-entries
func (h *Handler) Create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		var body CreateWasteEntryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.ProductID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "product_id is required")
		}
		y, m, d := h.now().In(h.loc).Date()
		date, err := httpx.ParseDate(body.Date, time.Date(y, m, d, 0, 0, 0, 0, h.loc), h.loc)
		if err != nil {
			return err
		}

		out, err := h.svc.Create(c.UserContext(), id.EstablishmentID, id.UserID, Input{
			ProductID: body.ProductID,
			Quantity:  body.Quantity,
			Unit:      body.Unit,
			Note:      body.Note,
			Date:      date,
		})
		if err != nil {
			return httpx.FromError(h.log, err, "could not create waste entry")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "waste_entry",
			EntityID:        out.Entry.ID,
			Action:          models.AuditActionCreate,
			Description:     fmt.Sprintf("waste: %s - %.2f %s (note: %s)", out.Entry.Product.Name, out.Entry.Quantity, out.Entry.Unit, out.Entry.Note),
			After:           out.Entry,
		})

		res := toResponse(out.Entry, h.loc)
		res.Shortfalls = out.Shortfalls
		if out.StockError != nil {
			res.Warning = "waste recorded but stock could not be updated"
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/waste-entries?date_from=2025-01-01&date_to=2025-01-31
func (h *Handler) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		from, to, err := httpx.QueryDateRange(c, h.loc)
		if err != nil {
			return err
		}
		entries, err := h.svc.List(c.UserContext(), id.EstablishmentID, from, to)
		if err != nil {
			return httpx.FromError(h.log, err, "could not list waste entries")
		}
		res := make([]WasteEntryResponse, 0, len(entries))
		for i := range entries {
			res = append(res, toResponse(&entries[i], h.loc))
		}
		return c.JSON(res)
	}
}

// GET /api/waste-entries/:id
func (h *Handler) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		e, err := h.svc.Get(c.UserContext(), id.EstablishmentID, c.Params("id"))
		if err != nil {
			return httpx.FromError(h.log, err, "could not load waste entry")
		}
		return c.JSON(toResponse(e, h.loc))
	}
}

// DELETE /api/waste-entries/:id
func (h *Handler) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		out, err := h.svc.Delete(c.UserContext(), id.EstablishmentID, c.Params("id"))
		if err != nil {
			return httpx.FromError(h.log, err, "could not delete waste entry")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "waste_entry",
			EntityID:        out.Entry.ID,
			Action:          models.AuditActionDelete,
			Description:     fmt.Sprintf("waste deleted: %.2f %s", out.Entry.Quantity, out.Entry.Unit),
			Before:          out.Entry,
		})

		if out.StockError != nil {
			return c.JSON(fiber.Map{"message": "waste entry deleted", "warning": "stock could not be restored"})
		}
		return c.JSON(fiber.Map{"message": "waste entry deleted"})
	}
}
