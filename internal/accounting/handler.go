package accounting

import (
	"fmt"
	"strings"

	"stockguard/internal/audit"
	"stockguard/internal/auth"
	"stockguard/internal/httpx"
	"stockguard/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ChecklistRequest struct {
	Items map[string]bool `json:"items"`
}

type Handler struct {
	svc   *Service
	audit *audit.Service
	log   *zap.Logger
}

func NewHandler(svc *Service, auditSvc *audit.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, audit: auditSvc, log: log}
}

// Register mounts the accounting routes. The router is expected to be manager-only.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/accounting/quarters/:year/:quarter", h.Quarter())
	r.Put("/accounting/quarters/:year/:quarter/checklist", h.Checklist())
	r.Get("/accounting/quarters/:year/:quarter/export", h.Export())
	r.Get("/accounting/thresholds/:year", h.Thresholds())
}

func period(c *fiber.Ctx) (year, quarter int, err error) {
	if year, err = httpx.IntParam(c, "year"); err != nil {
		return
	}
	quarter, err = httpx.IntParam(c, "quarter")
	return
}

// GET /api/accounting/quarters/:year/:quarter
func (h *Handler) Quarter() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		year, quarter, err := period(c)
		if err != nil {
			return err
		}
		syn, err := h.svc.Quarter(c.UserContext(), id.EstablishmentID, year, quarter)
		if err != nil {
			return httpx.FromError(h.log, err, "could not compute quarter")
		}
		return c.JSON(syn)
	}
}

// GET /api/accounting/thresholds/:year
func (h *Handler) Thresholds() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		year, err := httpx.IntParam(c, "year")
		if err != nil {
			return err
		}
		report, err := h.svc.Thresholds(c.UserContext(), id.EstablishmentID, year)
		if err != nil {
			return httpx.FromError(h.log, err, "could not compute thresholds")
		}
		return c.JSON(report)
	}
}

// PUT /api/accounting/quarters/:year/:quarter/checklist
func (h *Handler) Checklist() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		year, quarter, err := period(c)
		if err != nil {
			return err
		}
		var body ChecklistRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		items, err := h.svc.SetChecklist(c.UserContext(), id.EstablishmentID, id.UserID, year, quarter, body.Items)
		if err != nil {
			return httpx.FromError(h.log, err, "could not update checklist")
		}

		keys := make([]string, 0, len(body.Items))
		for _, k := range ChecklistKeys {
			if v, ok := body.Items[k]; ok {
				keys = append(keys, fmt.Sprintf("%s=%t", k, v))
			}
		}
		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "checklist",
			EntityID:        fmt.Sprintf("%d-Q%d", year, quarter),
			Action:          models.AuditActionUpdate,
			Description:     "checklist: " + strings.Join(keys, ", "),
			After:           items,
		})
		return c.JSON(items)
	}
}

// GET /api/accounting/quarters/:year/:quarter/export
func (h *Handler) Export() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		year, quarter, err := period(c)
		if err != nil {
			return err
		}
		data, filename, err := h.svc.Export(c.UserContext(), id.EstablishmentID, id.UserID, year, quarter)
		if err != nil {
			return httpx.FromError(h.log, err, "could not export quarter")
		}

		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
		return c.Send(data)
	}
}
