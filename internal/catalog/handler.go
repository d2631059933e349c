package catalog

import (
	"fmt"

	"stockguard/internal/audit"
	"stockguard/internal/auth"
	"stockguard/internal/httpx"
	"stockguard/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	svc   *Service
	audit *audit.Service
	log   *zap.Logger
}

func NewHandler(svc *Service, auditSvc *audit.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, audit: auditSvc, log: log}
}

// Register mounts the catalog routes. Reads are open to every member, writes to managers.
func (h *Handler) Register(r fiber.Router) {
	manager := auth.RequireRole(models.RoleManager)

	r.Get("/products", h.ListProducts())
	r.Get("/products/:id", h.GetProduct())
	r.Post("/products", manager, h.CreateProduct())
	r.Put("/products/:id", manager, h.UpdateProduct())
	r.Delete("/products/:id", manager, h.DeactivateProduct())

	r.Get("/menu-items", h.ListMenuItems())
	r.Get("/menu-items/:id", h.GetMenuItem())
	r.Post("/menu-items", manager, h.CreateMenuItem())
	r.Put("/menu-items/:id", manager, h.UpdateMenuItem())
	r.Delete("/menu-items/:id", manager, h.DeactivateMenuItem())
}

// GET /api/products?all=1
func (h *Handler) ListProducts() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		products, err := h.svc.ListProducts(c.UserContext(), id.EstablishmentID, c.QueryBool("all"))
		if err != nil {
			return httpx.FromError(h.log, err, "could not list products")
		}
		return c.JSON(products)
	}
}

// GET /api/products/:id
func (h *Handler) GetProduct() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		p, err := h.svc.GetProduct(c.UserContext(), id.EstablishmentID, c.Params("id"))
		if err != nil {
			return httpx.FromError(h.log, err, "could not load product")
		}
		return c.JSON(p)
	}
}

// POST /api/products
func (h *Handler) CreateProduct() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		var body ProductInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		p, err := h.svc.CreateProduct(c.UserContext(), id.EstablishmentID, body)
		if err != nil {
			return httpx.FromError(h.log, err, "could not create product")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "product",
			EntityID:        p.ID,
			Action:          models.AuditActionCreate,
			Description:     fmt.Sprintf("product created: %s (%s)", p.Name, p.Unit),
			After:           p,
		})
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// PUT /api/products/:id
func (h *Handler) UpdateProduct() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		var body ProductInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		before, after, err := h.svc.UpdateProduct(c.UserContext(), id.EstablishmentID, c.Params("id"), body)
		if err != nil {
			return httpx.FromError(h.log, err, "could not update product")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "product",
			EntityID:        after.ID,
			Action:          models.AuditActionUpdate,
			Description:     "product updated: " + after.Name,
			Before:          before,
			After:           after,
		})
		return c.JSON(after)
	}
}

// DELETE /api/products/:id
func (h *Handler) DeactivateProduct() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		p, err := h.svc.DeactivateProduct(c.UserContext(), id.EstablishmentID, c.Params("id"))
		if err != nil {
			return httpx.FromError(h.log, err, "could not deactivate product")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "product",
			EntityID:        p.ID,
			Action:          models.AuditActionDelete,
			Description:     "product deactivated: " + p.Name,
			Before:          p,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/menu-items?all=1
func (h *Handler) ListMenuItems() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		items, err := h.svc.ListMenuItems(c.UserContext(), id.EstablishmentID, c.QueryBool("all"))
		if err != nil {
			return httpx.FromError(h.log, err, "could not list menu items")
		}
		return c.JSON(items)
	}
}

// GET /api/menu-items/:id
func (h *Handler) GetMenuItem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		item, err := h.svc.GetMenuItem(c.UserContext(), id.EstablishmentID, c.Params("id"))
		if err != nil {
			return httpx.FromError(h.log, err, "could not load menu item")
		}
		return c.JSON(item)
	}
}

// POST /api/menu-items
func (h *Handler) CreateMenuItem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		var body MenuItemInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		item, err := h.svc.CreateMenuItem(c.UserContext(), id.EstablishmentID, body)
		if err != nil {
			return httpx.FromError(h.log, err, "could not create menu item")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "menu_item",
			EntityID:        item.ID,
			Action:          models.AuditActionCreate,
			Description:     fmt.Sprintf("menu item created: %s at %s", item.Name, item.Price.StringFixed(2)),
			After:           item,
		})
		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// PUT /api/menu-items/:id
func (h *Handler) UpdateMenuItem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		var body MenuItemInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		before, after, err := h.svc.UpdateMenuItem(c.UserContext(), id.EstablishmentID, c.Params("id"), body)
		if err != nil {
			return httpx.FromError(h.log, err, "could not update menu item")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "menu_item",
			EntityID:        after.ID,
			Action:          models.AuditActionUpdate,
			Description:     "menu item updated: " + after.Name,
			Before:          before,
			After:           after,
		})
		return c.JSON(after)
	}
}

// DELETE /api/menu-items/:id
func (h *Handler) DeactivateMenuItem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		item, err := h.svc.DeactivateMenuItem(c.UserContext(), id.EstablishmentID, c.Params("id"))
		if err != nil {
			return httpx.FromError(h.log, err, "could not deactivate menu item")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "menu_item",
			EntityID:        item.ID,
			Action:          models.AuditActionDelete,
			Description:     "menu item deactivated: " + item.Name,
			Before:          item,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}
