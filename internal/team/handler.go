// Package team manages the members of an establishment. Credentials are handled by the identity provider.
package team

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"stockguard/internal/audit"
	"stockguard/internal/auth"
	"stockguard/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MemberResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	Active    bool        `json:"active"`
	CreatedAt string      `json:"created_at"`
}

type CreateMemberRequest struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type UpdateMemberRequest struct {
	Name *string      `json:"name"`
	Role *models.Role `json:"role"`
}

func toResponse(m models.Member) MemberResponse {
	return MemberResponse{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Role:      m.Role,
		Active:    m.Active,
		CreatedAt: m.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

type Handler struct {
	db    *gorm.DB
	audit *audit.Service
	log   *zap.Logger
}

func NewHandler(db *gorm.DB, auditSvc *audit.Service, log *zap.Logger) *Handler {
	return &Handler{db: db, audit: auditSvc, log: log}
}

// Register mounts the member routes. The router is expected to be manager-only.
func (h *Handler) Register(r fiber.Router) {
	r.Post("/team", h.Create())
	r.Get("/team", h.List())
	r.Put("/team/:id", h.Update())
	r.Delete("/team/:id", h.Deactivate())
}

func (h *Handler) find(c *fiber.Ctx, establishmentID string) (*models.Member, error) {
	var m models.Member
	err := h.db.WithContext(c.UserContext()).
		Where("id = ? AND establishment_id = ?", c.Params("id"), establishmentID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "member not found")
	}
	if err != nil {
		h.log.Error("load member", zap.Error(err))
		return nil, fiber.NewError(fiber.StatusInternalServerError, "could not load member")
	}
	return &m, nil
}

// POST /api/team
func (h *Handler) Create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		var body CreateMemberRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}
		if _, err := mail.ParseAddress(body.Email); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "email is invalid")
		}
		if body.Role == "" {
			body.Role = models.RoleEmployee
		}
		if !body.Role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "role must be manager or employee")
		}

		var count int64
		if err := h.db.WithContext(c.UserContext()).Model(&models.Member{}).
			Where("establishment_id = ? AND email = ?", id.EstablishmentID, body.Email).
			Count(&count).Error; err != nil {
			h.log.Error("check member email", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not create member")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "a member with this email already exists")
		}

		m := models.Member{
			EstablishmentID: id.EstablishmentID,
			Name:            body.Name,
			Email:           body.Email,
			Role:            body.Role,
			Active:          true,
		}
		if err := h.db.WithContext(c.UserContext()).Create(&m).Error; err != nil {
			h.log.Error("create member", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not create member")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "member",
			EntityID:        m.ID,
			Action:          models.AuditActionCreate,
			Description:     fmt.Sprintf("member added: %s (%s)", m.Name, m.Role),
			After:           m,
		})
		return c.Status(fiber.StatusCreated).JSON(toResponse(m))
	}
}

// GET /api/team
func (h *Handler) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		var members []models.Member
		if err := h.db.WithContext(c.UserContext()).
			Where("establishment_id = ?", id.EstablishmentID).
			Order("active DESC, name ASC").
			Find(&members).Error; err != nil {
			h.log.Error("list members", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not list members")
		}

		res := make([]MemberResponse, 0, len(members))
		for _, m := range members {
			res = append(res, toResponse(m))
		}
		return c.JSON(res)
	}
}

// PUT /api/team/:id
func (h *Handler) Update() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		var body UpdateMemberRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		m, err := h.find(c, id.EstablishmentID)
		if err != nil {
			return err
		}
		before := *m

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name cannot be empty")
			}
			m.Name = name
		}
		if body.Role != nil {
			if !body.Role.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "role must be manager or employee")
			}
			if m.ID == id.UserID && *body.Role != models.RoleManager {
				return fiber.NewError(fiber.StatusConflict, "you cannot remove your own manager role")
			}
			m.Role = *body.Role
		}

		if err := h.db.WithContext(c.UserContext()).Save(m).Error; err != nil {
			h.log.Error("update member", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not update member")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "member",
			EntityID:        m.ID,
			Action:          models.AuditActionUpdate,
			Description:     fmt.Sprintf("member updated: %s (%s)", m.Name, m.Role),
			Before:          before,
			After:           m,
		})
		return c.JSON(toResponse(*m))
	}
}

// DELETE /api/team/:id
func (h *Handler) Deactivate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		m, err := h.find(c, id.EstablishmentID)
		if err != nil {
			return err
		}
		if m.ID == id.UserID {
			return fiber.NewError(fiber.StatusConflict, "you cannot deactivate yourself")
		}

		if err := h.db.WithContext(c.UserContext()).Model(m).Update("active", false).Error; err != nil {
			h.log.Error("deactivate member", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not deactivate member")
		}

		h.audit.Record(c.UserContext(), audit.LogOptions{
			EstablishmentID: id.EstablishmentID,
			UserID:          id.UserID,
			EntityType:      "member",
			EntityID:        m.ID,
			Action:          models.AuditActionDelete,
			Description:     "member deactivated: " + m.Name,
			Before:          m,
		})
		return c.JSON(fiber.Map{"message": "member deactivated"})
	}
}
