package auth

import (
	"fmt"
	"strings"

	"stockguard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserIDKey          = "user_id"
	CtxUserRoleKey        = "user_role"
	CtxEstablishmentIDKey = "establishment_id"
)

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || claims.UserID == "" || claims.EstablishmentID == "" || !claims.Role.Valid() {
			return fiber.NewError(fiber.StatusUnauthorized, "token is missing identity claims")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxEstablishmentIDKey, claims.EstablishmentID)

		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.Role)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "role is missing")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "not allowed for this role")
	}
}

// CurrentIdentity reads what JWTMiddleware stored on the request.
func CurrentIdentity(c *fiber.Ctx) (Identity, error) {
	userID, _ := c.Locals(CtxUserIDKey).(string)
	estID, _ := c.Locals(CtxEstablishmentIDKey).(string)
	role, _ := c.Locals(CtxUserRoleKey).(models.Role)
	if userID == "" || estID == "" {
		return Identity{}, fiber.NewError(fiber.StatusForbidden, "establishment is missing")
	}
	return Identity{UserID: userID, EstablishmentID: estID, Role: role}, nil
}

// WithIdentity stores a fixed identity on every request. Used for internal callers and tests.
func WithIdentity(id Identity) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(CtxUserIDKey, id.UserID)
		c.Locals(CtxUserRoleKey, id.Role)
		c.Locals(CtxEstablishmentIDKey, id.EstablishmentID)
		return c.Next()
	}
}
