package auth

import "github.com/gofiber/fiber/v2"

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := CurrentIdentity(c)
		if err != nil {
			return err
		}
		return c.JSON(id)
	}
}
