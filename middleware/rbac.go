package middleware

import (
	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
)

func RBAC(enforcer casbin.IEnforcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		meta := Session(c)
		if meta == nil {
			return unauthorized(c, "Missing or malformed session")
		}

		// Casbin enforces policy
		accepted, err := enforcer.Enforce(meta.Subject(), c.Path(), c.Method())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Internal server error",
				"data":    nil,
			})
		}

		if !accepted {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Forbidden",
				"data":    nil,
			})
		}

		return c.Next()
	}
}
