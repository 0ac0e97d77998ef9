package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// OTP rejects sessions still waiting for their 2FA code.
func OTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		meta := Session(c)
		if meta == nil || meta.Otp {
			return unauthorized(c, "2FA required")
		}

		return c.Next()
	}
}
