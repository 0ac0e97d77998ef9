package middleware

import (
	"strings"

	"unimarket/utils"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName  = "unimarket_token"
	sessionKey  = "session"
	jwtLocalKey = "user"
)

// JWT verifies the session cookie and stores its metadata for Session.
func JWT(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: jwtware.HS512,
			Key:    []byte(secret),
		},
		TokenLookup: "cookie:" + CookieName,
		ContextKey:  jwtLocalKey,
		SuccessHandler: func(c *fiber.Ctx) error {
			token := c.Locals(jwtLocalKey).(*jwt.Token)
			meta, err := utils.ClaimsMetadata(token.Claims.(jwt.MapClaims))
			if err != nil {
				return unauthorized(c, "Invalid or expired session")
			}
			c.Locals(sessionKey, meta)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if strings.Contains(strings.ToLower(err.Error()), "missing or malformed") {
				return unauthorized(c, "Missing or malformed session")
			}
			return unauthorized(c, "Invalid or expired session")
		},
	})
}

// Session returns the metadata stored by JWT. Only call it behind that middleware.
func Session(c *fiber.Ctx) *utils.TokenMetadata {
	meta, _ := c.Locals(sessionKey).(*utils.TokenMetadata)
	return meta
}

func UserID(c *fiber.Ctx) uint {
	if meta := Session(c); meta != nil {
		return meta.UserID
	}
	return 0
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{
			"status":  "error",
			"message": message,
			"data":    nil,
		})
}
