package router

import (
	"unimarket/controller"
	"unimarket/metrics"
	"unimarket/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

type Deps struct {
	Secret   string
	Enforcer casbin.IEnforcer
	Metrics  *metrics.Metrics

	// Limiters are optional; nil disables the limit.
	MessageLimiter *middleware.RateLimiter
	LoginLimiter   *middleware.RateLimiter

	Auth      *controller.Auth
	User      *controller.User
	Messenger *controller.Messenger
	Push      *controller.Push
	Product   *controller.Product
}

func passThrough(c *fiber.Ctx) error { return c.Next() }

func limit(l *middleware.RateLimiter, key func(*fiber.Ctx) string) fiber.Handler {
	if l == nil {
		return passThrough
	}
	return l.MiddlewareByKey(key)
}

func Rest(app *fiber.App, d Deps) {
	if d.Metrics != nil {
		app.Get("/metrics", d.Metrics.Handler())
	}

	api := app.Group("/api", logger.New())

	session := middleware.JWT(d.Secret)
	authed := []fiber.Handler{session, middleware.OTP()}

	// Auth
	auth := api.Group("/auth")
	auth.Post("/register", d.Auth.Register)
	auth.Post("/login", limit(d.LoginLimiter, middleware.ByIP), d.Auth.Login)
	auth.Post("/logout", d.Auth.Logout)
	auth.Post("/forgot-password", limit(d.LoginLimiter, middleware.ByIP), d.Auth.ForgotPassword)
	auth.Post("/reset-password", d.Auth.ResetPassword)
	auth.Get("/me", append(authed, d.Auth.Me)...)
	auth.Post("/delete-account", append(authed, d.Auth.DeleteAccount)...)
	auth.Post("/2fa/secret", append(authed, d.Auth.OtpSecret)...)
	auth.Post("/2fa/verify", append(authed, d.Auth.OtpVerify)...)
	auth.Post("/2fa/validate", session, d.Auth.OtpValidate)
	auth.Post("/2fa/disable", append(authed, d.Auth.OtpDisable)...)

	// User
	api.Patch("/user", append(authed, d.User.Update)...)

	// Listings
	api.Get("/categories", d.Product.Categories)
	api.Get("/products", d.Product.List)
	api.Get("/products/:id", d.Product.Get)
	api.Post("/products", append(authed, d.Product.Create)...)
	api.Patch("/products/:id", append(authed, d.Product.Update)...)
	api.Delete("/products/:id", append(authed, d.Product.Delete)...)

	// Messenger
	api.Get("/conversations", append(authed, d.Messenger.Conversations)...)
	api.Post("/conversations", append(authed, d.Messenger.ConversationCreate)...)
	api.Get("/conversations/:id/messages", append(authed, d.Messenger.Messages)...)
	api.Post("/conversations/:id/messages", append(authed, limit(d.MessageLimiter, middleware.ByUser), d.Messenger.MessageCreate)...)
	api.Patch("/conversations/:id/read", append(authed, d.Messenger.ConversationRead)...)
	api.Get("/unread-count", append(authed, d.Messenger.UnreadCount)...)

	// Push
	push := api.Group("/push")
	push.Get("/public-key", d.Push.PublicKey)
	push.Post("/subscribe", append(authed, d.Push.Subscribe)...)
	push.Delete("/unsubscribe", append(authed, d.Push.Unsubscribe)...)

	// Admin
	admin := api.Group("/admin", session, middleware.OTP(), middleware.RBAC(d.Enforcer))
	admin.Post("/categories", d.Product.CategoryCreate)
}
