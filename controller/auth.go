package controller

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"unimarket/apperror"
	"unimarket/database"
	"unimarket/event"
	"unimarket/mailer"
	"unimarket/middleware"
	"unimarket/model"
	"unimarket/store"
	"unimarket/utils"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	resetTokenPrefix = "reset:"
	resetTokenTTL    = time.Hour
)

type AuthRegisterInput struct {
	Email                string `json:"email"`
	Name                 string `json:"name"`
	Password             string `json:"password"`
	TermsAccepted        bool   `json:"termsAccepted"`
	CookiePolicyAccepted bool   `json:"cookiePolicyAccepted"`
}

type AuthLoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthPasswordInput struct {
	Password string `json:"password"`
}

type AuthForgotPasswordInput struct {
	Email string `json:"email"`
}

type AuthResetPasswordInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type AuthOtpVerifyInput struct {
	Token string `json:"token"`
}

type AuthOtpValidateInput struct {
	Token string `json:"token"`
}

type AuthOtpDisableInput struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

type AuthConfig struct {
	Secret       string
	TokenTTL     time.Duration
	SecureCookie bool
	OtpIssuer    string
	AppURL       string
	BcryptCost   int
}

type Auth struct {
	users    *store.UserStore
	enforcer casbin.IEnforcer
	redis    *redis.Client
	mailer   mailer.Mailer
	events   event.Publisher
	cfg      AuthConfig
	log      *zap.SugaredLogger
}

func NewAuth(
	users *store.UserStore,
	enforcer casbin.IEnforcer,
	redisClient *redis.Client,
	m mailer.Mailer,
	events event.Publisher,
	cfg AuthConfig,
	log *zap.SugaredLogger,
) *Auth {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Auth{
		users:    users,
		enforcer: enforcer,
		redis:    redisClient,
		mailer:   m,
		events:   events,
		cfg:      cfg,
		log:      log,
	}
}

func (h *Auth) setSession(c *fiber.Ctx, user *model.User, otp bool) error {
	token, err := utils.GenerateToken(h.cfg.Secret, h.cfg.TokenTTL, user.ID, user.Email, otp)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.TokenTTL.Seconds()),
		Secure:   h.cfg.SecureCookie,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (h *Auth) clearSession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   h.cfg.SecureCookie,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *Auth) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(user *model.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

func (h *Auth) Register(c *fiber.Ctx) error {
	input := new(AuthRegisterInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, fiber.StatusBadRequest, "Review your input")
	}

	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || strings.TrimSpace(input.Name) == "" || input.Password == "" {
		return fail(c, fiber.StatusBadRequest, "Email, name and password are required")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid email")
	}
	if !input.TermsAccepted || !input.CookiePolicyAccepted {
		return fail(c, fiber.StatusBadRequest, "Terms and cookie policy must be accepted")
	}

	// Generate hash from password.
	hash, err := h.hash(input.Password)
	if err != nil {
		return failWith(c, h.log, err)
	}

	// Generate OTP secret
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      h.cfg.OtpIssuer,
		AccountName: input.Email,
		SecretSize:  15,
	})
	if err != nil {
		return failWith(c, h.log, err)
	}

	now := time.Now()
	user := &model.User{
		Email:                  input.Email,
		Name:                   strings.TrimSpace(input.Name),
		Password:               hash,
		Role:                   database.RoleUser,
		OtpSecret:              key.Secret(),
		TermsAcceptedAt:        &now,
		CookiePolicyAcceptedAt: &now,
	}
	if err := h.users.Create(c.UserContext(), user); err != nil {
		return failWith(c, h.log, err)
	}

	// Add casbin policy
	if _, err := h.enforcer.AddGroupingPolicy(fmt.Sprint(user.ID), user.Role); err != nil {
		h.log.Errorw("failed to add role policy", "userId", user.ID, "err", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "user": user})
}

func (h *Auth) Login(c *fiber.Ctx) error {
	input := new(AuthLoginInput)
	if err := c.BodyParser(input); err != nil || input.Email == "" || input.Password == "" {
		return fail(c, fiber.StatusBadRequest, "Email and password are required")
	}

	user, err := h.users.GetByEmail(c.UserContext(), strings.TrimSpace(strings.ToLower(input.Email)))
	if err != nil && !apperror.IsCode(err, apperror.CodeNotFound) {
		return failWith(c, h.log, err)
	}
	if user == nil || !checkPassword(user, input.Password) {
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	if err := h.setSession(c, user, user.OtpEnabled); err != nil {
		return failWith(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user.Summary(),
		"2fa":     user.OtpEnabled,
	})
}

func (h *Auth) Logout(c *fiber.Ctx) error {
	h.clearSession(c)
	return c.JSON(fiber.Map{"success": true})
}

func (h *Auth) Me(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *Auth) DeleteAccount(c *fiber.Ctx) error {
	input := new(AuthPasswordInput)
	if err := c.BodyParser(input); err != nil || input.Password == "" {
		return fail(c, fiber.StatusBadRequest, "Password is required to delete the account")
	}

	userID := middleware.UserID(c)
	user, err := h.users.Get(c.UserContext(), userID)
	if err != nil {
		return failWith(c, h.log, err)
	}
	if !checkPassword(user, input.Password) {
		return fail(c, fiber.StatusUnauthorized, "Invalid password")
	}

	if err := h.users.Delete(c.UserContext(), userID); err != nil {
		return failWith(c, h.log, err)
	}
	if _, err := h.enforcer.DeleteUser(fmt.Sprint(userID)); err != nil {
		h.log.Warnw("failed to drop role policy", "userId", userID, "err", err)
	}
	if err := h.events.Publish(c.UserContext(), event.ActionUserDeleted, fiber.Map{"userId": userID}); err != nil {
		h.log.Warnw("failed to publish event", "action", event.ActionUserDeleted, "err", err)
	}

	h.clearSession(c)
	return c.JSON(fiber.Map{"success": true, "message": "Account deleted"})
}

func (h *Auth) ForgotPassword(c *fiber.Ctx) error {
	input := new(AuthForgotPasswordInput)
	if err := c.BodyParser(input); err != nil || input.Email == "" {
		return fail(c, fiber.StatusBadRequest, "Email is required")
	}
	sent := fiber.Map{"message": "If the email exists, a reset link has been sent."}

	email := strings.TrimSpace(strings.ToLower(input.Email))
	if _, err := h.users.GetByEmail(c.UserContext(), email); err != nil {
		if apperror.IsCode(err, apperror.CodeNotFound) {
			return c.JSON(sent)
		}
		return failWith(c, h.log, err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return failWith(c, h.log, err)
	}
	token := hex.EncodeToString(raw)

	if err := h.redis.Set(c.UserContext(), resetTokenPrefix+token, email, resetTokenTTL).Err(); err != nil {
		return failWith(c, h.log, err)
	}

	resetURL := fmt.Sprintf("%s/auth/reset-password?token=%s", strings.TrimRight(h.cfg.AppURL, "/"), token)
	if err := h.mailer.SendPasswordReset(c.UserContext(), email, resetURL); err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(sent)
}

func (h *Auth) ResetPassword(c *fiber.Ctx) error {
	input := new(AuthResetPasswordInput)
	if err := c.BodyParser(input); err != nil || input.Token == "" || input.Password == "" {
		return fail(c, fiber.StatusBadRequest, "Token and password are required")
	}

	email, err := h.redis.GetDel(c.UserContext(), resetTokenPrefix+input.Token).Result()
	if err == redis.Nil {
		return fail(c, fiber.StatusBadRequest, "Invalid or expired token")
	}
	if err != nil {
		return failWith(c, h.log, err)
	}

	hash, err := h.hash(input.Password)
	if err != nil {
		return failWith(c, h.log, err)
	}
	if err := h.users.UpdatePasswordByEmail(c.UserContext(), email, hash); err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}

func (h *Auth) OtpSecret(c *fiber.Ctx) error {
	input := new(AuthPasswordInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, fiber.StatusBadRequest, "Review your input")
	}

	user, err := h.users.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return failWith(c, h.log, err)
	}
	if !checkPassword(user, input.Password) {
		return fail(c, fiber.StatusUnauthorized, "Invalid password")
	}

	return c.JSON(fiber.Map{
		"secret": user.OtpSecret,
		"url": fmt.Sprintf("otpauth://totp/%s:%s?algorithm=SHA1&digits=6&issuer=%s&period=30&secret=%s",
			h.cfg.OtpIssuer,
			user.Email,
			h.cfg.OtpIssuer,
			user.OtpSecret,
		),
	})
}

func (h *Auth) OtpVerify(c *fiber.Ctx) error {
	input := new(AuthOtpVerifyInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, fiber.StatusBadRequest, "Review your input")
	}

	user, err := h.users.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return failWith(c, h.log, err)
	}
	if user.OtpEnabled {
		return fail(c, fiber.StatusConflict, "Verification has already been performed earlier")
	}
	if !totp.Validate(input.Token, user.OtpSecret) {
		return fail(c, fiber.StatusBadRequest, "Invalid token")
	}

	user.OtpEnabled = true
	if err := h.users.Save(c.UserContext(), user); err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// OtpValidate exchanges a pending 2FA session for a full one.
func (h *Auth) OtpValidate(c *fiber.Ctx) error {
	input := new(AuthOtpValidateInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, fiber.StatusBadRequest, "Review your input")
	}

	user, err := h.users.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return failWith(c, h.log, err)
	}
	if !user.OtpEnabled {
		return fail(c, fiber.StatusBadRequest, "2FA has been disabled")
	}
	if !totp.Validate(input.Token, user.OtpSecret) {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	if err := h.setSession(c, user, false); err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user.Summary()})
}

func (h *Auth) OtpDisable(c *fiber.Ctx) error {
	input := new(AuthOtpDisableInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, fiber.StatusBadRequest, "Review your input")
	}

	user, err := h.users.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return failWith(c, h.log, err)
	}
	if !user.OtpEnabled {
		return fail(c, fiber.StatusBadRequest, "2FA not enabled")
	}
	if !checkPassword(user, input.Password) {
		return fail(c, fiber.StatusUnauthorized, "Invalid password")
	}
	if !totp.Validate(input.Token, user.OtpSecret) {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	user.OtpEnabled = false
	if err := h.users.Save(c.UserContext(), user); err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
