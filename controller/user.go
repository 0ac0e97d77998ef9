package controller

import (
	"net/mail"
	"strings"
	"time"

	"unimarket/middleware"
	"unimarket/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const minimumAge = 18

type UserUpdateInput struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Bio            *string `json:"bio"`
	University     *string `json:"university"`
	BirthDate      *string `json:"birthDate"`
	ProfilePicture *string `json:"profilePicture"`
}

type User struct {
	users *store.UserStore
	now   func() time.Time
	log   *zap.SugaredLogger
}

func NewUser(users *store.UserStore, log *zap.SugaredLogger) *User {
	return &User{users: users, now: time.Now, log: log}
}

// age in whole years on the given day.
func age(birth, today time.Time) int {
	years := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		years--
	}
	return years
}

func parseBirthDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// Update changes the profile fields present in the body.
func (h *User) Update(c *fiber.Ctx) error {
	input := new(UserUpdateInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, fiber.StatusBadRequest, "Review your input")
	}

	user, err := h.users.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return failWith(c, h.log, err)
	}

	if input.BirthDate != nil && *input.BirthDate != "" {
		birth, err := parseBirthDate(*input.BirthDate)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid birth date")
		}
		if age(birth, h.now()) < minimumAge {
			return fail(c, fiber.StatusBadRequest, "You must be at least 18 years old")
		}
		user.BirthDate = &birth
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return fail(c, fiber.StatusBadRequest, "Name cannot be empty")
		}
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*input.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid email")
		}
		user.Email = email
	}
	if input.Bio != nil {
		user.Bio = *input.Bio
	}
	if input.University != nil {
		user.University = *input.University
	}
	if input.ProfilePicture != nil {
		user.ProfilePicture = *input.ProfilePicture
	}

	if err := h.users.Save(c.UserContext(), user); err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"user": user})
}
