package controller

import (
	"errors"
	"strconv"

	"unimarket/apperror"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    nil,
	})
}

// failWith answers with the status of err. Server side errors are logged and hidden
// behind a generic message.
func failWith(c *fiber.Ctx, log *zap.SugaredLogger, err error) error {
	status := apperror.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "err", err)
		return fail(c, status, "Internal server error")
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return fail(c, status, appErr.Message)
	}
	return fail(c, status, err.Error())
}

// paramID reads a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.InvalidArg("invalid " + name)
	}
	return uint(id), nil
}
