package controller

import (
	"unimarket/middleware"
	"unimarket/model"
	"unimarket/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PushSubscribeInput struct {
	Subscription struct {
		Endpoint string         `json:"endpoint"`
		Keys     model.PushKeys `json:"keys"`
	} `json:"subscription"`
}

type PushUnsubscribeInput struct {
	Endpoint string `json:"endpoint"`
}

type Push struct {
	subscriptions *store.SubscriptionStore
	publicKey     string
	log           *zap.SugaredLogger
}

func NewPush(subscriptions *store.SubscriptionStore, publicKey string, log *zap.SugaredLogger) *Push {
	return &Push{subscriptions: subscriptions, publicKey: publicKey, log: log}
}

func (h *Push) Subscribe(c *fiber.Ctx) error {
	input := new(PushSubscribeInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid subscription data")
	}

	sub, created, err := h.subscriptions.Add(
		c.UserContext(),
		middleware.UserID(c),
		input.Subscription.Endpoint,
		input.Subscription.Keys,
	)
	if err != nil {
		return failWith(c, h.log, err)
	}

	message := "Subscription saved"
	if !created {
		message = "Subscription already exists"
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"message":      message,
		"subscription": sub,
	})
}

func (h *Push) Unsubscribe(c *fiber.Ctx) error {
	input := new(PushUnsubscribeInput)
	if err := c.BodyParser(input); err != nil || input.Endpoint == "" {
		return fail(c, fiber.StatusBadRequest, "endpoint is required")
	}

	if err := h.subscriptions.Remove(c.UserContext(), middleware.UserID(c), input.Endpoint); err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Push) PublicKey(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"publicKey": h.publicKey})
}
