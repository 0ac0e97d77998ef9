package controller

import (
	"unimarket/apperror"
	"unimarket/middleware"
	"unimarket/model"
	"unimarket/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ConversationCreateInput struct {
	OtherUserID uint `json:"otherUserId"`
}

type MessageCreateInput struct {
	Content string `json:"content"`
}

type Messenger struct {
	messenger *service.Messenger
	log       *zap.SugaredLogger
}

func NewMessenger(messenger *service.Messenger, log *zap.SugaredLogger) *Messenger {
	return &Messenger{messenger: messenger, log: log}
}

func (h *Messenger) Conversations(c *fiber.Ctx) error {
	conversations, err := h.messenger.ListConversations(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return failWith(c, h.log, err)
	}

	views := make([]model.ConversationView, 0, len(conversations))
	for _, conv := range conversations {
		views = append(views, conv.View(conv.LastMessage))
	}
	return c.JSON(views)
}

func (h *Messenger) ConversationCreate(c *fiber.Ctx) error {
	input := new(ConversationCreateInput)
	if err := c.BodyParser(input); err != nil || input.OtherUserID == 0 {
		return fail(c, fiber.StatusBadRequest, "otherUserId is required")
	}

	conv, err := h.messenger.StartConversation(c.UserContext(), middleware.UserID(c), input.OtherUserID)
	if err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(conv.View(nil))
}

func (h *Messenger) Messages(c *fiber.Ctx) error {
	conversationID, err := paramID(c, "id")
	if err != nil {
		return failWith(c, h.log, err)
	}

	messages, err := h.messenger.ListMessages(c.UserContext(), conversationID, middleware.UserID(c))
	if err != nil {
		return failWith(c, h.log, err)
	}

	views := make([]model.MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, msg.View())
	}
	return c.JSON(views)
}

func (h *Messenger) MessageCreate(c *fiber.Ctx) error {
	conversationID, err := paramID(c, "id")
	if err != nil {
		return failWith(c, h.log, err)
	}

	input := new(MessageCreateInput)
	if err := c.BodyParser(input); err != nil {
		return failWith(c, h.log, apperror.InvalidArg("message content is required"))
	}

	msg, err := h.messenger.SendMessage(c.UserContext(), conversationID, middleware.UserID(c), input.Content)
	if err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(msg.View())
}

func (h *Messenger) ConversationRead(c *fiber.Ctx) error {
	conversationID, err := paramID(c, "id")
	if err != nil {
		return failWith(c, h.log, err)
	}

	if err := h.messenger.MarkConversationRead(c.UserContext(), conversationID, middleware.UserID(c)); err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Messenger) UnreadCount(c *fiber.Ctx) error {
	count, err := h.messenger.UnreadCount(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"unreadCount": count})
}
