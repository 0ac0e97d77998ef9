package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"unimarket/middleware"
	"unimarket/model"

	"github.com/gofiber/fiber/v2"
)

// Source is what the views poll.
type Source interface {
	Conversations(ctx context.Context) ([]model.ConversationView, error)
	Messages(ctx context.Context, conversationID uint) ([]model.MessageView, error)
	MarkRead(ctx context.Context, conversationID uint) error
}

// Client talks to the messaging API with a session token.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
}

func NewClient(baseURL, token string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, timeout: 10 * time.Second}
}

// StatusError is a non 2xx answer from the API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unimarket api: status %d: %s", e.Status, e.Message)
}

// do sends the request built by a. The agent is released by Bytes.
func (c *Client) do(ctx context.Context, a *fiber.Agent, out any) error {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(a)
		return err
	}

	code, body, errs := a.Cookie(middleware.CookieName, c.token).Timeout(c.timeout).Bytes()
	if len(errs) > 0 {
		return errs[0]
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &failure)
		return &StatusError{Status: code, Message: failure.Message}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *Client) Conversations(ctx context.Context) ([]model.ConversationView, error) {
	var out []model.ConversationView
	if err := c.do(ctx, fiber.Get(c.baseURL+"/api/conversations"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Messages(ctx context.Context, conversationID uint) ([]model.MessageView, error) {
	var out []model.MessageView
	url := fmt.Sprintf("%s/api/conversations/%d/messages", c.baseURL, conversationID)
	if err := c.do(ctx, fiber.Get(url), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarkRead(ctx context.Context, conversationID uint) error {
	url := fmt.Sprintf("%s/api/conversations/%d/read", c.baseURL, conversationID)
	return c.do(ctx, fiber.Patch(url), nil)
}

func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	if err := c.do(ctx, fiber.Get(c.baseURL+"/api/unread-count"), &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}
