package event

//go:generate mockgen -source=event.go -destination=mocks/mock_event.go -package=mocks

import (
	"context"
	"time"
)

const (
	ActionMessageCreated = "message_created"
	ActionMessagesRead   = "messages_read"
	ActionUserDeleted    = "user_deleted"
)

// Event is one domain fact published to the broker.
type Event struct {
	Action string    `json:"action"`
	Time   time.Time `json:"time"`
	Data   []byte    `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, action string, data any) error
}

// Nop drops every event. It stands in when EVENT_MODE is DISABLE.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
