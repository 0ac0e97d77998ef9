package push

import (
	"fmt"
	"unicode/utf8"
)

const (
	DefaultIcon = "/icons/icon-192.png"
	bodyLimit   = 100
)

// Payload is what the browser's service worker receives and shows as a notification.
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Data  map[string]any `json:"data"`
}

// NewMessagePayload builds the notification for a chat message.
func NewMessagePayload(senderName string, conversationID uint, content string) Payload {
	return Payload{
		Title: fmt.Sprintf("Nuevo mensaje de %s", senderName),
		Body:  truncate(content, bodyLimit),
		Icon:  DefaultIcon,
		Badge: DefaultIcon,
		Data: map[string]any{
			"url":            fmt.Sprintf("/chat?id=%d", conversationID),
			"conversationId": conversationID,
		},
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
