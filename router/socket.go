package router

import (
	"context"
	"strconv"

	"unimarket/service"
	"unimarket/socketio"

	"github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

type UnreadCount struct {
	UnreadCount int64 `json:"unreadCount"`
}

type UserStatus struct {
	Id     uint `json:"id"`
	Status bool `json:"status"`
}

// Socket registers the client events a realtime session may send.
func Socket(server *socketio.Server, messenger *service.Messenger, log *zap.SugaredLogger) {
	server.OnConnection(func(client *socket.Socket) {
		userID := socketio.Session(client).UserID

		emitUnread := func() {
			count, err := messenger.UnreadCount(context.Background(), userID)
			if err != nil {
				log.Warnw("socket unread count failed", "userId", userID, "err", err)
				return
			}
			client.Emit("unread_count", UnreadCount{UnreadCount: count})
		}

		client.On("init", func(args ...any) {
			emitUnread()
		})

		client.On("unread_count", func(args ...any) {
			emitUnread()
		})

		client.On("conversation_read", func(args ...any) {
			conversationID, ok := argID(args)
			if !ok {
				return
			}
			if err := messenger.MarkConversationRead(context.Background(), conversationID, userID); err != nil {
				log.Warnw("socket mark read failed", "userId", userID, "conversationId", conversationID, "err", err)
				return
			}
			emitUnread()
		})

		client.On("user_status", func(args ...any) {
			conversations, err := messenger.ListConversations(context.Background(), userID)
			if err != nil {
				log.Warnw("socket user status failed", "userId", userID, "err", err)
				return
			}

			userStatus := []UserStatus{}
			for _, conv := range conversations {
				for _, other := range conv.OtherMembers(userID) {
					userStatus = append(userStatus, UserStatus{Id: other, Status: server.Online(other)})
				}
			}
			client.Emit("user_status", userStatus)
		})
	})
}

// argID reads an id sent either as a JSON number or a string.
func argID(args []any) (uint, bool) {
	if len(args) == 0 {
		return 0, false
	}
	switch v := args[0].(type) {
	case float64:
		if v <= 0 {
			return 0, false
		}
		return uint(v), true
	case string:
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return 0, false
		}
		return uint(id), true
	}
	return 0, false
}
