package poller

import (
	"context"
	"sync"
	"time"

	"unimarket/model"

	"go.uber.org/zap"
)

// ConversationList keeps the latest conversation list. Every poll replaces the snapshot
// wholesale.
type ConversationList struct {
	mu       sync.RWMutex
	snapshot []model.ConversationView
	handle   *Handle
}

func WatchConversations(ctx context.Context, src Source, interval time.Duration, log *zap.SugaredLogger) *ConversationList {
	if interval <= 0 {
		interval = ConversationInterval
	}
	v := &ConversationList{snapshot: []model.ConversationView{}}
	v.handle = Start(ctx, interval, func(ctx context.Context) {
		conversations, err := src.Conversations(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warnw("conversation poll failed", "err", err)
			}
			return
		}
		v.mu.Lock()
		v.snapshot = conversations
		v.mu.Unlock()
	})
	return v
}

func (v *ConversationList) Snapshot() []model.ConversationView {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

func (v *ConversationList) Close() {
	v.handle.Stop()
}

// Chat is an open conversation. Opening it marks the conversation read once, then its
// messages are polled until Close.
type Chat struct {
	conversationID uint
	mu             sync.RWMutex
	messages       []model.MessageView
	handle         *Handle
}

func OpenChat(ctx context.Context, src Source, conversationID uint, interval time.Duration, log *zap.SugaredLogger) *Chat {
	if err := src.MarkRead(ctx, conversationID); err != nil {
		log.Warnw("mark read failed", "conversationId", conversationID, "err", err)
	}

	if interval <= 0 {
		interval = ChatInterval
	}
	v := &Chat{conversationID: conversationID, messages: []model.MessageView{}}
	v.handle = Start(ctx, interval, func(ctx context.Context) {
		messages, err := src.Messages(ctx, conversationID)
		if err != nil {
			if ctx.Err() == nil {
				log.Warnw("message poll failed", "conversationId", conversationID, "err", err)
			}
			return
		}
		v.mu.Lock()
		v.messages = messages
		v.mu.Unlock()
	})
	return v
}

func (v *Chat) ConversationID() uint {
	return v.conversationID
}

func (v *Chat) Messages() []model.MessageView {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.messages
}

func (v *Chat) Close() {
	v.handle.Stop()
}
