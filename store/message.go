package store

import (
	"context"
	"strings"
	"time"

	"unimarket/apperror"
	"unimarket/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db, now: time.Now}
}

// Append stores a new unread message at the end of the conversation.
func (s *MessageStore) Append(ctx context.Context, conversationID, senderID uint, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperror.InvalidArg("message content is required")
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", conversationID).Count(&count).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageStore.Append.CountConversation")
	}
	if count == 0 {
		return nil, apperror.NotFound("conversation not found")
	}

	msg := &model.Message{
		CreatedAt:      s.now(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Read:           false,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error; err != nil {
		return nil, errors.Wrap(err, "messageStore.Append.Create")
	}

	if err := s.db.WithContext(ctx).Preload("Sender").First(msg, msg.ID).Error; err != nil {
		return nil, errors.Wrap(err, "messageStore.Append.Reload")
	}
	return msg, nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID uint) ([]model.Message, error) {
	messages := []model.Message{}
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Where(&model.Message{ConversationID: conversationID}).
		Order("created_at asc").
		Order("id asc").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageStore.ListByConversation.Find")
	}
	return messages, nil
}

// MarkRead flags every unread message of the conversation not sent by readerID. It returns
// the number of messages that changed, which is zero on repeated calls.
func (s *MessageStore) MarkRead(ctx context.Context, conversationID, readerID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read = ?", conversationID, readerID, false).
		Update("read", true)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "messageStore.MarkRead.Update")
	}
	return res.RowsAffected, nil
}

// CountUnreadForUser counts unread messages addressed to userID across all of their
// conversations.
func (s *MessageStore) CountUnreadForUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_low_id = ? OR conversations.user_high_id = ?", userID, userID).
		Where("messages.sender_id <> ? AND messages.read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "messageStore.CountUnreadForUser.Count")
	}
	return count, nil
}
