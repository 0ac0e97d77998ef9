package store

import (
	"context"
	"time"

	"unimarket/apperror"
	"unimarket/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationWithLast is a conversation as listed to one of its members.
type ConversationWithLast struct {
	model.Conversation
	LastMessage *model.Message
}

type ConversationStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db, now: time.Now}
}

func orderedPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// FindOrCreate returns the conversation between userA and userB, creating it on first use.
// Concurrent callers for the same pair converge on one row through the pair's unique index.
func (s *ConversationStore) FindOrCreate(ctx context.Context, userA, userB uint) (*model.Conversation, error) {
	if userA == userB {
		return nil, apperror.InvalidArg("cannot chat with yourself")
	}
	low, high := orderedPair(userA, userB)

	conv, err := s.findPair(ctx, low, high)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "conversationStore.FindOrCreate.Find")
	}

	created := &model.Conversation{UserLowID: low, UserHighID: high, LastActivityAt: s.now()}
	err = s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(created).Error
	if err != nil {
		return nil, errors.Wrap(err, "conversationStore.FindOrCreate.Create")
	}

	conv, err = s.findPair(ctx, low, high)
	if err != nil {
		return nil, errors.Wrap(err, "conversationStore.FindOrCreate.Reload")
	}
	return conv, nil
}

func (s *ConversationStore) findPair(ctx context.Context, low, high uint) (*model.Conversation, error) {
	conv := new(model.Conversation)
	err := s.db.WithContext(ctx).
		Preload("UserLow").
		Preload("UserHigh").
		Where(&model.Conversation{UserLowID: low, UserHighID: high}).
		First(conv).Error
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationStore) Get(ctx context.Context, id uint) (*model.Conversation, error) {
	conv := new(model.Conversation)
	err := s.db.WithContext(ctx).Preload("UserLow").Preload("UserHigh").First(conv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("conversation not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "conversationStore.Get.First")
	}
	return conv, nil
}

// ListForUser returns the user's conversations, most recently active first, each with its
// newest message when it has one.
func (s *ConversationStore) ListForUser(ctx context.Context, userID uint) ([]ConversationWithLast, error) {
	var convs []model.Conversation
	err := s.db.WithContext(ctx).
		Preload("UserLow").
		Preload("UserHigh").
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("last_activity_at desc").
		Order("id desc").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "conversationStore.ListForUser.Find")
	}
	if len(convs) == 0 {
		return []ConversationWithLast{}, nil
	}

	ids := make([]uint, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}

	var last []model.Message
	latest := s.db.Model(&model.Message{}).
		Select("MAX(id)").
		Where("conversation_id IN ?", ids).
		Group("conversation_id")
	err = s.db.WithContext(ctx).
		Preload("Sender").
		Where("id IN (?)", latest).
		Find(&last).Error
	if err != nil {
		return nil, errors.Wrap(err, "conversationStore.ListForUser.LastMessages")
	}

	byConversation := make(map[uint]*model.Message, len(last))
	for i := range last {
		byConversation[last[i].ConversationID] = &last[i]
	}

	out := make([]ConversationWithLast, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationWithLast{Conversation: c, LastMessage: byConversation[c.ID]})
	}
	return out, nil
}

func (s *ConversationStore) Touch(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("last_activity_at", s.now())
	if res.Error != nil {
		return errors.Wrap(res.Error, "conversationStore.Touch.Update")
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("conversation not found")
	}
	return nil
}
