package store

import (
	"context"
	"strings"

	"unimarket/apperror"
	"unimarket/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Where(&model.User{Email: user.Email}).Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "userStore.Create.CountEmail")
	}
	if count > 0 {
		return apperror.AlreadyExists("email is already registered")
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if duplicateKey(err) {
			return apperror.AlreadyExists("email is already registered")
		}
		return errors.Wrap(err, "userStore.Create.Insert")
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id uint) (*model.User, error) {
	user := new(model.User)
	err := s.db.WithContext(ctx).First(user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "userStore.Get.First")
	}
	return user, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user := new(model.User)
	err := s.db.WithContext(ctx).Where(&model.User{Email: email}).First(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "userStore.GetByEmail.First")
	}
	return user, nil
}

// Save persists every field of an already loaded user. Taking an email that belongs to
// another account is AlreadyExists.
func (s *UserStore) Save(ctx context.Context, user *model.User) error {
	err := s.db.WithContext(ctx).Save(user).Error
	if err != nil && duplicateKey(err) {
		return apperror.AlreadyExists("email is already registered")
	}
	return errors.Wrap(err, "userStore.Save")
}

// duplicateKey matches unique violations from postgres and sqlite alike.
func duplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique")
}

func (s *UserStore) UpdatePasswordByEmail(ctx context.Context, email, hash string) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Update("password", hash)
	if res.Error != nil {
		return errors.Wrap(res.Error, "userStore.UpdatePasswordByEmail.Update")
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("user not found")
	}
	return nil
}

// Delete removes the user and everything they own. There are no cascading foreign keys, so
// dependants go first, inside one transaction: orders, listings, push subscriptions, the
// user's conversations with all their messages, and any message the user sent elsewhere.
func (s *UserStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sellerProducts := tx.Unscoped().Model(&model.Product{}).Select("id").Where("seller_id = ?", id)
		if err := tx.Unscoped().Where("buyer_id = ? OR product_id IN (?)", id, sellerProducts).Delete(&model.Order{}).Error; err != nil {
			return errors.Wrap(err, "userStore.Delete.Orders")
		}
		if err := tx.Unscoped().Where("seller_id = ?", id).Delete(&model.Product{}).Error; err != nil {
			return errors.Wrap(err, "userStore.Delete.Products")
		}
		if err := tx.Unscoped().Where("user_id = ?", id).Delete(&model.PushSubscription{}).Error; err != nil {
			return errors.Wrap(err, "userStore.Delete.PushSubscriptions")
		}

		conversations := tx.Unscoped().Model(&model.Conversation{}).Select("id").Where("user_low_id = ? OR user_high_id = ?", id, id)
		if err := tx.Unscoped().Where("sender_id = ? OR conversation_id IN (?)", id, conversations).Delete(&model.Message{}).Error; err != nil {
			return errors.Wrap(err, "userStore.Delete.Messages")
		}
		if err := tx.Unscoped().Where("user_low_id = ? OR user_high_id = ?", id, id).Delete(&model.Conversation{}).Error; err != nil {
			return errors.Wrap(err, "userStore.Delete.Conversations")
		}

		res := tx.Unscoped().Delete(&model.User{}, id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "userStore.Delete.User")
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("user not found")
		}
		return nil
	})
}
