package store

import (
	"context"

	"unimarket/apperror"
	"unimarket/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionStore is the push subscription registry.
type SubscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Add registers endpoint for userID. When the endpoint is already known, to this or any
// other user, the existing record is returned untouched and created is false.
func (s *SubscriptionStore) Add(ctx context.Context, userID uint, endpoint string, keys model.PushKeys) (sub *model.PushSubscription, created bool, err error) {
	if endpoint == "" || keys.P256dh == "" || keys.Auth == "" {
		return nil, false, apperror.InvalidArg("invalid subscription data")
	}

	existing, err := s.byEndpoint(ctx, endpoint)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, errors.Wrap(err, "subscriptionStore.Add.Find")
	}

	sub = &model.PushSubscription{
		UserID:   userID,
		Endpoint: endpoint,
		P256dh:   keys.P256dh,
		Auth:     keys.Auth,
	}
	res := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "endpoint"}}, DoNothing: true}).
		Create(sub)
	if res.Error != nil {
		return nil, false, errors.Wrap(res.Error, "subscriptionStore.Add.Create")
	}
	if res.RowsAffected == 0 {
		// Lost the race against another registration of the same endpoint.
		existing, err := s.byEndpoint(ctx, endpoint)
		if err != nil {
			return nil, false, errors.Wrap(err, "subscriptionStore.Add.Reload")
		}
		return existing, false, nil
	}
	return sub, true, nil
}

func (s *SubscriptionStore) byEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	sub := new(model.PushSubscription)
	err := s.db.WithContext(ctx).Where(&model.PushSubscription{Endpoint: endpoint}).First(sub).Error
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Remove deletes the user's subscription for endpoint. Nothing matching is not an error.
func (s *SubscriptionStore) Remove(ctx context.Context, userID uint, endpoint string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&model.PushSubscription{}).Error
	return errors.Wrap(err, "subscriptionStore.Remove.Delete")
}

func (s *SubscriptionStore) RemoveByID(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Delete(&model.PushSubscription{}, id).Error
	return errors.Wrap(err, "subscriptionStore.RemoveByID.Delete")
}

func (s *SubscriptionStore) ListForUser(ctx context.Context, userID uint) ([]model.PushSubscription, error) {
	subs := []model.PushSubscription{}
	err := s.db.WithContext(ctx).Where(&model.PushSubscription{UserID: userID}).Order("id asc").Find(&subs).Error
	if err != nil {
		return nil, errors.Wrap(err, "subscriptionStore.ListForUser.Find")
	}
	return subs, nil
}
