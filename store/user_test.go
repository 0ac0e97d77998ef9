package store

import (
	"testing"

	"unimarket/apperror"
	"unimarket/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore_CreateRejectsDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)

	require.NoError(t, s.Create(ctx, &model.User{Email: "ana@uni.test", Name: "Ana", Password: "h"}))
	err := s.Create(ctx, &model.User{Email: "ana@uni.test", Name: "Ana 2", Password: "h"})
	assert.ErrorIs(t, err, apperror.ErrAlreadyExists)

	got, err := s.GetByEmail(ctx, "ana@uni.test")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)

	_, err = s.Get(ctx, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserStore_SaveRejectsTakenEmail(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)
	require.NoError(t, s.Create(ctx, &model.User{Email: "ana@uni.test", Name: "Ana", Password: "h"}))
	beto := &model.User{Email: "beto@uni.test", Name: "Beto", Password: "h"}
	require.NoError(t, s.Create(ctx, beto))

	beto.Email = "ana@uni.test"
	assert.ErrorIs(t, s.Save(ctx, beto), apperror.ErrAlreadyExists)

	beto.Email = "beto.new@uni.test"
	require.NoError(t, s.Save(ctx, beto))
	got, err := s.Get(ctx, beto.ID)
	require.NoError(t, err)
	assert.Equal(t, "beto.new@uni.test", got.Email)
}

func TestUserStore_UpdatePasswordByEmail(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)
	require.NoError(t, s.Create(ctx, &model.User{Email: "ana@uni.test", Name: "Ana", Password: "old"}))

	require.NoError(t, s.UpdatePasswordByEmail(ctx, "ana@uni.test", "new"))
	got, err := s.GetByEmail(ctx, "ana@uni.test")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Password)

	assert.ErrorIs(t, s.UpdatePasswordByEmail(ctx, "nobody@uni.test", "x"), apperror.ErrNotFound)
}

func TestUserStore_DeleteRemovesOwnedRecords(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	convs := NewConversationStore(db)
	msgs := NewMessageStore(db)
	subs := NewSubscriptionStore(db)

	ab, err := convs.FindOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	bc, err := convs.FindOrCreate(ctx, bob.ID, carol.ID)
	require.NoError(t, err)
	_, err = msgs.Append(ctx, ab.ID, bob.ID, "hi alice")
	require.NoError(t, err)
	_, err = msgs.Append(ctx, bc.ID, carol.ID, "hi bob")
	require.NoError(t, err)
	_, _, err = subs.Add(ctx, alice.ID, "https://push.example/alice", model.PushKeys{P256dh: "p", Auth: "a"})
	require.NoError(t, err)

	category := &model.Category{Name: "Libros"}
	require.NoError(t, db.Create(category).Error)
	listing := &model.Product{Title: "Cálculo I", Price: 10, CategoryID: category.ID, SellerID: alice.ID}
	require.NoError(t, db.Omit("Category", "Seller").Create(listing).Error)
	require.NoError(t, db.Omit("Buyer", "Product").Create(&model.Order{BuyerID: bob.ID, ProductID: listing.ID}).Error)

	require.NoError(t, NewUserStore(db).Delete(ctx, alice.ID))

	count := func(m any, where string, args ...any) int64 {
		var n int64
		require.NoError(t, db.Unscoped().Model(m).Where(where, args...).Count(&n).Error)
		return n
	}
	assert.Zero(t, count(&model.User{}, "id = ?", alice.ID))
	assert.Zero(t, count(&model.Product{}, "seller_id = ?", alice.ID))
	assert.Zero(t, count(&model.Order{}, "product_id = ?", listing.ID))
	assert.Zero(t, count(&model.PushSubscription{}, "user_id = ?", alice.ID))
	assert.Zero(t, count(&model.Conversation{}, "id = ?", ab.ID))
	assert.Zero(t, count(&model.Message{}, "conversation_id = ?", ab.ID))

	// bob and carol keep their own thread
	assert.EqualValues(t, 1, count(&model.Conversation{}, "id = ?", bc.ID))
	assert.EqualValues(t, 1, count(&model.Message{}, "conversation_id = ?", bc.ID))

	assert.ErrorIs(t, NewUserStore(db).Delete(ctx, alice.ID), apperror.ErrNotFound)
}
