package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"unimarket/apperror"
	"unimarket/database"
	"unimarket/event"
	eventmocks "unimarket/event/mocks"
	"unimarket/logger"
	"unimarket/metrics"
	"unimarket/model"
	"unimarket/push"
	"unimarket/service/mocks"
	"unimarket/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

var ctx = context.Background()

type fixture struct {
	db            *gorm.DB
	dispatcher    *mocks.MockDispatcher
	subscriptions *store.SubscriptionStore
	metrics       *metrics.Metrics
	messenger     *Messenger
	alice, bob    *model.User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db, err := database.SQLiteConnect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	f := &fixture{
		db:            db,
		dispatcher:    mocks.NewMockDispatcher(gomock.NewController(t)),
		subscriptions: store.NewSubscriptionStore(db),
		metrics:       metrics.New(),
	}
	f.alice = seedUser(t, db, "alice")
	f.bob = seedUser(t, db, "bob")

	opts = append([]Option{WithMetrics(f.metrics)}, opts...)
	f.messenger = NewMessenger(
		store.NewUserStore(db),
		store.NewConversationStore(db),
		store.NewMessageStore(db),
		f.subscriptions,
		f.dispatcher,
		logger.Nop(),
		opts...,
	)
	return f
}

func seedUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	u := &model.User{Email: fmt.Sprintf("%s@uni.test", name), Name: name, Password: "x", Role: "user"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func (f *fixture) subscribe(t *testing.T, userID uint, endpoint string) *model.PushSubscription {
	t.Helper()
	sub, _, err := f.subscriptions.Add(ctx, userID, endpoint, model.PushKeys{P256dh: "p256dh", Auth: "auth"})
	require.NoError(t, err)
	return sub
}

func TestSendMessageNotifiesRecipient(t *testing.T) {
	f := newFixture(t)
	conv, err := f.messenger.StartConversation(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	sub := f.subscribe(t, f.bob.ID, "https://push.test/bob")
	f.subscribe(t, f.alice.ID, "https://push.test/alice")

	f.dispatcher.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got model.PushSubscription, payload push.Payload) (bool, error) {
			assert.Equal(t, sub.ID, got.ID)
			assert.Equal(t, "Nuevo mensaje de alice", payload.Title)
			assert.Equal(t, "hola", payload.Body)
			assert.Equal(t, fmt.Sprintf("/chat?id=%d", conv.ID), payload.Data["url"])
			return true, nil
		}).
		Times(1)

	before, err := f.messenger.UnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)

	msg, err := f.messenger.SendMessage(ctx, conv.ID, f.alice.ID, "hola")
	require.NoError(t, err)
	assert.Equal(t, "hola", msg.Content)
	assert.False(t, msg.Read)

	after, err := f.messenger.UnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	senderUnread, err := f.messenger.UnreadCount(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Zero(t, senderUnread)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MessagesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PushDeliveries.WithLabelValues(string(OutcomeDelivered))))
}

func TestFanOutPrunesGoneSubscription(t *testing.T) {
	f := newFixture(t)
	gone := f.subscribe(t, f.bob.ID, "https://push.test/gone")
	valid := f.subscribe(t, f.bob.ID, "https://push.test/valid")

	f.dispatcher.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub model.PushSubscription, _ push.Payload) (bool, error) {
			return sub.ID != gone.ID, nil
		}).
		Times(2)

	results := f.messenger.fanOut(ctx, f.bob.ID, push.NewMessagePayload("alice", 1, "hola"))
	require.Len(t, results, 2)

	outcomes := map[uint]Outcome{}
	for _, r := range results {
		outcomes[r.SubscriptionID] = r.Outcome
	}
	assert.Equal(t, OutcomeGone, outcomes[gone.ID])
	assert.Equal(t, OutcomeDelivered, outcomes[valid.ID])

	left, err := f.subscriptions.ListForUser(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, valid.ID, left[0].ID)
}

func TestFanOutFailureDoesNotStopLoop(t *testing.T) {
	f := newFixture(t)
	broken := f.subscribe(t, f.bob.ID, "https://push.test/broken")
	f.subscribe(t, f.bob.ID, "https://push.test/ok")
	conv, err := f.messenger.StartConversation(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)

	f.dispatcher.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub model.PushSubscription, _ push.Payload) (bool, error) {
			if sub.ID == broken.ID {
				return false, apperror.DispatchFailed(errors.New("relay unavailable"))
			}
			return true, nil
		}).
		Times(2)

	_, err = f.messenger.SendMessage(ctx, conv.ID, f.alice.ID, "sigue ahí?")
	require.NoError(t, err)

	left, err := f.subscriptions.ListForUser(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Len(t, left, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PushDeliveries.WithLabelValues(string(OutcomeFailed))))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PushDeliveries.WithLabelValues(string(OutcomeDelivered))))
}

func TestSendMessageChecksMembership(t *testing.T) {
	f := newFixture(t)
	carol := seedUser(t, f.db, "carol")
	conv, err := f.messenger.StartConversation(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	_, err = f.messenger.SendMessage(ctx, conv.ID, carol.ID, "hola")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.messenger.SendMessage(ctx, conv.ID+100, f.alice.ID, "hola")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.messenger.SendMessage(ctx, conv.ID, f.alice.ID, "   ")
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)

	_, err = f.messenger.ListMessages(ctx, conv.ID, carol.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	err = f.messenger.MarkConversationRead(ctx, conv.ID, carol.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestStartConversation(t *testing.T) {
	f := newFixture(t)

	_, err := f.messenger.StartConversation(ctx, f.alice.ID, f.alice.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)

	_, err = f.messenger.StartConversation(ctx, f.alice.ID, 9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	first, err := f.messenger.StartConversation(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	second, err := f.messenger.StartConversation(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.ElementsMatch(t, []uint{f.alice.ID, f.bob.ID}, first.MemberIDs())
}

func TestConversationScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	realtime := mocks.NewMockRealtime(ctrl)
	f := newFixture(t, WithRealtime(realtime))
	f.subscribe(t, f.bob.ID, "https://push.test/bob")

	conv, err := f.messenger.StartConversation(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	f.dispatcher.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	realtime.EXPECT().Emit(f.bob.ID, RealtimeNewMessage, gomock.Any())
	_, err = f.messenger.SendMessage(ctx, conv.ID, f.alice.ID, "hola")
	require.NoError(t, err)

	listed, err := f.messenger.ListConversations(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].LastMessage)
	assert.Equal(t, "hola", listed[0].LastMessage.Content)
	assert.True(t, listed[0].LastActivityAt.After(conv.LastActivityAt) || listed[0].LastActivityAt.Equal(conv.LastActivityAt))

	unread, err := f.messenger.UnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	realtime.EXPECT().Emit(f.alice.ID, RealtimeMessagesRead, gomock.Any())
	require.NoError(t, f.messenger.MarkConversationRead(ctx, conv.ID, f.bob.ID))

	unread, err = f.messenger.UnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	// Nothing left to flip, so no receipt goes out.
	require.NoError(t, f.messenger.MarkConversationRead(ctx, conv.ID, f.bob.ID))

	messages, err := f.messenger.ListMessages(ctx, conv.ID, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Read)
	assert.Equal(t, "alice", messages[0].View().Sender.Name)
}

func TestDomainEventsArePublished(t *testing.T) {
	publisher := eventmocks.NewMockPublisher(gomock.NewController(t))
	f := newFixture(t, WithPublisher(publisher))
	conv, err := f.messenger.StartConversation(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	publisher.EXPECT().
		Publish(gomock.Any(), event.ActionMessageCreated, gomock.AssignableToTypeOf(model.MessageView{})).
		DoAndReturn(func(_ context.Context, _ string, data any) error {
			view := data.(model.MessageView)
			assert.Equal(t, conv.ID, view.ConversationID)
			assert.Equal(t, "hola", view.Content)
			return errors.New("broker down")
		}).
		Times(1)

	msg, err := f.messenger.SendMessage(ctx, conv.ID, f.alice.ID, "hola")
	require.NoError(t, err)
	assert.Equal(t, "hola", msg.Content)

	publisher.EXPECT().
		Publish(gomock.Any(), event.ActionMessagesRead, map[string]uint{"conversationId": conv.ID, "readerId": f.bob.ID}).
		Return(nil).
		Times(1)
	require.NoError(t, f.messenger.MarkConversationRead(ctx, conv.ID, f.bob.ID))

	// Nothing changed, nothing published.
	require.NoError(t, f.messenger.MarkConversationRead(ctx, conv.ID, f.bob.ID))
}
