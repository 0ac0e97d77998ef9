package service

//go:generate mockgen -source=messenger.go -destination=mocks/mock_messenger.go -package=mocks

import (
	"context"

	"unimarket/apperror"
	"unimarket/event"
	"unimarket/metrics"
	"unimarket/model"
	"unimarket/push"
	"unimarket/store"

	"go.uber.org/zap"
)

// Dispatcher delivers one push payload to one subscription. A false result with a nil
// error means the endpoint is gone for good.
type Dispatcher interface {
	Send(ctx context.Context, sub model.PushSubscription, payload push.Payload) (bool, error)
}

// Realtime pushes an event to every open session of a user.
type Realtime interface {
	Emit(userID uint, name string, data any)
}

const (
	RealtimeNewMessage   = "new_message"
	RealtimeMessagesRead = "messages_read"
)

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeGone      Outcome = "gone"
	OutcomeFailed    Outcome = "failed"
)

// DeliveryResult is the fate of one subscription during a fan-out.
type DeliveryResult struct {
	SubscriptionID uint
	Outcome        Outcome
	Err            error
}

type Messenger struct {
	users         *store.UserStore
	conversations *store.ConversationStore
	messages      *store.MessageStore
	subscriptions *store.SubscriptionStore
	dispatcher    Dispatcher
	realtime      Realtime
	events        event.Publisher
	metrics       *metrics.Metrics
	log           *zap.SugaredLogger
}

type Option func(*Messenger)

func WithRealtime(r Realtime) Option {
	return func(m *Messenger) { m.realtime = r }
}

func WithPublisher(p event.Publisher) Option {
	return func(m *Messenger) { m.events = p }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Messenger) { m.metrics = mt }
}

func NewMessenger(
	users *store.UserStore,
	conversations *store.ConversationStore,
	messages *store.MessageStore,
	subscriptions *store.SubscriptionStore,
	dispatcher Dispatcher,
	log *zap.SugaredLogger,
	opts ...Option,
) *Messenger {
	m := &Messenger{
		users:         users,
		conversations: conversations,
		messages:      messages,
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		realtime:      nopRealtime{},
		events:        event.Nop{},
		log:           log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type nopRealtime struct{}

func (nopRealtime) Emit(uint, string, any) {}

// memberConversation loads a conversation and checks that userID belongs to it.
func (m *Messenger) memberConversation(ctx context.Context, conversationID, userID uint) (*model.Conversation, error) {
	conv, err := m.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, apperror.Forbidden("not a member of this conversation")
	}
	return conv, nil
}

func (m *Messenger) StartConversation(ctx context.Context, userID, otherUserID uint) (*model.Conversation, error) {
	if userID == otherUserID {
		return nil, apperror.InvalidArg("cannot chat with yourself")
	}
	if _, err := m.users.Get(ctx, otherUserID); err != nil {
		return nil, err
	}
	return m.conversations.FindOrCreate(ctx, userID, otherUserID)
}

func (m *Messenger) ListConversations(ctx context.Context, userID uint) ([]store.ConversationWithLast, error) {
	return m.conversations.ListForUser(ctx, userID)
}

func (m *Messenger) ListMessages(ctx context.Context, conversationID, userID uint) ([]model.Message, error) {
	if _, err := m.memberConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return m.messages.ListByConversation(ctx, conversationID)
}

func (m *Messenger) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return m.messages.CountUnreadForUser(ctx, userID)
}

// SendMessage stores the message, bumps the conversation and notifies the other member.
// Notification problems are logged and never fail the send.
func (m *Messenger) SendMessage(ctx context.Context, conversationID, senderID uint, content string) (*model.Message, error) {
	conv, err := m.memberConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := m.messages.Append(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, err
	}
	if err := m.conversations.Touch(ctx, conversationID); err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.MessagesSent.Inc()
	}

	payload := push.NewMessagePayload(msg.Sender.Name, conversationID, msg.Content)
	for _, recipient := range conv.OtherMembers(senderID) {
		m.fanOut(ctx, recipient, payload)
		m.realtime.Emit(recipient, RealtimeNewMessage, msg.View())
	}

	if err := m.events.Publish(ctx, event.ActionMessageCreated, msg.View()); err != nil {
		m.log.Warnw("failed to publish event", "action", event.ActionMessageCreated, "err", err)
	}
	return msg, nil
}

// fanOut pushes payload to every subscription of userID. Gone endpoints are removed.
func (m *Messenger) fanOut(ctx context.Context, userID uint, payload push.Payload) []DeliveryResult {
	subs, err := m.subscriptions.ListForUser(ctx, userID)
	if err != nil {
		m.log.Errorw("failed to list push subscriptions", "userId", userID, "err", err)
		return nil
	}

	results := make([]DeliveryResult, 0, len(subs))
	for _, sub := range subs {
		res := DeliveryResult{SubscriptionID: sub.ID}
		ok, err := m.dispatcher.Send(ctx, sub, payload)
		switch {
		case err != nil:
			res.Outcome, res.Err = OutcomeFailed, err
			m.log.Warnw("push delivery failed", "subscriptionId", sub.ID, "err", err)
		case !ok:
			res.Outcome = OutcomeGone
			if err := m.subscriptions.RemoveByID(ctx, sub.ID); err != nil {
				m.log.Errorw("failed to prune push subscription", "subscriptionId", sub.ID, "err", err)
			}
		default:
			res.Outcome = OutcomeDelivered
		}
		if m.metrics != nil {
			m.metrics.PushDeliveries.WithLabelValues(string(res.Outcome)).Inc()
		}
		results = append(results, res)
	}
	return results
}

// MarkConversationRead flags as read every message addressed to readerID.
func (m *Messenger) MarkConversationRead(ctx context.Context, conversationID, readerID uint) error {
	conv, err := m.memberConversation(ctx, conversationID, readerID)
	if err != nil {
		return err
	}

	changed, err := m.messages.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		return err
	}
	if changed == 0 {
		return nil
	}

	receipt := map[string]uint{"conversationId": conversationID, "readerId": readerID}
	for _, other := range conv.OtherMembers(readerID) {
		m.realtime.Emit(other, RealtimeMessagesRead, receipt)
	}
	if err := m.events.Publish(ctx, event.ActionMessagesRead, receipt); err != nil {
		m.log.Warnw("failed to publish event", "action", event.ActionMessagesRead, "err", err)
	}
	return nil
}
