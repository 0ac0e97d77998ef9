package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"unimarket/logger"
	"unimarket/middleware"
	"unimarket/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRunsImmediatelyAndRepeats(t *testing.T) {
	var calls atomic.Int32
	h := Start(context.Background(), 10*time.Millisecond, func(context.Context) {
		calls.Add(1)
	})

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.Polling())

	h.Stop()
	h.Stop()
	assert.False(t, h.Polling())

	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
}

func TestStartStopsWithParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := Start(ctx, time.Hour, func(context.Context) {})

	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop with its context")
	}
	assert.False(t, h.Polling())
}

type fakeSource struct {
	mu            sync.Mutex
	conversations [][]model.ConversationView
	messages      []model.MessageView
	markReads     int
	polls         int
	fail          bool
}

func (s *fakeSource) Conversations(context.Context) ([]model.ConversationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.fail {
		return nil, errors.New("offline")
	}
	next := s.conversations[0]
	if len(s.conversations) > 1 {
		s.conversations = s.conversations[1:]
	}
	return next, nil
}

func (s *fakeSource) Messages(context.Context, uint) ([]model.MessageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	return s.messages, nil
}

func (s *fakeSource) MarkRead(context.Context, uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markReads++
	return nil
}

func (s *fakeSource) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func TestConversationListReplacesSnapshot(t *testing.T) {
	src := &fakeSource{conversations: [][]model.ConversationView{
		{{ID: 1}, {ID: 2}},
		{{ID: 3}},
	}}
	v := WatchConversations(context.Background(), src, 10*time.Millisecond, logger.Nop())
	defer v.Close()

	assert.Eventually(t, func() bool {
		snap := v.Snapshot()
		return len(snap) == 1 && snap[0].ID == 3
	}, time.Second, 5*time.Millisecond)
}

func TestConversationListKeepsSnapshotOnError(t *testing.T) {
	src := &fakeSource{conversations: [][]model.ConversationView{{{ID: 7}}}}
	v := WatchConversations(context.Background(), src, 10*time.Millisecond, logger.Nop())

	assert.Eventually(t, func() bool { return len(v.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	src.mu.Lock()
	src.fail = true
	src.mu.Unlock()

	polls := src.pollCount()
	assert.Eventually(t, func() bool { return src.pollCount() > polls+1 }, time.Second, 5*time.Millisecond)
	v.Close()
	assert.Equal(t, uint(7), v.Snapshot()[0].ID)
}

func TestChatMarksReadOnce(t *testing.T) {
	src := &fakeSource{messages: []model.MessageView{{ID: 1, Content: "hola"}}}
	chat := OpenChat(context.Background(), src, 4, 10*time.Millisecond, logger.Nop())

	assert.Eventually(t, func() bool { return src.pollCount() >= 3 }, time.Second, 5*time.Millisecond)
	chat.Close()

	assert.Equal(t, uint(4), chat.ConversationID())
	assert.Equal(t, "hola", chat.Messages()[0].Content)
	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 1, src.markReads)
}

func TestViewsFallBackToDefaultIntervals(t *testing.T) {
	src := &fakeSource{
		conversations: [][]model.ConversationView{{{ID: 1}}},
		messages:      []model.MessageView{{ID: 2}},
	}

	list := WatchConversations(context.Background(), src, 0, logger.Nop())
	chat := OpenChat(context.Background(), src, 5, -time.Second, logger.Nop())

	assert.Eventually(t, func() bool {
		return len(list.Snapshot()) == 1 && len(chat.Messages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, list.handle.Polling())
	assert.True(t, chat.handle.Polling())

	list.Close()
	chat.Close()
}

func TestClient(t *testing.T) {
	var patched atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(middleware.CookieName)
		if err != nil || cookie.Value != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"status":"error","message":"Missing or malformed session","data":null}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/conversations":
			w.Write([]byte(`[{"id":9,"users":[{"id":1,"name":"ana"},{"id":2,"name":"beto"}],"messages":[]}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/conversations/9/messages":
			w.Write([]byte(`[{"id":1,"conversationId":9,"senderId":1,"sender":{"id":1,"name":"ana"},"content":"hola","read":false}]`))
		case r.Method == http.MethodPatch && r.URL.Path == "/api/conversations/9/read":
			patched.Store(true)
			w.Write([]byte(`{"success":true}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/unread-count":
			w.Write([]byte(`{"unreadCount":2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":"error","message":"not found","data":null}`))
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	c := NewClient(srv.URL+"/", "token")

	conversations, err := c.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, uint(9), conversations[0].ID)
	assert.Len(t, conversations[0].Users, 2)

	messages, err := c.Messages(ctx, 9)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "ana", messages[0].Sender.Name)

	require.NoError(t, c.MarkRead(ctx, 9))
	assert.True(t, patched.Load())

	unread, err := c.UnreadCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	_, err = c.Messages(ctx, 10)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)

	_, err = NewClient(srv.URL, "expired").Conversations(ctx)
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	assert.Equal(t, "Missing or malformed session", statusErr.Message)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Conversations(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
