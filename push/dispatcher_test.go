package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"unimarket/apperror"
	"unimarket/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity(t *testing.T) Identity {
	t.Helper()
	id, err := GenerateIdentity("mailto:admin@unimarket.test")
	require.NoError(t, err)
	require.NoError(t, id.Validate())
	return id
}

// browserSubscription builds a subscription with real client keys, as a browser would.
func browserSubscription(t *testing.T, endpoint string) model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return model.PushSubscription{
		ID:       1,
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func relay(status int, hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.Header.Get("Content-Encoding") != "aes128gcm" || !strings.HasPrefix(r.Header.Get("Authorization"), "vapid ") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
	}))
}

func TestDispatcher_Send(t *testing.T) {
	payload := NewMessagePayload("Ana", 7, "hola")

	cases := []struct {
		name      string
		status    int
		delivered bool
		failed    bool
	}{
		{name: "accepted", status: http.StatusCreated, delivered: true},
		{name: "gone", status: http.StatusGone},
		{name: "not found", status: http.StatusNotFound},
		{name: "relay error", status: http.StatusInternalServerError, failed: true},
		{name: "rate limited", status: http.StatusTooManyRequests, failed: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var hits int32
			srv := relay(tc.status, &hits)
			defer srv.Close()

			d := NewDispatcher(testIdentity(t), WithHTTPClient(srv.Client()))
			ok, err := d.Send(context.Background(), browserSubscription(t, srv.URL+"/push/abc"), payload)

			assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
			assert.Equal(t, tc.delivered, ok)
			if tc.failed {
				assert.ErrorIs(t, err, apperror.ErrDispatchFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDispatcher_TransportFailureIsNotGone(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/push/abc"
	srv.Close()

	d := NewDispatcher(testIdentity(t))
	ok, err := d.Send(context.Background(), browserSubscription(t, endpoint), NewMessagePayload("Ana", 1, "x"))

	assert.False(t, ok)
	assert.ErrorIs(t, err, apperror.ErrDispatchFailed)
}

func TestDispatcher_PublicKey(t *testing.T) {
	id := testIdentity(t)
	assert.Equal(t, id.PublicKey, NewDispatcher(id).PublicKey())
}

func TestIdentityValidate(t *testing.T) {
	assert.Error(t, Identity{Subject: "mailto:a@b.c"}.Validate())
	assert.Error(t, Identity{PublicKey: "p", PrivateKey: "k"}.Validate())
}

func TestNewMessagePayload(t *testing.T) {
	long := strings.Repeat("á", 150)
	p := NewMessagePayload("Ana", 42, long)

	assert.Equal(t, "Nuevo mensaje de Ana", p.Title)
	assert.Equal(t, strings.Repeat("á", 100)+"...", p.Body)
	assert.Equal(t, DefaultIcon, p.Icon)
	assert.Equal(t, DefaultIcon, p.Badge)
	assert.Equal(t, "/chat?id=42", p.Data["url"])
	assert.Equal(t, uint(42), p.Data["conversationId"])

	assert.Equal(t, "hola", NewMessagePayload("Ana", 1, "hola").Body)
}
