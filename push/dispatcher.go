package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"unimarket/apperror"
	"unimarket/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Identity is the VAPID signing identity shared by every delivery.
type Identity struct {
	Subject    string
	PublicKey  string
	PrivateKey string
}

func (id Identity) Validate() error {
	if id.PublicKey == "" || id.PrivateKey == "" {
		return errors.New("vapid key pair is required")
	}
	if id.Subject == "" {
		return errors.New("vapid subject is required")
	}
	return nil
}

// GenerateIdentity creates a fresh VAPID key pair, for development setups without
// configured keys.
func GenerateIdentity(subject string) (Identity, error) {
	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return Identity{}, err
	}
	return Identity{Subject: subject, PublicKey: public, PrivateKey: private}, nil
}

type Dispatcher struct {
	identity Identity
	client   webpush.HTTPClient
	ttl      int
}

type Option func(*Dispatcher)

func WithHTTPClient(c webpush.HTTPClient) Option {
	return func(d *Dispatcher) { d.client = c }
}

func NewDispatcher(identity Identity, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		identity: identity,
		client:   &http.Client{Timeout: 10 * time.Second},
		ttl:      60 * 60 * 24,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) PublicKey() string {
	return d.identity.PublicKey
}

// Send delivers payload to one subscription. It reports false, without error, when the
// relay says the endpoint is gone (404 or 410); the caller should forget the subscription.
// Every other failure is a DispatchFailed error.
func (d *Dispatcher) Send(ctx context.Context, sub model.PushSubscription, payload Payload) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, apperror.DispatchFailed(err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      d.client,
		Subscriber:      d.identity.Subject,
		VAPIDPublicKey:  d.identity.PublicKey,
		VAPIDPrivateKey: d.identity.PrivateKey,
		TTL:             d.ttl,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return false, apperror.DispatchFailed(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, apperror.DispatchFailed(&StatusError{StatusCode: resp.StatusCode})
	}
}

// StatusError is a relay answer that is neither success nor a gone endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "push relay answered " + http.StatusText(e.StatusCode)
}
