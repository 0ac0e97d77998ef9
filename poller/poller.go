package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	ConversationInterval = 5 * time.Second
	ChatInterval         = 3 * time.Second
)

// Handle controls one polling loop.
type Handle struct {
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	polling atomic.Bool
}

// Start runs fn right away and then once per interval until Stop is called or ctx ends.
// Ticks are not queued: a slow fn delays the next run instead of stacking calls.
// interval must be positive.
func Start(ctx context.Context, interval time.Duration, fn func(context.Context)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	h.polling.Store(true)

	go func() {
		defer close(h.done)
		defer h.polling.Store(false)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		fn(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return h
}

// Stop ends the loop and waits for a running fn to return. It is safe to call more
// than once.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Polling reports whether the loop is still running.
func (h *Handle) Polling() bool {
	return h.polling.Load()
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}
