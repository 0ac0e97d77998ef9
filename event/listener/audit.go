package listener

import (
	"unimarket/event"

	"go.uber.org/zap"
)

// Audit writes every consumed event to the log until events is closed.
func Audit(events <-chan event.Event, log *zap.SugaredLogger) {
	for e := range events {
		log.Infow("event consumed",
			"action", e.Action,
			"time", e.Time,
			"data", string(e.Data),
		)
	}
}
