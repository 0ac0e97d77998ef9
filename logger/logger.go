package logger

import (
	"go.uber.org/zap"
)

func New(development bool) (*zap.SugaredLogger, error) {
	var l *zap.Logger
	var err error
	if development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Named("unimarket").Sugar(), nil
}

// Nop is used by tests and by components built without a logger.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
