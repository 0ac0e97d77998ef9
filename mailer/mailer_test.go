package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var m Mailer = NewLog(zap.New(core).Sugar())

	require.NoError(t, m.SendPasswordReset(context.Background(), "ana@uni.test", "http://app/reset?token=t"))

	entries := logs.FilterMessage("password reset requested").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ana@uni.test", entries[0].ContextMap()["to"])
	assert.Equal(t, "http://app/reset?token=t", entries[0].ContextMap()["url"])
}
