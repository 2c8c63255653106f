package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSideEffectErrorIsStructured(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Setup("test", "info") })

	LogSideEffectError("notify_custom_order_request", "order-1", errors.New("unavailable"))

	entries := logs.FilterMessage("side effect failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "notify_custom_order_request", fields["action"])
	assert.Equal(t, "order-1", fields["resource_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestPrintfHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Setup("test", "info") })

	Info("sent message %s", "m1")
	Error("failed: %v", errors.New("boom"))

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "sent message m1", all[0].Message)
	assert.Equal(t, "failed: boom", all[1].Message)
}
