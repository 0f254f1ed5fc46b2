package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	t.Cleanup(func() { Set(zap.NewNop()) })
	require.NoError(t, Init("debug", "console"))
	require.NoError(t, Init("warn", "json"))
	assert.False(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.Error(t, Init("loud", "json"))
}

func TestHelpersWriteToGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	Debug("hidden")
	Info("hello", zap.String("k", "v"))
	Warn("careful")
	Error("bad")

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)
	assert.Equal(t, "v", logs.All()[0].ContextMap()["k"])
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}
