package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	old := SetServiceName("cloud_bot_test")
	t.Cleanup(func() {
		Replace(zap.NewNop())
		SetServiceName(old)
	})
	return logs
}

func TestPrintfHelpersCarryService(t *testing.T) {
	logs := observe(t)

	Info("[ENGINE] started %d symbols", 3)
	Warn("[WS] reconnect in %s", "5s")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "[ENGINE] started 3 symbols", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "cloud_bot_test", entries[0].ContextMap()["service"])
}

func TestNamed(t *testing.T) {
	logs := observe(t)

	Named("worker").Info("[WORKER] started", zap.String("symbol", "BTCUSDT"))

	entries := logs.FilterMessage("[WORKER] started").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "worker", entries[0].LoggerName)
	assert.Equal(t, "BTCUSDT", entries[0].ContextMap()["symbol"])
	assert.Equal(t, "cloud_bot_test", entries[0].ContextMap()["service"])
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { Replace(zap.NewNop()) })

	_, err := Init(Config{Level: "verbose"})
	require.Error(t, err)

	l, err := Init(Config{Level: "WARN", File: filepath.Join(t.TempDir(), "bot.log")})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
