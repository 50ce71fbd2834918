package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 100.0, cfg.Trading.PositionSizeUSDT)
	assert.Equal(t, 20, cfg.Trading.Leverage)
	assert.Equal(t, "15m", cfg.Trading.Timeframe)
	assert.Equal(t, 15*time.Minute, cfg.TimeframeDuration())
	assert.Equal(t, 50, cfg.Trading.MinCandles)
	assert.Equal(t, 60*time.Second, cfg.Trading.CycleInterval)
	assert.Equal(t, 10, cfg.SuperTrend.Period1)
	assert.Equal(t, 6.0, cfg.SuperTrend.Multiplier2)
	assert.False(t, cfg.Trading.Enabled)
	assert.True(t, cfg.Trading.Isolated)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeYAML(t, `
trading:
  symbols: [btcusdt, ethusdt]
  position_size_usdt: 10
  leverage: 5
  timeframe: "240"
  enabled: true
supertrend:
  period1: 7
  multiplier1: 2.5
`)
	t.Setenv("TRADING_LEVERAGE", "20")
	t.Setenv("EXCHANGE_API_KEY", "abcdef123456")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 10.0, cfg.Trading.PositionSizeUSDT)
	assert.Equal(t, 20, cfg.Trading.Leverage)
	assert.Equal(t, "4h", cfg.Trading.Timeframe)
	assert.True(t, cfg.Trading.Enabled)
	assert.Equal(t, 7, cfg.SuperTrend.Period1)
	assert.Equal(t, "abcdef123456", cfg.Exchange.APIKey)

	red := cfg.Redacted()
	assert.NotContains(t, red, "abcdef123456")
	assert.Contains(t, red, "ab****56")
}

func TestLoad_SymbolsFromEnvList(t *testing.T) {
	t.Setenv("TRADING_SYMBOLS", "BTCUSDT, solusdt")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, cfg.Trading.Symbols)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no symbols", "trading:\n  symbols: []\n"},
		{"duplicate symbols", "trading:\n  symbols: [BTCUSDT, btcusdt]\n"},
		{"zero size", "trading:\n  position_size_usdt: 0\n"},
		{"leverage too high", "trading:\n  leverage: 200\n"},
		{"unknown timeframe", "trading:\n  timeframe: 7m\n"},
		{"bad band", "supertrend:\n  multiplier2: 0\n"},
		{"min candles below period", "trading:\n  min_candles: 5\n"},
		{"limit below minimum", "trading:\n  candles_limit: 50\n"},
		{"order outlives shutdown", "exchange:\n  order_timeout: 25s\n  call_timeout: 10s\n"},
		{"telegram without chat", "telegram:\n  token: xyz\n"},
		{"broken yaml", "trading: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration), "%v", err)
		})
	}
}
