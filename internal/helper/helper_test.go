package helper

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormTF(t *testing.T) {
	tests := map[string]string{
		"15":       "15m",
		"15m":      "15m",
		"60":       "1h",
		"240":      "4h",
		" 4H ":     "4h",
		"candle1m": "1m",
		"D":        "1d",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormTF(in), in)
	}
}

func TestTimeframeDuration(t *testing.T) {
	d, ok := TimeframeDuration("15")
	assert.True(t, ok)
	assert.Equal(t, 15*time.Minute, d)

	_, ok = TimeframeDuration("7m")
	assert.False(t, ok)
}

func TestNextBoundary(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(time.Minute+2*time.Second),
		NextBoundary(base.Add(30*time.Second), time.Minute, 2*time.Second))
	assert.Equal(t, base.Add(2*time.Second),
		NextBoundary(base.Add(time.Second), time.Minute, 2*time.Second))
	// ровно на границе: следующий слот
	assert.Equal(t, base.Add(time.Minute+2*time.Second),
		NextBoundary(base.Add(2*time.Second), time.Minute, 2*time.Second))
}

func TestFloorToStep(t *testing.T) {
	step := decimal.RequireFromString("0.001")
	assert.Equal(t, "0.004", FloorToStep(decimal.RequireFromString("0.004"), step).String())
	assert.Equal(t, "0.004", FloorToStep(decimal.RequireFromString("0.00499"), step).String())
	assert.Equal(t, "0", FloorToStep(decimal.RequireFromString("0.0009"), step).String())
	assert.Equal(t, "1.5", FloorToStep(decimal.RequireFromString("1.5"), decimal.Zero).String())
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, SleepCtx(context.Background(), time.Millisecond))
	assert.True(t, SleepCtx(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, SleepCtx(ctx, time.Hour))
	assert.False(t, SleepCtx(ctx, 0))
}
