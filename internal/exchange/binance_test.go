package exchange

import (
	"context"
	"testing"
	"time"

	"cloud_bot/internal/models"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		name string
		qty  float64
		step float64
		want string
		ok   bool
	}{
		{"exact step", 0.004, 0.001, "0.004", true},
		{"floors down", 0.0049, 0.001, "0.004", true},
		{"integer step", 12.7, 1, "12", true},
		{"below step", 0.0004, 0.001, "", false},
		{"no step", 1.25, 0, "1.25", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FormatQuantity(tt.qty, tt.step)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFilters(t *testing.T) {
	filters := []map[string]interface{}{
		{"filterType": "PRICE_FILTER", "tickSize": "0.10"},
		{"filterType": "LOT_SIZE", "stepSize": "0.001", "minQty": "0.001", "maxQty": "1000"},
		{"filterType": "MARKET_LOT_SIZE", "stepSize": "0.001", "minQty": "0.001", "maxQty": "120"},
		{"filterType": "MIN_NOTIONAL", "notional": "100"},
	}
	inst := ParseFilters("BTCUSDT", filters)
	assert.Equal(t, "BTCUSDT", inst.Symbol)
	assert.InDelta(t, 0.001, inst.StepSize, 1e-12)
	assert.InDelta(t, 0.001, inst.MinQty, 1e-12)
	assert.InDelta(t, 120, inst.MaxQty, 1e-12)
	assert.InDelta(t, 100, inst.MinNotional, 1e-12)
}

func TestNormalizeCandles(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := []models.Candle{
		{OpenTime: t0.Add(30 * time.Minute), Close: 3},
		{OpenTime: t0, Close: 1},
		{OpenTime: t0.Add(15 * time.Minute), Close: 2},
		{OpenTime: t0.Add(15 * time.Minute), Close: 2.5},
	}
	out := NormalizeCandles(cs)
	require.Len(t, out, 3)
	assert.Equal(t, 1.0, out[0].Close)
	assert.Equal(t, 2.5, out[1].Close)
	assert.Equal(t, 3.0, out[2].Close)
}

func TestHoldingFromRisk(t *testing.T) {
	assert.Equal(t, models.FlatHolding("BTCUSDT"), holdingFromRisk("BTCUSDT", nil))

	h := holdingFromRisk("BTCUSDT", &futures.PositionRisk{
		Symbol: "BTCUSDT", PositionAmt: "-0.004", EntryPrice: "50000", UnRealizedProfit: "-1.5",
	})
	assert.Equal(t, models.SideShort, h.Side)
	assert.InDelta(t, 0.004, h.Quantity, 1e-12)
	assert.InDelta(t, 50000, h.EntryPrice, 1e-9)
	assert.InDelta(t, -1.5, h.UnrealizedPnL, 1e-9)

	h = holdingFromRisk("ETHUSDT", &futures.PositionRisk{Symbol: "ETHUSDT", PositionAmt: "0.5"})
	assert.Equal(t, models.SideLong, h.Side)
}

func TestOrderErrorFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"margin", &common.APIError{Code: -2019, Message: "Margin is insufficient."}, ErrInsufficientMargin},
		{"precision", &common.APIError{Code: -1111, Message: "Precision is over the maximum defined for this asset."}, ErrInvalidQuantity},
		{"notional", &common.APIError{Code: -4164, Message: "Order's notional must be no smaller than 100"}, ErrInvalidQuantity},
		{"other", &common.APIError{Code: -4131, Message: "The counterparty's best price does not meet the PERCENT_PRICE filter limit."}, ErrExchangeRejected},
		{"timeout", errors.Wrap(context.DeadlineExceeded, "post"), ErrOutcomeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := orderErrorFrom(tt.err)
			assert.True(t, errors.Is(err, tt.kind), "%v", err)
			assert.True(t, errors.Is(err, ErrOrderExecution))
		})
	}

	err := orderErrorFrom(&common.APIError{Code: -1003, Message: "Too many requests"})
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestReadError(t *testing.T) {
	err := readError("klines", "BTCUSDT", errors.New("connection reset"))
	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Contains(t, err.Error(), "klines BTCUSDT: connection reset")

	err = readError("klines", "BTCUSDT", &common.APIError{Code: -1003, Message: "Too many requests"})
	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestWrapDataError(t *testing.T) {
	assert.NoError(t, WrapDataError(nil))

	cause := errors.Wrap(context.DeadlineExceeded, "get klines")
	err := WrapDataError(cause)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "data unavailable: get klines: context deadline exceeded", err.Error())

	// повторная обёртка не плодит префиксы
	assert.Equal(t, err, WrapDataError(err))
}

func TestIsNoChange(t *testing.T) {
	assert.True(t, isNoChange(&common.APIError{Code: -4046, Message: "No need to change margin type."}))
	assert.False(t, isNoChange(&common.APIError{Code: -4048, Message: "Margin type cannot be changed if there exists position."}))
}
