package exchange_test

import (
	"context"
	"testing"
	"time"

	"cloud_bot/internal/exchange"
	"cloud_bot/internal/exchange/exchangetest"
	"cloud_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ops(g *exchangetest.Gateway) []string {
	var out []string
	for _, c := range g.Calls() {
		out = append(out, c.Op)
	}
	return out
}

func TestExecutor_OpenLongAndShort(t *testing.T) {
	g := exchangetest.New()
	ex := exchange.NewExecutor(g, 0)

	res, err := ex.Execute(context.Background(), exchange.Order{Symbol: "BTCUSDT", Intent: models.IntentOpenLong, Quantity: 0.004})
	require.NoError(t, err)
	require.NotNil(t, res.Opened)
	assert.Equal(t, exchange.StageDone, res.Stage)
	assert.Equal(t, models.OrderBuy, res.Opened.Side)

	_, err = ex.Execute(context.Background(), exchange.Order{Symbol: "ETHUSDT", Intent: models.IntentOpenShort, Quantity: 0.1})
	require.NoError(t, err)

	calls := g.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, models.OrderSell, calls[1].Side)
	assert.InDelta(t, 0.1, calls[1].Qty, 1e-12)
}

func TestExecutor_ReverseClosesThenOpens(t *testing.T) {
	g := exchangetest.New()
	g.SetHolding(models.Holding{Symbol: "BTCUSDT", Side: models.SideShort, Quantity: 0.01})
	ex := exchange.NewExecutor(g, time.Millisecond)

	res, err := ex.Execute(context.Background(), exchange.Order{Symbol: "BTCUSDT", Intent: models.IntentReverseToLong, Quantity: 0.004})
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.Equal(t, exchange.StageDone, res.Stage)
	assert.Equal(t, []string{"close_position", "place_order"}, ops(g))
	assert.Equal(t, models.OrderBuy, g.Calls()[1].Side)
}

func TestExecutor_ReverseCloseFailureDoesNotOpen(t *testing.T) {
	g := exchangetest.New()
	g.CloseErr = errors.New("boom")
	ex := exchange.NewExecutor(g, 0)

	res, err := ex.Execute(context.Background(), exchange.Order{Symbol: "BTCUSDT", Intent: models.IntentReverseToShort, Quantity: 0.004})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exchange.ErrOrderExecution))
	assert.Equal(t, exchange.StageClosing, res.Stage)
	assert.Equal(t, 0, g.Count("place_order", ""))
}

func TestExecutor_ReverseOpenFailureLeavesFlat(t *testing.T) {
	g := exchangetest.New()
	g.SetHolding(models.Holding{Symbol: "BTCUSDT", Side: models.SideLong, Quantity: 0.01})
	g.PlaceErr = exchange.NewOrderError(exchange.ErrInsufficientMargin, "margin is insufficient")
	ex := exchange.NewExecutor(g, 0)

	res, err := ex.Execute(context.Background(), exchange.Order{Symbol: "BTCUSDT", Intent: models.IntentReverseToShort, Quantity: 0.004})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exchange.ErrInsufficientMargin))
	assert.True(t, errors.Is(err, exchange.ErrOrderExecution))
	assert.Equal(t, exchange.StageLeftFlat, res.Stage)
	assert.True(t, res.Closed)
	// без повторной попытки
	assert.Equal(t, 1, g.Count("place_order", ""))
}

func TestExecutor_TimeoutIsUnknownOutcome(t *testing.T) {
	g := exchangetest.New()
	g.PlaceErr = errors.Wrap(context.DeadlineExceeded, "post order")
	ex := exchange.NewExecutor(g, 0)

	_, err := ex.Execute(context.Background(), exchange.Order{Symbol: "BTCUSDT", Intent: models.IntentOpenLong, Quantity: 0.004})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exchange.ErrOutcomeUnknown))
	assert.True(t, errors.Is(err, exchange.ErrOrderExecution))
}

func TestExecutor_CloseOnFlatIsNoop(t *testing.T) {
	g := exchangetest.New()
	ex := exchange.NewExecutor(g, 0)

	res, err := ex.Execute(context.Background(), exchange.Order{Symbol: "BTCUSDT", Intent: models.IntentClose})
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.Equal(t, 1, g.Count("close_position", "BTCUSDT"))
	assert.Equal(t, 0, g.Count("place_order", ""))
}
