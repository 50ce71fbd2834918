package notify

import (
	"testing"

	"cloud_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeController struct {
	enabled  bool
	closeAll int
	closed   []string
}

func (f *fakeController) Snapshot() models.EngineSnapshot {
	return models.EngineSnapshot{
		TradingEnabled: f.enabled,
		ConnectionOK:   true,
		Symbols: []models.SymbolStatus{
			{Symbol: "ETHUSDT", Side: models.SideShort, Quantity: 0.5, EntryPrice: 3000, UnrealizedPnL: -1.5, Zone: models.ZoneUnder},
			{Symbol: "BTCUSDT", Side: models.SideFlat, Zone: models.ZoneIn, LastError: "data unavailable"},
		},
	}
}

func (f *fakeController) SetTradingEnabled(v bool) { f.enabled = v }
func (f *fakeController) ForceCloseAll()           { f.closeAll++ }

func (f *fakeController) ForceClose(symbol string) error {
	if symbol != "BTCUSDT" && symbol != "ETHUSDT" {
		return errors.New("unknown symbol: " + symbol)
	}
	f.closed = append(f.closed, symbol)
	return nil
}

func TestHandleCommand(t *testing.T) {
	c := &fakeController{}

	assert.Contains(t, HandleCommand(c, "trade_on", ""), "включена")
	assert.True(t, c.enabled)
	assert.Contains(t, HandleCommand(c, "trade_off", ""), "паузе")
	assert.False(t, c.enabled)

	HandleCommand(c, "close_all", "")
	assert.Equal(t, 1, c.closeAll)

	assert.Contains(t, HandleCommand(c, "close", " ethusdt "), "ETHUSDT")
	assert.Equal(t, []string{"ETHUSDT"}, c.closed)
	assert.Contains(t, HandleCommand(c, "close", "DOGEUSDT"), "unknown symbol")
	assert.Contains(t, HandleCommand(c, "close", ""), "Использование")

	assert.Contains(t, HandleCommand(c, "help", ""), "/close_all")
}

func TestFormatStatus(t *testing.T) {
	out := FormatStatus((&fakeController{enabled: true}).Snapshot())

	assert.Equal(t,
		"📊 trading=on force_close=off connection=on\n"+
			"- BTCUSDT FLAT qty=0 entry=0 pnl=0.00 zone=IN err=data unavailable\n"+
			"- ETHUSDT SHORT qty=0.5 entry=3000 pnl=-1.50 zone=UNDER",
		out)
}

func TestTelegram_NilIsSilent(t *testing.T) {
	var tg *Telegram
	assert.NotPanics(t, func() { tg.Send("hello") })
	assert.NotPanics(t, func() { NewStdout().Sendf("x=%d", 1) })
}
