// Package exchangetest: управляемый шлюз для тестов движка.
package exchangetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud_bot/internal/exchange"
	"cloud_bot/internal/models"
)

// Call: одна запись журнала вызовов.
type Call struct {
	Op     string
	Symbol string
	Side   models.OrderSide
	Qty    float64
}

// Gateway хранит позиции в памяти и пишет каждый вызов.
// Ошибки задаются полями *Err до запуска.
type Gateway struct {
	mu sync.Mutex

	Candles  map[string][]models.Candle
	Holdings map[string]models.Holding
	Prices   map[string]float64
	Inst     exchange.Instrument

	CandlesErr  error
	PositionErr error
	LeverageErr error
	PlaceErr    error
	CloseErr    error
	PriceErr    error

	calls []Call
}

var _ exchange.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		Candles:  make(map[string][]models.Candle),
		Holdings: make(map[string]models.Holding),
		Prices:   make(map[string]float64),
		Inst:     exchange.Instrument{StepSize: 0.001, MinQty: 0.001},
	}
}

func (g *Gateway) record(c Call) {
	g.calls = append(g.calls, c)
}

func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// Count считает вызовы операции (по всем символам, если symbol пустой).
func (g *Gateway) Count(op, symbol string) int {
	n := 0
	for _, c := range g.Calls() {
		if c.Op == op && (symbol == "" || c.Symbol == symbol) {
			n++
		}
	}
	return n
}

func (g *Gateway) SetHolding(h models.Holding) {
	g.mu.Lock()
	g.Holdings[h.Symbol] = h
	g.mu.Unlock()
}

func (g *Gateway) GetCandles(_ context.Context, symbol, _ string, limit int) ([]models.Candle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: "get_candles", Symbol: symbol})
	if g.CandlesErr != nil {
		return nil, g.CandlesErr
	}
	cs := g.Candles[symbol]
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	return append([]models.Candle(nil), cs...), nil
}

func (g *Gateway) GetPosition(_ context.Context, symbol string) (models.Holding, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: "get_position", Symbol: symbol})
	if g.PositionErr != nil {
		return models.FlatHolding(symbol), g.PositionErr
	}
	h, ok := g.Holdings[symbol]
	if !ok {
		return models.FlatHolding(symbol), nil
	}
	return h, nil
}

func (g *Gateway) SetLeverage(_ context.Context, symbol string, _ int, _ bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: "set_leverage", Symbol: symbol})
	return g.LeverageErr
}

func (g *Gateway) PlaceOrder(_ context.Context, symbol string, side models.OrderSide, qty float64) (exchange.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: "place_order", Symbol: symbol, Side: side, Qty: qty})
	if g.PlaceErr != nil {
		return exchange.OrderResult{}, g.PlaceErr
	}

	h := g.Holdings[symbol]
	h.Symbol = symbol
	h.Quantity = qty
	h.EntryPrice = g.Prices[symbol]
	h.Side = models.SideLong
	if side == models.OrderSell {
		h.Side = models.SideShort
	}
	g.Holdings[symbol] = h

	return exchange.OrderResult{
		OrderID:  fmt.Sprintf("%d", len(g.calls)),
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		AvgPrice: g.Prices[symbol],
		Status:   "FILLED",
		Time:     time.Now(),
	}, nil
}

func (g *Gateway) ClosePosition(_ context.Context, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: "close_position", Symbol: symbol})
	if g.CloseErr != nil {
		return g.CloseErr
	}
	g.Holdings[symbol] = models.FlatHolding(symbol)
	return nil
}

func (g *Gateway) LastPrice(_ context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PriceErr != nil {
		return 0, g.PriceErr
	}
	p, ok := g.Prices[symbol]
	if !ok {
		return 0, exchange.ErrDataUnavailable
	}
	return p, nil
}

func (g *Gateway) Instrument(_ context.Context, symbol string) (exchange.Instrument, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	inst := g.Inst
	inst.Symbol = symbol
	return inst, nil
}
