package exchange

import (
	"context"
	"time"

	"cloud_bot/internal/models"
)

// Gateway: логические операции биржи, которые нужны движку.
type Gateway interface {
	// GetCandles возвращает свечи от старых к новым, без дублей OpenTime.
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	// GetPosition: отсутствие позиции: Holding{Side: FLAT}, не ошибка.
	GetPosition(ctx context.Context, symbol string) (models.Holding, error)
	// SetLeverage идемпотентен.
	SetLeverage(ctx context.Context, symbol string, leverage int, isolated bool) error
	PlaceOrder(ctx context.Context, symbol string, side models.OrderSide, qty float64) (OrderResult, error)
	// ClosePosition закрывает всю позицию, на пустой позиции ничего не делает.
	ClosePosition(ctx context.Context, symbol string) error

	LastPrice(ctx context.Context, symbol string) (float64, error)
	Instrument(ctx context.Context, symbol string) (Instrument, error)
}

type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          models.OrderSide
	Quantity      float64
	AvgPrice      float64
	Status        string
	Time          time.Time
}

// Instrument: торговые ограничения символа.
type Instrument struct {
	Symbol      string
	StepSize    float64
	MinQty      float64
	MaxQty      float64
	MinNotional float64
}
