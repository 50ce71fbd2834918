package strategy

import (
	"time"

	"cloud_bot/internal/indicator"
	"cloud_bot/internal/models"
)

// Engine: то, что воркер дергает на каждом цикле.
type Engine interface {
	Evaluate(candles []models.Candle, now time.Time) (models.CloudState, error)
}

// EngineFunc позволяет подставить функцию вместо Engine (в тестах).
type EngineFunc func(candles []models.Candle, now time.Time) (models.CloudState, error)

func (f EngineFunc) Evaluate(candles []models.Candle, now time.Time) (models.CloudState, error) {
	return f(candles, now)
}

type cloudEngine struct {
	params indicator.Params
}

func (e cloudEngine) Evaluate(candles []models.Candle, now time.Time) (models.CloudState, error) {
	return indicator.Cloud(candles, e.params, now)
}
