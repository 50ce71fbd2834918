package strategy

import (
	"time"

	"cloud_bot/internal/indicator"
)

type CloudConfig struct {
	Period1     int
	Multiplier1 float64
	Period2     int
	Multiplier2 float64
	Timeframe   time.Duration
	MinCandles  int
}

// NewEngine: облако из двух супертрендов.
func NewEngine(cfg CloudConfig) Engine {
	return cloudEngine{params: indicator.Params{
		Band1:      indicator.BandParams{Period: cfg.Period1, Multiplier: cfg.Multiplier1},
		Band2:      indicator.BandParams{Period: cfg.Period2, Multiplier: cfg.Multiplier2},
		Timeframe:  cfg.Timeframe,
		MinCandles: cfg.MinCandles,
	}}
}
