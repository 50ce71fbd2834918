package strategy

import (
	"cloud_bot/internal/modules/config"
	"cloud_bot/internal/strategy"

	"go.uber.org/fx"
)

func newEngine(cfg *config.Config) strategy.Engine {
	st := cfg.SuperTrend
	return strategy.NewEngine(strategy.CloudConfig{
		Period1:     st.Period1,
		Multiplier1: st.Multiplier1,
		Period2:     st.Period2,
		Multiplier2: st.Multiplier2,
		Timeframe:   cfg.TimeframeDuration(),
		MinCandles:  cfg.Trading.MinCandles,
	})
}

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(newEngine),
	)
}
