package runner

import (
	"context"

	"cloud_bot/internal/modules/config"
	health "cloud_bot/internal/modules/health/service"

	"go.uber.org/fx"
)

func NewConfig(cfg *config.Config) Config {
	t := cfg.Trading
	return Config{
		Symbols:           t.Symbols,
		Leverage:          t.Leverage,
		Isolated:          t.Isolated,
		TradingEnabled:    t.Enabled,
		ForceCloseTimeout: t.ForceCloseTimeout,
		Worker: WorkerConfig{
			Timeframe:        t.Timeframe,
			CandlesLimit:     t.CandlesLimit,
			PositionSizeUSDT: t.PositionSizeUSDT,
			Leverage:         t.Leverage,
			CallTimeout:      cfg.Exchange.CallTimeout,
			OrderTimeout:     cfg.Exchange.OrderTimeout,
			CycleInterval:    t.CycleInterval,
			CycleOffset:      t.CycleOffset,
			MaxBackoff:       t.MaxBackoff,
		},
	}
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewConfig,
			NewCoordinator,
		),
		fx.Invoke(func(lc fx.Lifecycle, c *Coordinator, state *health.State) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if err := c.Start(ctx); err != nil {
						return err
					}
					state.SetReady(true)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					state.SetReady(false)
					return c.Stop(ctx)
				},
			})
		}),
	)
}
