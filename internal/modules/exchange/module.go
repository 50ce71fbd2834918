package exchange

import (
	"context"

	"cloud_bot/internal/exchange"
	"cloud_bot/internal/modules/config"

	"go.uber.org/fx"
)

// newPriceStream: nil, если стрим выключен в конфиге.
func newPriceStream(lc fx.Lifecycle, cfg *config.Config) *exchange.PriceStream {
	if !cfg.Exchange.PriceStream {
		return nil
	}
	s := exchange.NewPriceStream(cfg.Trading.Symbols, cfg.Exchange.Testnet)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
	return s
}

func newGateway(cfg *config.Config, stream *exchange.PriceStream) exchange.Gateway {
	return exchange.NewBinance(exchange.BinanceConfig{
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.APISecret,
		Testnet:           cfg.Exchange.Testnet,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		Burst:             cfg.Exchange.Burst,
		PriceMaxAge:       cfg.Exchange.PriceMaxAge,
	}, stream)
}

func newExecutor(cfg *config.Config, gw exchange.Gateway) *exchange.Executor {
	return exchange.NewExecutor(gw, cfg.Trading.ReversalSettle)
}

// Module поднимает шлюз Binance, стрим mark price и исполнитель ордеров.
func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			newPriceStream,
			newGateway,
			newExecutor,
		),
	)
}
