package main

import (
	"cloud_bot/internal/exchange"
	"cloud_bot/internal/modules/config"
	exchangemod "cloud_bot/internal/modules/exchange"
	"cloud_bot/internal/modules/health"
	notifymod "cloud_bot/internal/modules/notify"
	"cloud_bot/internal/modules/postgres"
	strategymod "cloud_bot/internal/modules/strategy"
	tracingmod "cloud_bot/internal/modules/tracing"
	"cloud_bot/internal/notify"
	"cloud_bot/internal/runner"

	"go.uber.org/fx"
)

func main() {
	fx.New(
		// воркер дожидается начатого ордера, дефолтных 15s fx может не хватить
		fx.StopTimeout(config.ShutdownTimeout),
		config.Module(),
		tracingmod.Module(),
		postgres.Module(),
		exchangemod.Module(),
		strategymod.Module(),
		notifymod.Module(),
		runner.Module(),
		health.Module(),
		fx.Provide(
			// координатор управляется и из Telegram, и по HTTP
			func(c *runner.Coordinator) notify.Controller { return c },
			func(c *runner.Coordinator) health.Controller { return c },
			func(s *exchange.PriceStream) health.StreamStatus { return s },
		),
	).Run()
}
