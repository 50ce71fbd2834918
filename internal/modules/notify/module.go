package notify

import (
	"context"

	"cloud_bot/internal/modules/config"
	"cloud_bot/internal/notify"
	"cloud_bot/pkg/logger"

	"go.uber.org/fx"
)

type Result struct {
	fx.Out

	Notifier notify.Notifier
	Telegram *notify.Telegram
}

// newNotifier: без токена или при ошибке Telegram: stdout.
func newNotifier(cfg *config.Config) Result {
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err == nil {
			return Result{Notifier: tg, Telegram: tg}
		}
		logger.Warn("[TG] disabled: %v", err)
	}
	return Result{Notifier: notify.NewStdout()}
}

// serveCommands слушает команды оператора, если Telegram включён.
func serveCommands(lc fx.Lifecycle, tg *notify.Telegram, ctrl notify.Controller) {
	if tg == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go tg.Serve(ctx, ctrl)
			logger.Info("[TG] command loop started")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(newNotifier),
		fx.Invoke(serveCommands),
	)
}
