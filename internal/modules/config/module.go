package config

import (
	"cloud_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module: конфиг и глобальный логгер. Невалидный конфиг валит старт приложения.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
		fx.Invoke(InitLogger),
	)
}

func InitLogger(lc fx.Lifecycle, cfg *Config) error {
	logger.SetServiceName(cfg.App.Name)
	if _, err := logger.Init(logger.Config{
		Level:      cfg.App.LogLevel,
		File:       cfg.App.LogFile,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
	}); err != nil {
		return err
	}
	logger.Info("[CONFIG] effective config:\n%s", cfg.Redacted())

	lc.Append(fx.StopHook(logger.Sync))
	return nil
}
