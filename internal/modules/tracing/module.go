package tracing

import (
	"cloud_bot/internal/modules/config"
	"cloud_bot/pkg/logger"
	"cloud_bot/pkg/tracing"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// initTracer: выключено: остаётся глобальный noop-трейсер opentracing.
func initTracer(lc fx.Lifecycle, cfg *config.Config) error {
	if !cfg.Tracing.Enabled {
		return nil
	}
	_, closer, err := tracing.InitTracer(tracing.Config{
		ServiceName: cfg.App.Name,
		Host:        cfg.Tracing.Host,
		Port:        cfg.Tracing.Port,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return errors.Wrap(err, "init jaeger")
	}
	logger.Info("[TRACE] jaeger agent %s:%d", cfg.Tracing.Host, cfg.Tracing.Port)
	lc.Append(fx.StopHook(closer))
	return nil
}

func Module() fx.Option {
	return fx.Module("tracing",
		fx.Invoke(initTracer),
	)
}
