package tracing

import (
	"context"
	"fmt"

	"cloud_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type Config struct {
	ServiceName string
	Host        string
	Port        int
	// SampleRate: доля трассируемых циклов, при 0 или 1 трассируются все.
	SampleRate float64
}

// InitTracer ставит глобальный jaeger-трейсер. Вызывать до старта воркеров.
func InitTracer(conf Config) (opentracing.Tracer, func(), error) {
	sampler := &jCfg.SamplerConfig{Type: "const", Param: 1}
	if conf.SampleRate > 0 && conf.SampleRate < 1 {
		sampler = &jCfg.SamplerConfig{Type: "probabilistic", Param: conf.SampleRate}
	}
	cfg := &jCfg.Configuration{
		ServiceName: conf.ServiceName,
		Sampler:     sampler,
		Reporter: &jCfg.ReporterConfig{
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(jCfg.Metrics(metrics.NullFactory))
	if err != nil {
		return nil, nil, err
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, func() {
		if err := closer.Close(); err != nil {
			logger.Error("[TRACE] close jaeger tracer: %v", err)
		}
		opentracing.SetGlobalTracer(opentracing.NoopTracer{})
	}, nil
}

// StartSpan открывает дочерний спан с тегом символа.
// Без InitTracer работает глобальный noop-трейсер.
func StartSpan(ctx context.Context, op, symbol string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	if symbol != "" {
		span.SetTag("symbol", symbol)
	}
	return span, ctx
}

// Finish закрывает спан, помечая ошибку.
func Finish(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.LogFields(otlog.Error(err))
	}
	span.Finish()
}
