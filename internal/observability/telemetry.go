package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/railzwaylabs/cipherpoll/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrUnsupportedProtocol = errors.New("unsupported_telemetry_protocol")

// ShutdownFunc flushes and stops exporters.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// SetupTelemetry installs global OTLP trace and meter providers. Spans from the
// aggregation service and database metrics from otelgorm flow through them.
// With no endpoint configured nothing is installed and the globals stay no-op.
func SetupTelemetry(ctx context.Context, cfg config.Config) (ShutdownFunc, error) {
	tc := cfg.Telemetry
	if strings.TrimSpace(tc.Endpoint) == "" {
		return noopShutdown, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("deployment.environment", cfg.Environment),
	)

	spans, err := newSpanExporter(ctx, tc)
	if err != nil {
		return noopShutdown, err
	}
	metrics, err := newMetricExporter(ctx, tc)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return noopShutdown, err
	}

	ratio := tc.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	interval := tc.MetricInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(interval))),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newSpanExporter(ctx context.Context, tc config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(tc.Protocol) {
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return exp, nil
	case "", "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return exp, nil
	default:
		return nil, ErrUnsupportedProtocol
	}
}

func newMetricExporter(ctx context.Context, tc config.TelemetryConfig) (sdkmetric.Exporter, error) {
	switch strings.ToLower(tc.Protocol) {
	case "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return exp, nil
	case "", "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return exp, nil
	default:
		return nil, ErrUnsupportedProtocol
	}
}

func registerTelemetry(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
	shutdown, err := SetupTelemetry(context.Background(), cfg)
	if err != nil {
		return err
	}
	if cfg.Telemetry.Endpoint != "" {
		log.Info("telemetry export enabled",
			zap.String("endpoint", cfg.Telemetry.Endpoint),
			zap.String("protocol", cfg.Telemetry.Protocol),
		)
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return nil
}
