package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	scopeName   = "importsplit"
	attrAppMode = "app.mode"
)

// Providers is the telemetry handed to the rest of the program.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// MetricsHandler is the Prometheus scrape handler, or nil when metrics
	// are exported over OTLP or discarded.
	MetricsHandler http.Handler

	// Shutdown flushes and stops the exporters. Call it once before exit.
	Shutdown func(ctx context.Context) error
}

// stopFunc flushes and stops one provider.
type stopFunc func(ctx context.Context) error

func stopNothing(context.Context) error { return nil }

// Init builds the providers described by cfg and installs them, along with
// the W3C trace-context and baggage propagators, as the otel globals.
func Init(cfg Config) (Providers, error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return Providers{}, err
	}

	tracerProvider, stopTracing, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return Providers{}, fmt.Errorf("tracing: %w", err)
	}

	pipeline, err := newMeterPipeline(ctx, cfg, res)
	if err != nil {
		return Providers{}, errors.Join(fmt.Errorf("metrics: %w", err), stopTracing(ctx))
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(pipeline.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return Providers{
		Tracer:         tracerProvider.Tracer(scopeName),
		Meter:          pipeline.provider.Meter(scopeName),
		Logger:         NewLogger(cfg),
		MetricsHandler: pipeline.handler,
		Shutdown:       stopAll(cfg.ShutdownTimeout, stopTracing, pipeline.stop),
	}, nil
}

// stopAll runs every stop function under one deadline and joins their errors.
func stopAll(timeout time.Duration, stops ...stopFunc) func(ctx context.Context) error {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		errs := make([]error, 0, len(stops))
		for _, stop := range stops {
			errs = append(errs, stop(ctx))
		}

		return errors.Join(errs...)
	}
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	if cfg.Mode != "" {
		attrs = append(attrs, attribute.String(attrAppMode, string(cfg.Mode)))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	return res, nil
}
