package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// collector is the OTLP gRPC destination shared by traces and metrics.
type collector struct {
	endpoint string
	headers  map[string]string
	insecure bool
}

func collectorFor(cfg Config) (collector, bool) {
	if cfg.OTLPEndpoint == "" {
		return collector{}, false
	}

	return collector{endpoint: cfg.OTLPEndpoint, headers: cfg.OTLPHeaders, insecure: cfg.OTLPInsecure}, true
}

func (c collector) traceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.endpoint)}

	if c.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(c.headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(c.headers))
	}

	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	return exp, nil
}

func (c collector) metricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(c.endpoint)}

	if c.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	if len(c.headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(c.headers))
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}

	return exp, nil
}

// newTracerProvider batches spans to the collector, or returns a no-op
// provider when none is configured.
func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (trace.TracerProvider, stopFunc, error) {
	target, ok := collectorFor(cfg)
	if !ok {
		return nooptrace.NewTracerProvider(), stopNothing, nil
	}

	exp, err := target.traceExporter(ctx)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg)),
	)

	return tp, tp.Shutdown, nil
}

// meterPipeline is where instruments end up: an OTLP push reader, a
// Prometheus pull registry, or nowhere.
type meterPipeline struct {
	provider metric.MeterProvider
	handler  http.Handler
	stop     stopFunc
}

func newMeterPipeline(ctx context.Context, cfg Config, res *resource.Resource) (meterPipeline, error) {
	if target, ok := collectorFor(cfg); ok {
		exp, err := target.metricExporter(ctx)
		if err != nil {
			return meterPipeline{}, err
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
			sdkmetric.WithResource(res),
		)

		return meterPipeline{provider: mp, stop: mp.Shutdown}, nil
	}

	if !cfg.Prometheus {
		return meterPipeline{provider: noopmetric.NewMeterProvider(), stop: stopNothing}, nil
	}

	registry := prometheus.NewRegistry()

	reader, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return meterPipeline{}, fmt.Errorf("prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))

	return meterPipeline{
		provider: mp,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		stop:     mp.Shutdown,
	}, nil
}

// ParseOTLPHeaders reads the OTEL_EXPORTER_OTLP_HEADERS format,
// "k1=v1,k2=v2". Pairs without "=" are dropped; nil means no headers.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)

		if !found || key == "" {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[key] = strings.TrimSpace(value)
	}

	return headers
}
