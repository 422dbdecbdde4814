package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricCacheHits   = "importsplit.cache.hits"
	metricCacheMisses = "importsplit.cache.misses"
	metricCacheBytes  = "importsplit.cache.bytes"
)

// CacheStatsProvider exposes result cache counters for OTel export.
type CacheStatsProvider interface {
	CacheHits() int64
	CacheMisses() int64
	CacheBytes() int64
}

// RegisterCacheMetrics registers observable gauges reporting the counters
// of provider. A nil provider registers nothing.
func RegisterCacheMetrics(mt metric.Meter, provider CacheStatsProvider) error {
	if provider == nil {
		return nil
	}

	gauges := []struct {
		name, desc, unit string
		read             func() int64
	}{
		{metricCacheHits, "Result cache hit count", "{hit}", provider.CacheHits},
		{metricCacheMisses, "Result cache miss count", "{miss}", provider.CacheMisses},
		{metricCacheBytes, "Bytes held by the result cache", "By", provider.CacheBytes},
	}

	for _, g := range gauges {
		_, err := mt.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit(g.unit),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(g.read())

				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("create %s: %w", g.name, err)
		}
	}

	return nil
}
