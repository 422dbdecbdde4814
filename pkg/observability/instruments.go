package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instrument describes one metric to create.
type instrument struct {
	name, desc, unit string
}

func (in instrument) counter(mt metric.Meter) (metric.Int64Counter, error) {
	c, err := mt.Int64Counter(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", in.name, err)
	}

	return c, nil
}

func (in instrument) upDownCounter(mt metric.Meter) (metric.Int64UpDownCounter, error) {
	c, err := mt.Int64UpDownCounter(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", in.name, err)
	}

	return c, nil
}

func (in instrument) histogram(mt metric.Meter, bounds []float64) (metric.Float64Histogram, error) {
	h, err := mt.Float64Histogram(in.name,
		metric.WithDescription(in.desc),
		metric.WithUnit(in.unit),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", in.name, err)
	}

	return h, nil
}
