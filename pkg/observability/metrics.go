package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Values of the status attribute.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

const (
	attrOp     = "op"
	attrStatus = "status"
)

//nolint:gochecknoglobals // instrument catalogue.
var (
	requestsInstrument = instrument{"importsplit.requests.total", "Operations completed, by op and status", "{request}"}
	durationInstrument = instrument{"importsplit.request.duration.seconds", "Operation latency", "s"}
	errorsInstrument   = instrument{"importsplit.errors.total", "Operations that ended in an error", "{error}"}
	inflightInstrument = instrument{"importsplit.inflight.requests", "Operations in progress", "{request}"}

	// durationBounds spans single-module transforms (well under a
	// millisecond) up to whole-tree batch runs.
	durationBounds = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10}
)

// REDMetrics records rate, errors and duration per operation. All methods
// are no-ops on a nil receiver.
type REDMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	inflight metric.Int64UpDownCounter
}

// NewREDMetrics creates the RED instruments on mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	var (
		red REDMetrics
		err error
	)

	if red.requests, err = requestsInstrument.counter(mt); err != nil {
		return nil, err
	}

	if red.duration, err = durationInstrument.histogram(mt, durationBounds); err != nil {
		return nil, err
	}

	if red.errors, err = errorsInstrument.counter(mt); err != nil {
		return nil, err
	}

	if red.inflight, err = inflightInstrument.upDownCounter(mt); err != nil {
		return nil, err
	}

	return &red, nil
}

// RecordRequest counts one finished operation and its latency.
func (m *REDMetrics) RecordRequest(ctx context.Context, op, status string, elapsed time.Duration) {
	if m == nil {
		return
	}

	opAttr := attribute.String(attrOp, op)
	withStatus := metric.WithAttributeSet(attribute.NewSet(opAttr, attribute.String(attrStatus, status)))

	m.requests.Add(ctx, 1, withStatus)
	m.duration.Record(ctx, elapsed.Seconds(), withStatus)

	if status == StatusError {
		m.errors.Add(ctx, 1, metric.WithAttributes(opAttr))
	}
}

// TrackInflight counts op as in progress until the returned func runs.
func (m *REDMetrics) TrackInflight(ctx context.Context, op string) (done func()) {
	if m == nil {
		return func() {}
	}

	opt := metric.WithAttributes(attribute.String(attrOp, op))
	m.inflight.Add(ctx, 1, opt)

	return func() { m.inflight.Add(ctx, -1, opt) }
}
