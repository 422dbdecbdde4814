package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrOutcome = "outcome"
	attrDialect = "dialect"
)

//nolint:gochecknoglobals // instrument catalogue.
var (
	modulesInstrument      = instrument{"importsplit.rewrite.modules.total", "Modules processed, by outcome", "{module}"}
	declarationsInstrument = instrument{"importsplit.rewrite.declarations.total", "Named import declarations rewritten", "{declaration}"}
	membersInstrument      = instrument{"importsplit.rewrite.members.total", "Per-member require imports emitted", "{member}"}
)

// Module outcomes recorded by RewriteMetrics.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// RewriteStats is the per-module input to RewriteMetrics.
type RewriteStats struct {
	Dialect      string
	Outcome      string
	Declarations int64
	Members      int64
}

// RewriteMetrics counts transformed modules and the import declarations
// and members rewritten in them.
type RewriteMetrics struct {
	modulesTotal      metric.Int64Counter
	declarationsTotal metric.Int64Counter
	membersTotal      metric.Int64Counter
}

// NewRewriteMetrics creates the rewrite instruments from mt.
func NewRewriteMetrics(mt metric.Meter) (*RewriteMetrics, error) {
	var (
		rm  RewriteMetrics
		err error
	)

	if rm.modulesTotal, err = modulesInstrument.counter(mt); err != nil {
		return nil, err
	}

	if rm.declarationsTotal, err = declarationsInstrument.counter(mt); err != nil {
		return nil, err
	}

	if rm.membersTotal, err = membersInstrument.counter(mt); err != nil {
		return nil, err
	}

	return &rm, nil
}

// Record adds one module's stats. A nil receiver is a no-op.
func (rm *RewriteMetrics) Record(ctx context.Context, stats RewriteStats) {
	if rm == nil {
		return
	}

	dialect := attribute.String(attrDialect, stats.Dialect)

	rm.modulesTotal.Add(ctx, 1, metric.WithAttributes(dialect, attribute.String(attrOutcome, stats.Outcome)))

	if stats.Declarations > 0 {
		rm.declarationsTotal.Add(ctx, stats.Declarations, metric.WithAttributes(dialect))
	}

	if stats.Members > 0 {
		rm.membersTotal.Add(ctx, stats.Members, metric.WithAttributes(dialect))
	}
}
