package observability

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Log record keys added by NewLogger.
const (
	LogKeyTraceID = "trace_id"
	LogKeySpanID  = "span_id"
	LogKeyService = "service"
	LogKeyEnv     = "env"
	LogKeyMode    = "mode"
)

// NewLogger returns the process logger: text or JSON records on
// cfg.LogOutput, tagged with the service identity and correlated with the
// span active in the logging context.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.LogOutput
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var base slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.LogJSON {
		base = slog.NewJSONHandler(out, opts)
	}

	identity := []slog.Attr{
		slog.String(LogKeyService, cfg.ServiceName),
		slog.String(LogKeyMode, string(cfg.Mode)),
	}

	if cfg.Environment != "" {
		identity = append(identity, slog.String(LogKeyEnv, cfg.Environment))
	}

	return slog.New(WithSpanContext(base.WithAttrs(identity)))
}

// SpanContextHandler adds the trace and span IDs found in the record's
// context. Identity attributes set on the wrapped handler before any group
// stay at the top level.
type SpanContextHandler struct {
	next slog.Handler
}

// WithSpanContext wraps next.
func WithSpanContext(next slog.Handler) *SpanContextHandler {
	return &SpanContextHandler{next: next}
}

// Enabled reports whether next handles level.
func (h *SpanContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle forwards record to next, with span IDs when ctx carries a span.
func (h *SpanContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		record = record.Clone()
		record.AddAttrs(slog.String(LogKeyTraceID, sc.TraceID().String()))

		if sc.HasSpanID() {
			record.AddAttrs(slog.String(LogKeySpanID, sc.SpanID().String()))
		}
	}

	return h.next.Handle(ctx, record) //nolint:wrapcheck // handler chain passthrough.
}

// WithAttrs wraps next.WithAttrs.
func (h *SpanContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return WithSpanContext(h.next.WithAttrs(attrs))
}

// WithGroup wraps next.WithGroup.
func (h *SpanContextHandler) WithGroup(name string) slog.Handler {
	return WithSpanContext(h.next.WithGroup(name))
}
