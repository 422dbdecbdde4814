// Package loader adapts the rewrite engine to a build pipeline's loader
// contract: one source text in, one source text out, plus a cacheability
// hint for the host.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/importsplit/pkg/cache"
	"github.com/Sumatoshi-tech/importsplit/pkg/observability"
	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
)

// ErrPanic wraps a panic recovered while transforming.
var ErrPanic = errors.New("transform panicked")

const (
	spanName = "loader.transform"
	opName   = "loader.transform"
)

// Host is the build pipeline invoking the loader.
type Host interface {
	// Cacheable marks the current result as a pure function of its input.
	Cacheable()
}

// HostFunc adapts a plain function to Host.
type HostFunc func()

// Cacheable calls f.
func (f HostFunc) Cacheable() { f() }

// NopHost is a Host without caching.
type NopHost struct{}

// Cacheable does nothing.
func (NopHost) Cacheable() {}

// Deps carries the optional collaborators of a Loader.
type Deps struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	RED     *observability.REDMetrics
	Rewrite *observability.RewriteMetrics
	// Cache memoizes results by dialect, targets and source. Nil disables it.
	Cache *cache.LRU
}

// Loader runs the rewrite engines under the loader contract. Load never
// fails: any error leaves the source untouched.
type Loader struct {
	engines *rewrite.Set
	opts    rewrite.Options
	logger  *slog.Logger
	tracer  trace.Tracer
	red     *observability.REDMetrics
	rewrite *observability.RewriteMetrics
	cache   *cache.LRU
}

// New creates a Loader. opts must be the Options engines was built with;
// requests overriding the dialect or targets get engines built from them.
func New(engines *rewrite.Set, opts rewrite.Options, deps Deps) *Loader {
	ld := &Loader{
		engines: engines,
		opts:    opts,
		logger:  deps.Logger,
		tracer:  deps.Tracer,
		red:     deps.RED,
		rewrite: deps.Rewrite,
		cache:   deps.Cache,
	}

	if ld.logger == nil {
		ld.logger = slog.Default()
	}

	if ld.tracer == nil {
		ld.tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	return ld
}

// Load marks the result cacheable on host and returns source with every
// qualifying named import split into per-member require imports.
func (ld *Loader) Load(ctx context.Context, host Host, source string) string {
	if host != nil {
		host.Cacheable()
	}

	result, _ := ld.LoadResult(ctx, "", source)

	return result.Output
}

// LoadResult transforms source with the engine resolved for filename,
// which may be empty. On failure the returned Result carries the unchanged
// source alongside the error.
func (ld *Loader) LoadResult(ctx context.Context, filename, source string) (rewrite.Result, error) {
	return ld.run(ctx, ld.engines.Resolve(filename), source)
}

func (ld *Loader) run(ctx context.Context, engine *rewrite.Engine, source string) (result rewrite.Result, err error) {
	dialect := string(engine.Dialect())

	ctx, span := ld.tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("dialect", dialect),
			attribute.Int("source.bytes", len(source)),
		),
	)
	defer span.End()

	start := time.Now()

	if ld.red != nil {
		done := ld.red.TrackInflight(ctx, opName)
		defer done()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, recovered)
		}

		if err != nil {
			result = rewrite.Result{Output: source}

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			ld.logger.WarnContext(ctx, "transform failed, passing source through", "error", err)
		}

		ld.record(ctx, dialect, result, err, time.Since(start))
	}()

	var key cache.Key

	if ld.cache != nil {
		key = cache.KeyOf(dialect, engine.Targets(), source)

		cached, ok := ld.cache.Get(key)
		if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))

			return cached, nil
		}
	}

	result, err = engine.Transform(ctx, source)
	if err != nil {
		return result, fmt.Errorf("transform: %w", err)
	}

	if ld.cache != nil {
		ld.cache.Put(key, result)
	}

	span.SetAttributes(
		attribute.Int("declarations.rewritten", len(result.Edits)),
		attribute.Int("members", result.Members()),
	)

	if result.Changed() {
		ld.logger.DebugContext(ctx, "imports rewritten",
			"dialect", dialect, "declarations", len(result.Edits), "members", result.Members())
	}

	return result, nil
}

func (ld *Loader) record(ctx context.Context, dialect string, result rewrite.Result, err error, elapsed time.Duration) {
	status := observability.StatusOK
	outcome := observability.OutcomeUnchanged

	switch {
	case err != nil:
		status = observability.StatusError
		outcome = observability.OutcomeFailed
	case result.Changed():
		outcome = observability.OutcomeChanged
	}

	if ld.red != nil {
		ld.red.RecordRequest(ctx, opName, status, elapsed)
	}

	ld.rewrite.Record(ctx, observability.RewriteStats{
		Dialect:      dialect,
		Outcome:      outcome,
		Declarations: int64(len(result.Edits)),
		Members:      int64(result.Members()),
	})
}
