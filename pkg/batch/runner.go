// Package batch runs the rewrite engine over many files concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/importsplit/pkg/observability"
	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
)

const batchOp = "batch.file"

// ErrPanic reports a file whose transform panicked.
var ErrPanic = errors.New("transform panicked")

// FileResult is the outcome for one path.
type FileResult struct {
	Path    string
	Dialect string
	Source  string
	Result  rewrite.Result
	Err     error
	Size    int64
	Written bool
}

// Changed reports whether the file's imports were rewritten.
func (fr FileResult) Changed() bool {
	return fr.Err == nil && fr.Result.Changed()
}

// Skipped reports whether the file was left alone because it is too large
// or binary.
func (fr FileResult) Skipped() bool {
	return errors.Is(fr.Err, ErrFileTooLarge) || errors.Is(fr.Err, ErrBinaryFile)
}

// Diff renders a unified diff of the file's change, or "" when unchanged.
func (fr FileResult) Diff() string {
	if !fr.Changed() {
		return ""
	}

	return rewrite.UnifiedDiff(fr.Path, fr.Source, fr.Result.Output)
}

// Runner transforms files with a bounded worker pool.
type Runner struct {
	Engines *rewrite.Set
	Logger  *slog.Logger
	RED     *observability.REDMetrics
	Rewrite *observability.RewriteMetrics

	// Workers bounds concurrency. Zero means runtime.NumCPU.
	Workers int
	// MaxFileSize skips larger files. Zero disables the limit.
	MaxFileSize uint64
	// Write stores changed output back to each file.
	Write bool
}

// Run transforms every path and returns one result per path, in input
// order. Per-file failures are reported in FileResult.Err; the returned
// error is only set when ctx is canceled.
func (r *Runner) Run(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	if len(paths) == 0 {
		return results, nil
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(workers, len(paths)))

	for i, path := range paths {
		g.Go(func() error {
			ctxErr := gctx.Err()
			if ctxErr != nil {
				return ctxErr
			}

			results[i] = r.runFile(gctx, path)

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return results, fmt.Errorf("batch canceled: %w", err)
	}

	return results, nil
}

func (r *Runner) runFile(ctx context.Context, path string) (fr FileResult) {
	start := time.Now()
	fr = FileResult{Path: path}

	if r.RED != nil {
		done := r.RED.TrackInflight(ctx, batchOp)
		defer done()
	}

	defer r.record(ctx, &fr, start)

	defer func() {
		if recovered := recover(); recovered != nil {
			fr.Err = fmt.Errorf("%w: %s: %v", ErrPanic, path, recovered)
		}
	}()

	content, info, err := readSource(path, r.MaxFileSize)
	if err != nil {
		fr.Err = err

		return fr
	}

	engine := r.Engines.Resolve(path)

	fr.Size = info.Size()
	fr.Source = string(content)
	fr.Dialect = string(engine.Dialect())

	fr.Result, err = engine.Transform(ctx, fr.Source)
	if err != nil {
		fr.Err = fmt.Errorf("transform %s: %w", path, err)

		return fr
	}

	if !r.Write || !fr.Result.Changed() {
		return fr
	}

	//nolint:gosec // path was resolved and read above; permissions are preserved.
	err = os.WriteFile(path, []byte(fr.Result.Output), info.Mode().Perm())
	if err != nil {
		fr.Err = fmt.Errorf("write %s: %w", path, err)

		return fr
	}

	fr.Written = true

	return fr
}

func (r *Runner) record(ctx context.Context, fr *FileResult, start time.Time) {
	status := observability.StatusOK
	outcome := observability.OutcomeUnchanged

	switch {
	case fr.Skipped():
		outcome = observability.OutcomeSkipped
	case fr.Err != nil:
		status = observability.StatusError
		outcome = observability.OutcomeFailed
	case fr.Result.Changed():
		outcome = observability.OutcomeChanged
	}

	if r.RED != nil {
		r.RED.RecordRequest(ctx, batchOp, status, time.Since(start))
	}

	r.Rewrite.Record(ctx, observability.RewriteStats{
		Dialect:      fr.Dialect,
		Outcome:      outcome,
		Declarations: int64(len(fr.Result.Edits)),
		Members:      int64(fr.Result.Members()),
	})

	if r.Logger == nil {
		return
	}

	if fr.Err != nil {
		r.Logger.WarnContext(ctx, "file skipped", "path", fr.Path, "error", fr.Err)

		return
	}

	r.Logger.DebugContext(ctx, "file processed",
		"path", fr.Path, "changed", fr.Result.Changed(), "written", fr.Written)
}
