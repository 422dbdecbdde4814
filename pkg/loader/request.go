package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
)

// MaxSourceBytes bounds the source accepted by Handle.
const MaxSourceBytes = 1 << 20

// ErrSourceTooLarge indicates a request source above MaxSourceBytes.
var ErrSourceTooLarge = errors.New("source exceeds maximum size")

// Request is one remote transform call.
type Request struct {
	Source   string   `json:"source"`
	Dialect  string   `json:"dialect,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Targets  []string `json:"targets,omitempty"`
}

// EditSummary describes one rewritten declaration.
type EditSummary struct {
	Line    int    `json:"line"`
	Module  string `json:"module"`
	Members int    `json:"members"`
}

// Response is the answer to a Request.
type Response struct {
	Output    string        `json:"output"`
	Dialect   string        `json:"dialect"`
	Edits     []EditSummary `json:"edits,omitempty"`
	Cacheable bool          `json:"cacheable"`
	Changed   bool          `json:"changed"`
}

// Handle transforms a Request. Invalid requests fail; transform failures
// pass the source through unchanged and are reported as the error.
func (ld *Loader) Handle(ctx context.Context, req Request) (Response, error) {
	if len(req.Source) > MaxSourceBytes {
		return Response{}, fmt.Errorf("%w: %d bytes (max %d)", ErrSourceTooLarge, len(req.Source), MaxSourceBytes)
	}

	engine, err := ld.engineFor(req)
	if err != nil {
		return Response{}, err
	}

	result, err := ld.run(ctx, engine, req.Source)

	return Response{
		Output:    result.Output,
		Dialect:   string(engine.Dialect()),
		Edits:     summarizeEdits(req.Source, result.Edits),
		Cacheable: true,
		Changed:   result.Changed(),
	}, err
}

func (ld *Loader) engineFor(req Request) (*rewrite.Engine, error) {
	if strings.TrimSpace(req.Dialect) == "" && len(req.Targets) == 0 {
		return ld.engines.Resolve(req.Filename), nil
	}

	dialect := ld.engines.Dialect()

	if strings.TrimSpace(req.Dialect) != "" {
		parsed, err := jsimport.ParseDialect(req.Dialect)
		if err != nil {
			return nil, fmt.Errorf("request dialect: %w", err)
		}

		dialect = parsed
	}

	opts := ld.opts
	if len(req.Targets) > 0 {
		opts.Targets = req.Targets
	}

	set, err := rewrite.NewSet(dialect, opts)
	if err != nil {
		return nil, fmt.Errorf("request engines: %w", err)
	}

	return set.Resolve(req.Filename), nil
}

func summarizeEdits(source string, edits []rewrite.Edit) []EditSummary {
	if len(edits) == 0 {
		return nil
	}

	summaries := make([]EditSummary, 0, len(edits))

	for _, edit := range edits {
		summaries = append(summaries, EditSummary{
			Line:    strings.Count(source[:edit.Span.Start], "\n") + 1,
			Module:  edit.ModulePath,
			Members: edit.Members,
		})
	}

	return summaries
}
