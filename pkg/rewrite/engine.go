// Package rewrite turns named imports of a target package into per-member
// `import x = require('pkg/x');` lines.
package rewrite

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
)

// DefaultTarget is the package rewritten when no targets are configured.
const DefaultTarget = "lodash"

const lineSeparator = "\n"

// Options configures an Engine.
type Options struct {
	// Targets lists the exact module paths whose named imports are split.
	// Subpaths never match. Empty means DefaultTarget.
	Targets []string
}

// DefaultOptions returns Options targeting lodash.
func DefaultOptions() Options {
	return Options{Targets: []string{DefaultTarget}}
}

// Result is the outcome of one Transform call.
type Result struct {
	// Output is the transformed source. It equals the input when no edit applied.
	Output string
	// Edits are the applied replacements in source order.
	Edits []Edit
	// Scanned counts the top-level import declarations seen.
	Scanned int
}

// Changed reports whether any declaration was rewritten.
func (r Result) Changed() bool {
	return len(r.Edits) > 0
}

// Members returns the number of generated require lines.
func (r Result) Members() int {
	total := 0
	for _, edit := range r.Edits {
		total += edit.Members
	}

	return total
}

// Engine classifies and rewrites import declarations. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	scanner *jsimport.Scanner
	targets []string
}

// New creates an Engine scanning with scanner.
func New(scanner *jsimport.Scanner, opts Options) *Engine {
	targets := make([]string, 0, len(opts.Targets))

	for _, target := range opts.Targets {
		target = strings.TrimSpace(target)
		if target != "" && !slices.Contains(targets, target) {
			targets = append(targets, target)
		}
	}

	if len(targets) == 0 {
		targets = append(targets, DefaultTarget)
	}

	return &Engine{scanner: scanner, targets: targets}
}

// Targets returns the module paths the engine rewrites.
func (e *Engine) Targets() []string {
	return slices.Clone(e.targets)
}

// Dialect returns the dialect of the underlying scanner.
func (e *Engine) Dialect() jsimport.Dialect {
	return e.scanner.Dialect()
}

// Qualifies reports whether clause is a named import of a target package
// that can be expressed as require lines.
func (e *Engine) Qualifies(clause jsimport.ImportClause) bool {
	if !slices.Contains(e.targets, clause.ModulePath) {
		return false
	}

	if clause.Style != jsimport.StyleNamed || len(clause.Members) == 0 ||
		clause.TypeOnly || clause.Attributes {
		return false
	}

	return !slices.ContainsFunc(clause.Members, func(m jsimport.MemberBinding) bool {
		return m.TypeOnly
	})
}

// Generate renders one require line per member, in member order.
func Generate(clause jsimport.ImportClause) string {
	lines := make([]string, 0, len(clause.Members))

	for _, member := range clause.Members {
		lines = append(lines, fmt.Sprintf("import %s = require('%s/%s');",
			member.LocalName, clause.ModulePath, member.SourceName))
	}

	return strings.Join(lines, lineSeparator)
}

// Transform rewrites every qualifying top-level declaration in source.
// When the source cannot be scanned the error is returned together with a
// Result whose Output is the unchanged source.
func (e *Engine) Transform(ctx context.Context, source string) (Result, error) {
	result := Result{Output: source}

	var edits []Edit

	for decl, err := range e.scanner.Scan(ctx, []byte(source)) {
		if err != nil {
			return result, fmt.Errorf("scan: %w", err)
		}

		result.Scanned++

		clause := jsimport.ParseClause(decl)
		if !e.Qualifies(clause) {
			continue
		}

		edits = append(edits, Edit{
			Span:        decl.Span,
			Original:    decl.Text,
			Replacement: Generate(clause),
			ModulePath:  clause.ModulePath,
			Members:     len(clause.Members),
		})
	}

	if len(edits) == 0 {
		return result, nil
	}

	output, err := Apply(source, edits)
	if err != nil {
		return result, fmt.Errorf("apply edits: %w", err)
	}

	result.Output = output
	result.Edits = edits

	return result, nil
}
