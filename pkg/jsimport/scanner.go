// Package jsimport finds top-level import declarations in TypeScript and
// JavaScript sources and parses their clauses into a structured form.
package jsimport

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"fortio.org/safecast"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for scanning.
var (
	ErrParse      = errors.New("jsimport: failed to parse source")
	errNoRootNode = errors.New("jsimport: no root node")
	errPoolType   = errors.New("jsimport: pool returned unexpected type")
)

const nodeImportStatement = "import_statement"

// Span is a half-open byte range [Start, End) into the scanned source.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Declaration is one top-level import statement, exactly as it appears in
// the source. The syntax node behind it is only valid inside the loop body
// that received it from Scan; ParseClause must be called there.
type Declaration struct {
	Span Span
	Text string

	node   sitter.Node
	source []byte
}

// Scanner yields top-level import declarations of one dialect.
// It is safe for concurrent use; each Scan borrows its own tree-sitter parser.
type Scanner struct {
	dialect Dialect
	pool    sync.Pool
}

// NewScanner creates a Scanner for the given dialect.
func NewScanner(dialect Dialect) (*Scanner, error) {
	lang := grammar(dialect)
	if lang == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}

	scanner := &Scanner{dialect: dialect}
	scanner.pool = sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}

	return scanner, nil
}

// Dialect returns the dialect the scanner parses.
func (s *Scanner) Dialect() Dialect {
	return s.dialect
}

// Scan returns the import declarations that are direct children of the
// source's root, in source order. Parsing happens when the sequence is
// ranged over and the syntax tree is released when ranging stops. A parse
// failure is reported as a single pair with a zero Declaration.
func (s *Scanner) Scan(ctx context.Context, source []byte) iter.Seq2[Declaration, error] {
	return func(yield func(Declaration, error) bool) {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			yield(Declaration{}, ctxErr)

			return
		}

		tsParser, ok := s.pool.Get().(*sitter.Parser)
		if !ok {
			yield(Declaration{}, errPoolType)

			return
		}

		defer s.pool.Put(tsParser)

		tree, err := tsParser.ParseString(ctx, nil, source)
		if err != nil {
			yield(Declaration{}, fmt.Errorf("%w: %w", ErrParse, err))

			return
		}
		defer tree.Close()

		root := tree.RootNode()
		if root.IsNull() {
			yield(Declaration{}, errNoRootNode)

			return
		}

		for idx := range root.NamedChildCount() {
			child := root.NamedChild(idx)
			if child.IsNull() || child.Type() != nodeImportStatement {
				continue
			}

			decl, found := newDeclaration(child, source)
			if !found {
				continue
			}

			if !yield(decl, nil) {
				return
			}
		}
	}
}

func newDeclaration(tsNode sitter.Node, source []byte) (Declaration, bool) {
	span, ok := nodeSpan(tsNode, source)
	if !ok {
		return Declaration{}, false
	}

	span.End = statementEnd(tsNode, span)

	return Declaration{
		Span:   span,
		Text:   string(source[span.Start:span.End]),
		node:   tsNode,
		source: source,
	}, true
}

// statementEnd trims trailing comments the grammar attaches to a statement
// that ends without a semicolon.
func statementEnd(tsNode sitter.Node, span Span) int {
	for idx := tsNode.ChildCount(); idx > 0; idx-- {
		child := tsNode.Child(idx - 1)
		if child.Type() == nodeComment {
			continue
		}

		end, err := safecast.Conv[int](child.EndByte())
		if err != nil || end < span.Start || end > span.End {
			return span.End
		}

		return end
	}

	return span.End
}

// nodeSpan converts a node's byte range, rejecting ranges outside source.
func nodeSpan(tsNode sitter.Node, source []byte) (Span, bool) {
	start, startErr := safecast.Conv[int](tsNode.StartByte())
	end, endErr := safecast.Conv[int](tsNode.EndByte())

	if startErr != nil || endErr != nil || start > end || end > len(source) {
		return Span{}, false
	}

	return Span{Start: start, End: end}, true
}

// nodeText returns the source text under tsNode, or "" when out of range.
func nodeText(tsNode sitter.Node, source []byte) string {
	span, ok := nodeSpan(tsNode, source)
	if !ok {
		return ""
	}

	return string(source[span.Start:span.End])
}
