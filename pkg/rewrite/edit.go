package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
)

// Sentinel errors for edit application.
var (
	ErrEditOutOfBounds = errors.New("edit span out of bounds")
	ErrEditOverlap     = errors.New("edit spans overlap or are unordered")
	ErrEditMismatch    = errors.New("edit original text does not match source")
)

// Edit replaces one declaration's span with generated text.
type Edit struct {
	Span        jsimport.Span
	Original    string
	Replacement string
	ModulePath  string
	Members     int
}

// Apply rebuilds source in a single pass, substituting each edit at its own
// span. Edits must be in ascending, non-overlapping order. When an edit
// carries Original text it must match the source under its span.
func Apply(source string, edits []Edit) (string, error) {
	var out strings.Builder

	out.Grow(len(source))

	cursor := 0

	for idx, edit := range edits {
		span := edit.Span
		if span.Start < 0 || span.End > len(source) || span.Start > span.End {
			return "", fmt.Errorf("%w: edit %d [%d,%d) in %d bytes", ErrEditOutOfBounds, idx, span.Start, span.End, len(source))
		}

		if span.Start < cursor {
			return "", fmt.Errorf("%w: edit %d starts at %d before %d", ErrEditOverlap, idx, span.Start, cursor)
		}

		if edit.Original != "" && source[span.Start:span.End] != edit.Original {
			return "", fmt.Errorf("%w: edit %d at %d", ErrEditMismatch, idx, span.Start)
		}

		out.WriteString(source[cursor:span.Start])
		out.WriteString(edit.Replacement)

		cursor = span.End
	}

	out.WriteString(source[cursor:])

	return out.String(), nil
}
