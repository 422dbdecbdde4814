package rewrite

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffContext is the number of unchanged lines kept around each change.
const diffContext = 3

// LineKind classifies one line of a diff.
type LineKind byte

// Diff line kinds, rendered as the first column of a unified diff.
const (
	LineEqual  LineKind = ' '
	LineDelete LineKind = '-'
	LineInsert LineKind = '+'
)

// DiffLine is one line of a line-level diff, without its trailing newline.
type DiffLine struct {
	Kind LineKind
	Text string
}

// DiffLines computes a line-level diff between before and after.
func DiffLines(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()

	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(beforeChars, afterChars, false), lineArray)

	var lines []DiffLine

	for _, d := range diffs {
		kind := LineEqual

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = LineDelete
		case diffmatchpatch.DiffInsert:
			kind = LineInsert
		case diffmatchpatch.DiffEqual:
		}

		for _, text := range splitLines(d.Text) {
			lines = append(lines, DiffLine{Kind: kind, Text: text})
		}
	}

	return lines
}

// UnifiedDiff renders a unified diff of one file. It returns "" when the
// texts are equal.
func UnifiedDiff(name, before, after string) string {
	if before == after {
		return ""
	}

	lines := DiffLines(before, after)

	var out strings.Builder

	fmt.Fprintf(&out, "--- a/%s\n+++ b/%s\n", name, name)

	for _, h := range hunks(lines) {
		fmt.Fprintf(&out, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldLen, h.newStart, h.newLen)

		for _, line := range lines[h.from:h.to] {
			out.WriteByte(byte(line.Kind))
			out.WriteString(line.Text)
			out.WriteByte('\n')
		}
	}

	return out.String()
}

type hunk struct {
	from, to         int
	oldStart, oldLen int
	newStart, newLen int
}

// hunks groups changed lines with diffContext lines of context, merging
// groups whose context would touch.
func hunks(lines []DiffLine) []hunk {
	var result []hunk

	oldLine, newLine := 1, 1
	idx := 0

	for idx < len(lines) {
		if lines[idx].Kind == LineEqual {
			oldLine++
			newLine++
			idx++

			continue
		}

		from := max(idx-diffContext, 0)
		h := hunk{from: from, oldStart: oldLine - (idx - from), newStart: newLine - (idx - from)}
		h.oldLen, h.newLen = idx-from, idx-from

		equalRun := 0

		for idx < len(lines) {
			switch lines[idx].Kind {
			case LineEqual:
				equalRun++
				oldLine++
				newLine++
				h.oldLen++
				h.newLen++
			case LineDelete:
				equalRun = 0
				oldLine++
				h.oldLen++
			case LineInsert:
				equalRun = 0
				newLine++
				h.newLen++
			}

			idx++

			if equalRun > 2*diffContext {
				break
			}
		}

		trailing := max(equalRun-diffContext, 0)
		h.to = idx - trailing
		h.oldLen -= trailing
		h.newLen -= trailing

		result = append(result, h)
	}

	return result
}

// splitLines splits text into lines, dropping the empty piece after a final newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	parts := strings.Split(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	return parts
}
