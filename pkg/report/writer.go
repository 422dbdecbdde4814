package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatText, FormatTable, FormatJSON, FormatYAML}
}

// Write renders s to w in the given format.
func Write(w io.Writer, format string, s Summary) error {
	switch format {
	case FormatText, "":
		return writeText(w, s)
	case FormatTable:
		return writeTable(w, s)
	case FormatJSON:
		return writeJSON(w, s)
	case FormatYAML:
		return writeYAML(w, s)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeText(w io.Writer, s Summary) error {
	changed := color.New(color.FgGreen)
	failed := color.New(color.FgRed)
	skipped := color.New(color.FgYellow)

	for _, entry := range s.Entries {
		var err error

		switch entry.Status {
		case StatusChanged:
			verb := "would rewrite"
			if entry.Written {
				verb = "rewrote"
			}

			_, err = changed.Fprintf(w, "%s %s (%d declarations, %d members)\n",
				verb, entry.Path, entry.Declarations, entry.Members)
		case StatusFailed:
			_, err = failed.Fprintf(w, "failed %s: %s\n", entry.Path, entry.Error)
		case StatusSkipped:
			_, err = skipped.Fprintf(w, "skipped %s: %s\n", entry.Path, entry.Error)
		default:
			continue
		}

		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	_, err := fmt.Fprintf(w, "%s files (%s), %d changed, %d failed, %d skipped, %d declarations split into %d imports\n",
		humanize.Comma(int64(s.Files)), humanize.Bytes(uint64(max(s.Bytes, 0))), //nolint:gosec // Clamped above.
		s.Changed, s.Failed, s.Skipped, s.Declarations, s.Members)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func writeTable(w io.Writer, s Summary) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"File", "Dialect", "Status", "Declarations", "Members"})

	for _, entry := range s.Entries {
		status := entry.Status
		if entry.Error != "" {
			status += ": " + entry.Error
		}

		tbl.AppendRow(table.Row{entry.Path, entry.Dialect, status, entry.Declarations, entry.Members})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("Total: %d files", s.Files), "",
		fmt.Sprintf("%d changed", s.Changed), s.Declarations, s.Members,
	})

	tbl.Render()

	return nil
}

func writeJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(s)
	if err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

func writeYAML(w io.Writer, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal yaml report: %w", err)
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

// WriteDiff writes a unified diff with removed lines in red, added lines
// in green and hunk headers in cyan.
func WriteDiff(w io.Writer, diff string) error {
	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)
	header := color.New(color.FgCyan)

	for line := range strings.SplitAfterSeq(diff, "\n") {
		if line == "" {
			continue
		}

		var err error

		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			_, err = color.New(color.Bold).Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			_, err = header.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			_, err = removed.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			_, err = added.Fprint(w, line)
		default:
			_, err = io.WriteString(w, line)
		}

		if err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	return nil
}
