// Package report summarizes batch results and renders them as text,
// tables, JSON or YAML.
package report

import (
	"errors"

	"github.com/Sumatoshi-tech/importsplit/pkg/batch"
)

// Entry statuses.
const (
	StatusChanged   = "changed"
	StatusUnchanged = "unchanged"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Entry is the per-file line of a Summary.
type Entry struct {
	Path         string `json:"path"                   yaml:"path"`
	Dialect      string `json:"dialect,omitempty"      yaml:"dialect,omitempty"`
	Status       string `json:"status"                 yaml:"status"`
	Error        string `json:"error,omitempty"        yaml:"error,omitempty"`
	Declarations int    `json:"declarations"           yaml:"declarations"`
	Members      int    `json:"members"                yaml:"members"`
	Written      bool   `json:"written,omitempty"      yaml:"written,omitempty"`
}

// Summary aggregates a batch run.
type Summary struct {
	Entries      []Entry `json:"files"        yaml:"files"`
	Files        int     `json:"total"        yaml:"total"`
	Changed      int     `json:"changed"      yaml:"changed"`
	Failed       int     `json:"failed"       yaml:"failed"`
	Skipped      int     `json:"skipped"      yaml:"skipped"`
	Written      int     `json:"written"      yaml:"written"`
	Declarations int     `json:"declarations" yaml:"declarations"`
	Members      int     `json:"members"      yaml:"members"`
	Bytes        int64   `json:"bytes"        yaml:"bytes"`
}

// Summarize builds a Summary, keeping the order of results.
func Summarize(results []batch.FileResult) Summary {
	summary := Summary{Entries: make([]Entry, 0, len(results))}

	for _, fr := range results {
		entry := Entry{
			Path:         fr.Path,
			Dialect:      fr.Dialect,
			Status:       StatusUnchanged,
			Declarations: len(fr.Result.Edits),
			Members:      fr.Result.Members(),
			Written:      fr.Written,
		}

		summary.Files++
		summary.Bytes += fr.Size

		switch {
		case fr.Skipped():
			entry.Status = StatusSkipped
			entry.Error = fr.Err.Error()
			summary.Skipped++
		case fr.Err != nil:
			entry.Status = StatusFailed
			entry.Error = fr.Err.Error()
			summary.Failed++
		case fr.Changed():
			entry.Status = StatusChanged
			summary.Changed++
		}

		if fr.Written {
			summary.Written++
		}

		summary.Declarations += entry.Declarations
		summary.Members += entry.Members
		summary.Entries = append(summary.Entries, entry)
	}

	return summary
}

// Err joins the failures recorded in the summary, or returns nil.
func (s Summary) Err() error {
	var errs []error

	for _, entry := range s.Entries {
		if entry.Status == StatusFailed {
			errs = append(errs, errors.New(entry.Path+": "+entry.Error))
		}
	}

	return errors.Join(errs...)
}
