package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rshade/graphbatch/internal/dispatch"
	"github.com/rshade/graphbatch/internal/record"
)

// FailureEntry is the JSON form of a dispatch.Failure.
type FailureEntry struct {
	ID       int64  `json:"id"`
	Group    string `json:"group"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// Report describes one finished run. It backs both the terminal summary and
// the optional JSON report file.
type Report struct {
	RunID      string           `json:"run_id"`
	Source     string           `json:"source"`
	StartedAt  time.Time        `json:"started_at"`
	Loaded     int              `json:"loaded"`
	Excluded   int              `json:"excluded"`
	Duplicates int              `json:"duplicates"`
	Truncated  int              `json:"truncated"`
	Summary    dispatch.Summary `json:"summary"`
	Failures   []FailureEntry   `json:"failures"`
}

// NewReport assembles a Report from the selection and the dispatch result.
func NewReport(runID, source string, startedAt time.Time, sel record.Selection, res *dispatch.Result) Report {
	r := Report{
		RunID:      runID,
		Source:     source,
		StartedAt:  startedAt.UTC(),
		Loaded:     sel.Loaded,
		Excluded:   sel.Excluded,
		Duplicates: sel.Duplicates,
		Truncated:  sel.Truncated,
		Failures:   []FailureEntry{},
	}
	if res == nil {
		r.Summary = dispatch.Summary{Total: len(sel.Records)}
		return r
	}

	r.Summary = res.Summary(len(sel.Records))
	for _, f := range res.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		r.Failures = append(r.Failures, FailureEntry{ID: f.ID, Group: f.Group, Error: msg, Attempts: f.Attempts})
	}
	return r
}

// WriteReport writes r as indented JSON to path, atomically.
func WriteReport(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	if mkErr := os.MkdirAll(filepath.Dir(path), 0o750); mkErr != nil {
		return fmt.Errorf("creating report directory: %w", mkErr)
	}

	tempPath := path + ".tmp"
	if writeErr := os.WriteFile(tempPath, append(data, '\n'), 0o600); writeErr != nil {
		return fmt.Errorf("writing report: %w", writeErr)
	}
	if renameErr := os.Rename(tempPath, path); renameErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming report: %w", renameErr)
	}
	return nil
}
