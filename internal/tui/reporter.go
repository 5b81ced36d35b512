// Package tui renders batch progress and the end-of-run summary.
//
// A Reporter receives progress snapshots from the dispatcher. Interactive
// terminals get a bubbletea progress bar; everything else (pipes, CI logs)
// gets periodic zerolog lines from LogReporter.
package tui

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/rshade/graphbatch/internal/dispatch"
)

// Reporter observes a batch run. Update is called from the dispatcher's
// draining goroutine and must not block for long.
type Reporter interface {
	Start(total int)
	Update(snapshot dispatch.ProgressSnapshot)
	Finish(summary dispatch.Summary)
}

// NopReporter discards all progress.
type NopReporter struct{}

func (NopReporter) Start(int) {}

func (NopReporter) Update(dispatch.ProgressSnapshot) {}

func (NopReporter) Finish(dispatch.Summary) {}

// ReporterOptions selects a Reporter.
type ReporterOptions struct {
	// Disabled turns progress reporting off entirely.
	Disabled bool
	// Interval is the LogReporter period.
	Interval time.Duration
	// Output is where the interactive view is drawn. Defaults to os.Stderr.
	Output *os.File
	// Cancel is invoked when the user presses Ctrl+C in the interactive view.
	Cancel context.CancelFunc
}

// isTerminal reports whether f is attached to a terminal. Tests replace it.
//
//nolint:gochecknoglobals // Required for test injection.
var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (o ReporterOptions) output() *os.File {
	if o.Output == nil {
		return os.Stderr
	}
	return o.Output
}

// Interactive reports whether NewReporter would draw the progress bar for opts.
func Interactive(opts ReporterOptions) bool {
	return !opts.Disabled && isTerminal(opts.output())
}

// NewReporter returns the interactive reporter when Output is a terminal and
// a LogReporter writing to log otherwise.
func NewReporter(log zerolog.Logger, opts ReporterOptions) Reporter {
	if opts.Disabled {
		return NopReporter{}
	}
	if Interactive(opts) {
		return NewProgramReporter(opts.output(), opts.Cancel)
	}
	return NewLogReporter(log, opts.Interval)
}
