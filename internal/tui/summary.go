package tui

import (
	"fmt"
	"io"
	"strings"
)

// maxListedFailures bounds the failures printed in the terminal summary;
// the JSON report always holds the full list.
const maxListedFailures = 10

// RenderSummary writes the end-of-run summary box to w.
func RenderSummary(w io.Writer, r Report) error {
	_, err := io.WriteString(w, SummaryView(r)+"\n")
	return err
}

// SummaryView returns the styled summary.
func SummaryView(r Report) string {
	var b strings.Builder
	s := r.Summary

	status := OKStyle.Render("completed")
	switch {
	case s.Cancelled:
		status = WarningStyle.Render("cancelled")
	case s.Failed > 0:
		status = WarningStyle.Render("completed with failures")
	}

	b.WriteString(HeaderStyle.Render("BATCH SUMMARY"))
	b.WriteString("  ")
	b.WriteString(status)
	b.WriteString("\n\n")

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(fmt.Sprintf("%-12s", label)), value)
	}

	if r.RunID != "" {
		row("run", MutedStyle.Render(r.RunID))
	}
	if r.Source != "" {
		row("source", r.Source)
	}
	row("loaded", ValueStyle.Render(FormatCount(r.Loaded)))
	if r.Excluded > 0 {
		row("excluded", WarningStyle.Render(FormatCount(r.Excluded))+MutedStyle.Render(" (null fields)"))
	}
	if r.Duplicates > 0 {
		row("duplicates", WarningStyle.Render(FormatCount(r.Duplicates)))
	}
	if r.Truncated > 0 {
		row("over limit", MutedStyle.Render(FormatCount(r.Truncated)))
	}
	row("submitted", ValueStyle.Render(FormatCount(s.Submitted))+MutedStyle.Render(" of "+FormatCount(s.Total)))
	row("completed", OKStyle.Render(FormatCount(s.Completed)))

	failed := ValueStyle.Render("0")
	if s.Failed > 0 {
		failed = CriticalStyle.Render(FormatCount(s.Failed))
	}
	row("failed", failed)
	row("elapsed", ValueStyle.Render(FormatDuration(s.Elapsed)))

	if len(r.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(HeaderStyle.Render("FAILURES"))
		b.WriteString("\n")
		for i, f := range r.Failures {
			if i == maxListedFailures {
				b.WriteString(MutedStyle.Render(fmt.Sprintf("... and %s more", FormatCount(len(r.Failures)-maxListedFailures))))
				b.WriteString("\n")
				break
			}
			fmt.Fprintf(&b, "%s %s\n", CriticalStyle.Render(fmt.Sprintf("%s/%d", f.Group, f.ID)), firstLine(f.Error))
		}
	}

	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
