package tui

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/graphbatch/internal/dispatch"
	"github.com/rshade/graphbatch/internal/record"
)

func TestProgressModel_Update(t *testing.T) {
	t.Run("applies snapshots", func(t *testing.T) {
		m := NewProgressModel(10, nil)
		newModel, cmd := m.Update(progressMsg(dispatch.ProgressSnapshot{TotalItems: 10, CompletedItems: 3, FailedItems: 1}))
		assert.Nil(t, cmd)

		view := newModel.View()
		assert.Contains(t, view, "graphbatch")
		assert.Contains(t, view, "4/10")
		assert.Contains(t, view, "failed 1")
		assert.Contains(t, view, "ctrl+c to cancel")
	})

	t.Run("first ctrl+c cancels, second quits", func(t *testing.T) {
		cancelled := 0
		m := NewProgressModel(10, func() { cancelled++ })

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		assert.Nil(t, cmd)
		assert.Equal(t, 1, cancelled)
		assert.True(t, m.Cancelling())
		assert.Contains(t, m.View(), "cancelling")

		_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		assert.NotNil(t, cmd)
		assert.Equal(t, 1, cancelled)
	})

	t.Run("finish quits", func(t *testing.T) {
		m := NewProgressModel(2, nil)
		_, cmd := m.Update(finishMsg(dispatch.Summary{Total: 2, Completed: 2}))
		assert.NotNil(t, cmd)
		assert.Contains(t, m.View(), "drained")
	})

	t.Run("resizes bar", func(t *testing.T) {
		m := NewProgressModel(2, nil)
		_, _ = m.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
		assert.Equal(t, maxBarWidth, m.bar.Width)
		_, _ = m.Update(tea.WindowSizeMsg{Width: 30, Height: 40})
		assert.Equal(t, 26, m.bar.Width)
	})

	t.Run("ignores other keys", func(t *testing.T) {
		m := NewProgressModel(2, nil)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		assert.Nil(t, cmd)
		assert.Nil(t, m.Init())
	})
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(zerolog.New(&buf), time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Start(100)
	r.Update(dispatch.ProgressSnapshot{TotalItems: 100, CompletedItems: 1})
	now = now.Add(2 * time.Minute)
	r.Update(dispatch.ProgressSnapshot{TotalItems: 100, CompletedItems: 50, FailedItems: 2, PercentComplete: 52})
	r.Update(dispatch.ProgressSnapshot{TotalItems: 100, CompletedItems: 51, FailedItems: 2})
	r.Finish(dispatch.Summary{Total: 100, Submitted: 100, Completed: 98, Failed: 2})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var progress map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &progress))
	assert.Equal(t, "batch progress", progress["message"])
	assert.Equal(t, "progress", progress["component"])
	assert.InDelta(t, 52, progress["done"], 0)
	assert.Equal(t, "52.0%", progress["percent"])

	var finished map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &finished))
	assert.Equal(t, "warn", finished["level"])
	assert.InDelta(t, 98, finished["completed"], 0)
}

func TestLogReporter_DefaultInterval(t *testing.T) {
	r := NewLogReporter(zerolog.Nop(), 0)
	assert.Equal(t, DefaultLogInterval, r.interval)
}

func TestNewReporter(t *testing.T) {
	orig := isTerminal
	t.Cleanup(func() { isTerminal = orig })

	assert.IsType(t, NopReporter{}, NewReporter(zerolog.Nop(), ReporterOptions{Disabled: true}))

	isTerminal = func(*os.File) bool { return false }
	assert.IsType(t, &LogReporter{}, NewReporter(zerolog.Nop(), ReporterOptions{}))

	isTerminal = func(*os.File) bool { return true }
	assert.IsType(t, &ProgramReporter{}, NewReporter(zerolog.Nop(), ReporterOptions{}))
}

func TestInteractive(t *testing.T) {
	orig := isTerminal
	t.Cleanup(func() { isTerminal = orig })

	var seen *os.File
	isTerminal = func(f *os.File) bool {
		seen = f
		return true
	}
	assert.True(t, Interactive(ReporterOptions{}))
	assert.Equal(t, os.Stderr, seen, "defaults to stderr")
	assert.False(t, Interactive(ReporterOptions{Disabled: true}))

	isTerminal = func(*os.File) bool { return false }
	assert.False(t, Interactive(ReporterOptions{Output: os.Stdout}))
}

func TestProgramReporter_FinishWithoutStart(t *testing.T) {
	r := NewProgramReporter(os.Stderr, nil)
	r.Update(dispatch.ProgressSnapshot{})
	r.Finish(dispatch.Summary{})
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "18,248", FormatCount(18248))
	assert.Equal(t, "7", FormatCount(7))
	assert.Equal(t, "42.5%", FormatPercent(42.5))
	assert.Equal(t, "-", FormatRate(0))
	assert.Equal(t, "30.0/min", FormatRate(0.5))
	assert.Equal(t, "1,234.5/s", FormatRate(1234.5))
	assert.Equal(t, "-", FormatDuration(0))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1m5s", FormatDuration(65*time.Second+200*time.Millisecond))
}

func sampleReport() Report {
	sel := record.Selection{
		Records:    []record.Record{{ID: 1}, {ID: 2}, {ID: 3}},
		Loaded:     1205,
		Excluded:   1200,
		Duplicates: 1,
		Truncated:  1,
	}
	res := &dispatch.Result{
		Completed: []int64{1, 3},
		Failures:  []dispatch.Failure{{ID: 2, Group: "bigvul", Err: errors.New("backend command failed: exit status 1\nstack"), Attempts: 2}},
		Submitted: 3,
		Elapsed:   1500 * time.Millisecond,
	}
	return NewReport("01J0000000000000000000000", "data/minimal.pq", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), sel, res)
}

func TestNewReport(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, 3, r.Summary.Total)
	assert.Equal(t, 2, r.Summary.Completed)
	assert.Equal(t, 1, r.Summary.Failed)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, 2, r.Failures[0].Attempts)

	empty := NewReport("", "", time.Now(), record.Selection{}, nil)
	assert.NotNil(t, empty.Failures)
	assert.Equal(t, 0, empty.Summary.Total)
}

func TestSummaryView(t *testing.T) {
	view := SummaryView(sampleReport())
	assert.Contains(t, view, "BATCH SUMMARY")
	assert.Contains(t, view, "completed with failures")
	assert.Contains(t, view, "1,205")
	assert.Contains(t, view, "1,200")
	assert.Contains(t, view, "bigvul/2")
	assert.NotContains(t, view, "stack", "only the first error line is shown")

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, sampleReport()))
	assert.Contains(t, buf.String(), "FAILURES")
}

func TestSummaryView_TruncatesFailures(t *testing.T) {
	r := sampleReport()
	r.Failures = nil
	for i := range 15 {
		r.Failures = append(r.Failures, FailureEntry{ID: int64(i), Group: "g", Error: "x"})
	}
	assert.Contains(t, SummaryView(r), "and 5 more")
}

func TestSummaryView_Cancelled(t *testing.T) {
	r := sampleReport()
	r.Summary.Cancelled = true
	assert.Contains(t, SummaryView(r), "cancelled")
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, WriteReport(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "data/minimal.pq", decoded["source"])
	failures, ok := decoded["failures"].([]any)
	require.True(t, ok)
	assert.Len(t, failures, 1)

	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestNopReporter(t *testing.T) {
	var r Reporter = NopReporter{}
	r.Start(1)
	r.Update(dispatch.ProgressSnapshot{})
	r.Finish(dispatch.Summary{})
}
