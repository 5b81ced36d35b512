package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/graphbatch/internal/dispatch"
)

// Bar geometry.
const (
	defaultBarWidth = 40
	maxBarWidth     = 80
	barPadding      = 4
)

// progressMsg carries a dispatcher snapshot into the program.
type progressMsg dispatch.ProgressSnapshot

// finishMsg ends the program once the batch has drained.
type finishMsg dispatch.Summary

// ProgressModel is the Bubble Tea model for the live batch progress view.
type ProgressModel struct {
	bar      progress.Model
	snapshot dispatch.ProgressSnapshot
	summary  *dispatch.Summary

	// cancel aborts the batch on the first Ctrl+C.
	cancel     context.CancelFunc
	cancelling bool
	quitting   bool
}

// NewProgressModel creates a ProgressModel for a batch of total tasks.
func NewProgressModel(total int, cancel context.CancelFunc) *ProgressModel {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth))
	return &ProgressModel{
		bar:      bar,
		snapshot: dispatch.ProgressSnapshot{TotalItems: total},
		cancel:   cancel,
	}
}

// Init implements tea.Model.
func (m *ProgressModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model state.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-barPadding, 10), maxBarWidth)
		return m, nil

	case progressMsg:
		m.snapshot = dispatch.ProgressSnapshot(msg)
		return m, nil

	case finishMsg:
		s := dispatch.Summary(msg)
		m.summary = &s
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

// handleKeyMsg processes keyboard input. The first Ctrl+C cancels the batch
// and keeps the view alive while in-flight tasks drain; a second one quits.
//
//nolint:exhaustive // Only interrupt keys are meaningful here.
func (m *ProgressModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.cancelling {
			m.quitting = true
			return m, tea.Quit
		}
		m.cancelling = true
		if m.cancel != nil {
			m.cancel()
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m *ProgressModel) View() string {
	s := m.snapshot
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("graphbatch"))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(s.Ratio()))
	b.WriteString("\n")

	counts := fmt.Sprintf("%s %s/%s", LabelStyle.Render("done"),
		ValueStyle.Render(FormatCount(s.Processed())), FormatCount(s.TotalItems))
	failed := LabelStyle.Render("failed ") + OKStyle.Render("0")
	if s.FailedItems > 0 {
		failed = LabelStyle.Render("failed ") + CriticalStyle.Render(FormatCount(s.FailedItems))
	}
	b.WriteString(strings.Join([]string{
		counts,
		failed,
		LabelStyle.Render("rate ") + ValueStyle.Render(FormatRate(s.ItemsPerSecond)),
		LabelStyle.Render("eta ") + ValueStyle.Render(FormatDuration(s.Remaining)),
	}, MutedStyle.Render("  |  ")))
	b.WriteString("\n")

	switch {
	case m.summary != nil:
		b.WriteString(MutedStyle.Render("drained"))
		b.WriteString("\n")
	case m.cancelling:
		b.WriteString(WarningStyle.Render("cancelling, waiting for in-flight tasks (ctrl+c again to quit)"))
		b.WriteString("\n")
	default:
		b.WriteString(MutedStyle.Render("ctrl+c to cancel"))
		b.WriteString("\n")
	}

	return b.String()
}

// Cancelling reports whether the user asked to cancel.
func (m *ProgressModel) Cancelling() bool {
	return m.cancelling
}
