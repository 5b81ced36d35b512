package tui

import (
	"context"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/graphbatch/internal/dispatch"
)

// ProgramReporter drives a ProgressModel in a bubbletea program.
type ProgramReporter struct {
	out    *os.File
	cancel context.CancelFunc

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewProgramReporter creates a reporter that draws on out.
func NewProgramReporter(out *os.File, cancel context.CancelFunc) *ProgramReporter {
	return &ProgramReporter{out: out, cancel: cancel}
}

// Start launches the program in the background.
func (r *ProgramReporter) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return
	}

	r.program = tea.NewProgram(NewProgressModel(total, r.cancel), tea.WithOutput(r.out))
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
}

// Update forwards a snapshot to the program. Once the program has exited,
// Send returns immediately.
func (r *ProgramReporter) Update(s dispatch.ProgressSnapshot) {
	if p := r.current(); p != nil {
		p.Send(progressMsg(s))
	}
}

// Finish stops the program and waits for the terminal to be restored.
func (r *ProgramReporter) Finish(s dispatch.Summary) {
	p := r.current()
	if p == nil {
		return
	}
	p.Send(finishMsg(s))
	<-r.done
}

func (r *ProgramReporter) current() *tea.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.program
}
