package tui

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/graphbatch/internal/dispatch"
)

// DefaultLogInterval is used when LogReporter is given a non-positive interval.
const DefaultLogInterval = 5 * time.Second

// LogReporter emits an info line at most once per interval and always one
// line when the batch finishes.
type LogReporter struct {
	log      zerolog.Logger
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(log zerolog.Logger, interval time.Duration) *LogReporter {
	if interval <= 0 {
		interval = DefaultLogInterval
	}
	return &LogReporter{
		log:      log.With().Str("component", "progress").Logger(),
		interval: interval,
		now:      time.Now,
	}
}

func (r *LogReporter) Start(total int) {
	r.mu.Lock()
	r.last = r.now()
	r.mu.Unlock()

	r.log.Info().Int("total", total).Msg("batch started")
}

func (r *LogReporter) Update(s dispatch.ProgressSnapshot) {
	r.mu.Lock()
	now := r.now()
	if now.Sub(r.last) < r.interval {
		r.mu.Unlock()
		return
	}
	r.last = now
	r.mu.Unlock()

	r.log.Info().
		Int("done", s.Processed()).
		Int("total", s.TotalItems).
		Int("failed", s.FailedItems).
		Str("percent", FormatPercent(s.PercentComplete)).
		Str("rate", FormatRate(s.ItemsPerSecond)).
		Dur("eta", s.Remaining.Round(time.Second)).
		Msg("batch progress")
}

func (r *LogReporter) Finish(s dispatch.Summary) {
	ev := r.log.Info()
	if s.Failed > 0 || s.Cancelled {
		ev = r.log.Warn()
	}
	ev.Int("completed", s.Completed).
		Int("failed", s.Failed).
		Int("submitted", s.Submitted).
		Int("total", s.Total).
		Bool("cancelled", s.Cancelled).
		Dur("elapsed", s.Elapsed.Round(time.Millisecond)).
		Msg("batch finished")
}
