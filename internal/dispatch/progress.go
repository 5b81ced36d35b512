package dispatch

import (
	"sync"
	"time"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress tracks how many tasks of a batch have finished.
// It provides thread-safe access to progress metrics for UI updates.
type Progress struct {
	// TotalItems is the number of tasks in the batch.
	TotalItems int

	// CompletedItems is the number of tasks that succeeded.
	CompletedItems int

	// FailedItems is the number of tasks that failed.
	FailedItems int

	// StartTime is when the batch started.
	StartTime time.Time

	// LastUpdateTime is when progress was last updated.
	LastUpdateTime time.Time

	// mu protects concurrent access to progress fields.
	mu sync.RWMutex
}

// NewProgress creates a new progress tracker.
func NewProgress(totalItems int) *Progress {
	now := time.Now()
	return &Progress{
		TotalItems:     totalItems,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// AddCompleted records one successful task.
func (p *Progress) AddCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CompletedItems++
	p.LastUpdateTime = time.Now()
}

// AddFailed records one failed task.
func (p *Progress) AddFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.FailedItems++
	p.LastUpdateTime = time.Now()
}

// PercentComplete returns the finished percentage (0-100), failures included.
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.percentCompleteUnsafe()
}

// ElapsedTime returns the time elapsed since the batch started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.StartTime)
}

// ItemsPerSecond returns the processing rate in tasks per second.
func (p *Progress) ItemsPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.itemsPerSecondUnsafe()
}

// Snapshot returns a thread-safe copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		TotalItems:      p.TotalItems,
		CompletedItems:  p.CompletedItems,
		FailedItems:     p.FailedItems,
		StartTime:       p.StartTime,
		LastUpdateTime:  p.LastUpdateTime,
		PercentComplete: p.percentCompleteUnsafe(),
		ElapsedTime:     time.Since(p.StartTime),
		ItemsPerSecond:  p.itemsPerSecondUnsafe(),
		Remaining:       p.etaUnsafe(),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	TotalItems      int
	CompletedItems  int
	FailedItems     int
	StartTime       time.Time
	LastUpdateTime  time.Time
	PercentComplete float64
	ElapsedTime     time.Duration
	ItemsPerSecond  float64
	Remaining       time.Duration
}

// Processed returns the number of finished tasks.
func (s ProgressSnapshot) Processed() int {
	return s.CompletedItems + s.FailedItems
}

// Ratio returns the finished fraction in [0, 1].
func (s ProgressSnapshot) Ratio() float64 {
	if s.TotalItems == 0 {
		return 1
	}
	return float64(s.Processed()) / float64(s.TotalItems)
}

// percentCompleteUnsafe calculates percent complete without locking.
// Should only be called when already holding the lock.
func (p *Progress) percentCompleteUnsafe() float64 {
	if p.TotalItems == 0 {
		return 0
	}
	return (float64(p.CompletedItems+p.FailedItems) / float64(p.TotalItems)) * percentMultiplier
}

// itemsPerSecondUnsafe calculates items per second without locking.
// Should only be called when already holding the lock.
func (p *Progress) itemsPerSecondUnsafe() float64 {
	elapsed := time.Since(p.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.CompletedItems+p.FailedItems) / elapsed
}

// etaUnsafe extrapolates from the average time per finished task and returns
// 0 until something has finished.
func (p *Progress) etaUnsafe() time.Duration {
	done := p.CompletedItems + p.FailedItems
	if done == 0 {
		return 0
	}
	avg := time.Since(p.StartTime) / time.Duration(done)
	return avg * time.Duration(p.TotalItems-done)
}
