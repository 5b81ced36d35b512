package dispatch

import (
	"slices"
	"time"
)

// Failure describes one task that did not complete.
type Failure struct {
	ID       int64
	Group    string
	Err      error
	Attempts int
}

// Result is the outcome of a Run.
type Result struct {
	// Completed holds record ids in completion order.
	Completed []int64

	Failures  []Failure
	Submitted int
	Cancelled bool
	Elapsed   time.Duration
}

// CompletedSorted returns the completed ids in ascending order.
func (r *Result) CompletedSorted() []int64 {
	out := slices.Clone(r.Completed)
	slices.Sort(out)
	return out
}

// FailedIDs returns the ids of failed tasks in failure order.
func (r *Result) FailedIDs() []int64 {
	ids := make([]int64, len(r.Failures))
	for i, f := range r.Failures {
		ids[i] = f.ID
	}
	return ids
}

// Summary condenses r for the completion event.
func (r *Result) Summary(total int) Summary {
	return Summary{
		Total:     total,
		Submitted: r.Submitted,
		Completed: len(r.Completed),
		Failed:    len(r.Failures),
		Cancelled: r.Cancelled,
		Elapsed:   r.Elapsed,
	}
}

// Summary is the payload of the completion event.
type Summary struct {
	Total     int           `json:"total"`
	Submitted int           `json:"submitted"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Cancelled bool          `json:"cancelled"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}
