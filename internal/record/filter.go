package record

import (
	"errors"
	"fmt"
)

// ErrInvalidLimit is returned for a negative limit.
var ErrInvalidLimit = errors.New("limit must be >= 0")

// Selection is the outcome of preparing a batch from raw rows.
type Selection struct {
	// Records are the surviving records in load order.
	Records []Record

	// Loaded is the number of raw rows read from the source.
	Loaded int

	// Excluded counts rows dropped because a required field was null.
	Excluded int

	// Duplicates counts rows dropped because their id was already seen.
	Duplicates int

	// Truncated counts valid records dropped by the limit.
	Truncated int
}

// Select validates raw rows and applies limit. Rows with a null field are
// excluded, later rows repeating an earlier id are dropped, and when limit is
// positive only the first limit survivors (in load order) are kept.
// A limit of zero means no limit.
func Select(raws []Raw, limit int) (Selection, error) {
	if limit < 0 {
		return Selection{}, fmt.Errorf("%w, got %d", ErrInvalidLimit, limit)
	}

	sel := Selection{
		Loaded:  len(raws),
		Records: make([]Record, 0, len(raws)),
	}
	seen := make(map[int64]struct{}, len(raws))

	for _, raw := range raws {
		rec, ok := raw.Record()
		if !ok {
			sel.Excluded++
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			sel.Duplicates++
			continue
		}
		seen[rec.ID] = struct{}{}
		sel.Records = append(sel.Records, rec)
	}

	if limit > 0 && len(sel.Records) > limit {
		sel.Truncated = len(sel.Records) - limit
		sel.Records = sel.Records[:limit]
	}

	return sel, nil
}

// Tasks builds one Task per record, preserving order.
func Tasks(records []Record) []Task {
	tasks := make([]Task, len(records))
	for i, rec := range records {
		tasks[i] = Task{Seq: i, Record: rec}
	}
	return tasks
}

// IDs returns the ids of records in order.
func IDs(records []Record) []int64 {
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	return ids
}
