// Package record defines the unit of work processed by graphbatch: one
// function snippet, the dataset partition it belongs to, and its stable id.
package record

import (
	"fmt"
)

// Record is one function snippet drawn from the input table. Records are
// immutable once loaded.
type Record struct {
	ID      int64
	Group   string
	Content string
}

// String implements fmt.Stringer without dumping the content.
func (r Record) String() string {
	return fmt.Sprintf("%s/%d", r.Group, r.ID)
}

// Raw is a row as read from a source, before validation. A nil field means the
// value was null or the column was absent for that row.
type Raw struct {
	Content *string
	Group   *string
	ID      *int64
}

// NewRaw builds a Raw with every field present.
func NewRaw(id int64, group, content string) Raw {
	return Raw{Content: &content, Group: &group, ID: &id}
}

// Record converts r into a Record. It returns false if any field is null.
func (r Raw) Record() (Record, bool) {
	if r.Content == nil || r.Group == nil || r.ID == nil {
		return Record{}, false
	}
	return Record{ID: *r.ID, Group: *r.Group, Content: *r.Content}, true
}

// Task wraps exactly one Record for dispatch. Seq is the submission order.
type Task struct {
	Seq    int
	Record Record
}
