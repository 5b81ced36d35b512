package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rshade/graphbatch/internal/record"
)

// csvSource reads a CSV file with a header row. An empty cell is null; an id
// cell spelled NaN (as pandas writes missing floats) is null as well.
type csvSource struct {
	path    string
	columns Columns
}

func (s *csvSource) Load(ctx context.Context) ([]record.Raw, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", s.path)
		}
		return nil, fmt.Errorf("reading header of %s: %w", s.path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	cols := make([]int, 0, 3)
	for _, name := range s.columns.names() {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s", ErrMissingColumn, name, s.path)
		}
		cols = append(cols, i)
	}

	var raws []record.Raw
	for line := 2; ; line++ {
		if line%1024 == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
		}

		row, readErr := r.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading %s: %w", s.path, readErr)
		}

		raw, decodeErr := decodeCSVRow(row, cols)
		if decodeErr != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, decodeErr)
		}
		raws = append(raws, raw)
	}

	return raws, nil
}

func decodeCSVRow(row []string, cols []int) (record.Raw, error) {
	cell := func(i int) (string, bool) {
		if i >= len(row) || row[i] == "" {
			return "", false
		}
		return row[i], true
	}

	var raw record.Raw
	if v, ok := cell(cols[0]); ok {
		raw.Content = &v
	}
	if v, ok := cell(cols[1]); ok {
		raw.Group = &v
	}
	if v, ok := cell(cols[2]); ok && !isNaNString(v) {
		id, err := parseID(v)
		if err != nil {
			return record.Raw{}, err
		}
		raw.ID = &id
	}
	return raw, nil
}

func (s *csvSource) Close() error { return nil }
