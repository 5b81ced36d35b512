package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/rshade/graphbatch/internal/record"
)

// parquetReadBatch is the number of rows decoded per ReadRows call.
const parquetReadBatch = 256

// parquetSource reads a flat parquet file. Only the three configured leaf
// columns are decoded; every other column is ignored.
type parquetSource struct {
	path    string
	columns Columns
}

func (s *parquetSource) Load(ctx context.Context) ([]record.Raw, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("reading parquet footer of %s: %w", s.path, err)
	}

	contentCol, groupCol, idCol, err := s.lookup(pf.Schema())
	if err != nil {
		return nil, err
	}

	raws := make([]record.Raw, 0, pf.NumRows())
	buf := make([]parquet.Row, parquetReadBatch)

	for i, rg := range pf.RowGroups() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		rows := rg.Rows()
		readErr := func() error {
			defer rows.Close()
			for {
				n, rowErr := rows.ReadRows(buf)
				for _, row := range buf[:n] {
					raw, decodeErr := decodeParquetRow(row, contentCol, groupCol, idCol)
					if decodeErr != nil {
						return decodeErr
					}
					raws = append(raws, raw)
				}
				if errors.Is(rowErr, io.EOF) {
					return nil
				}
				if rowErr != nil {
					return rowErr
				}
			}
		}()
		if readErr != nil {
			return nil, fmt.Errorf("%s row group %d: %w", s.path, i, readErr)
		}
	}

	return raws, nil
}

func (s *parquetSource) lookup(schema *parquet.Schema) (int, int, int, error) {
	idx := make([]int, 0, 3)
	for _, name := range s.columns.names() {
		leaf, ok := schema.Lookup(name)
		if !ok {
			return 0, 0, 0, fmt.Errorf("%w: %q in %s", ErrMissingColumn, name, s.path)
		}
		idx = append(idx, leaf.ColumnIndex)
	}
	return idx[0], idx[1], idx[2], nil
}

func decodeParquetRow(row parquet.Row, contentCol, groupCol, idCol int) (record.Raw, error) {
	var raw record.Raw
	for _, v := range row {
		if v.IsNull() {
			continue
		}
		switch v.Column() {
		case contentCol:
			s, err := parquetString(v)
			if err != nil {
				return raw, err
			}
			raw.Content = &s
		case groupCol:
			s, err := parquetString(v)
			if err != nil {
				return raw, err
			}
			raw.Group = &s
		case idCol:
			id, null, err := parquetID(v)
			if err != nil {
				return raw, err
			}
			if !null {
				raw.ID = &id
			}
		}
	}
	return raw, nil
}

func parquetString(v parquet.Value) (string, error) {
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray()), nil
	default:
		return "", fmt.Errorf("%w: expected a string column, got %s", ErrInvalidValue, v.Kind())
	}
}

// parquetID decodes an id cell. A NaN float is reported as null, matching how
// pandas encodes a missing value in a float column.
func parquetID(v parquet.Value) (int64, bool, error) {
	switch v.Kind() {
	case parquet.Int32:
		return int64(v.Int32()), false, nil
	case parquet.Int64:
		return v.Int64(), false, nil
	case parquet.Float, parquet.Double:
		f := v.Double()
		if v.Kind() == parquet.Float {
			f = float64(v.Float())
		}
		if math.IsNaN(f) {
			return 0, true, nil
		}
		id, err := floatID(f)
		return id, false, err
	case parquet.ByteArray:
		s := string(v.ByteArray())
		if isNaNString(s) {
			return 0, true, nil
		}
		id, err := parseID(s)
		return id, false, err
	default:
		return 0, false, fmt.Errorf("%w: unsupported id column type %s", ErrInvalidValue, v.Kind())
	}
}

func (s *parquetSource) Close() error { return nil }
