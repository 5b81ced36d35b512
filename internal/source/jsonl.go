package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rshade/graphbatch/internal/record"
)

// jsonlSource reads newline-delimited JSON objects. A missing key or a JSON
// null is treated as a null field.
type jsonlSource struct {
	path    string
	columns Columns
}

func (s *jsonlSource) Load(ctx context.Context) ([]record.Raw, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()

	var raws []record.Raw
	for n := 1; ; n++ {
		if n%1024 == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
		}

		var obj map[string]json.RawMessage
		if decErr := dec.Decode(&obj); decErr != nil {
			if errors.Is(decErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s object %d: %w", s.path, n, decErr)
		}

		raw, decodeErr := s.decode(obj)
		if decodeErr != nil {
			return nil, fmt.Errorf("%s object %d: %w", s.path, n, decodeErr)
		}
		raws = append(raws, raw)
	}

	return raws, nil
}

func (s *jsonlSource) decode(obj map[string]json.RawMessage) (record.Raw, error) {
	var raw record.Raw

	content, err := jsonString(obj, s.columns.Content)
	if err != nil {
		return raw, err
	}
	group, err := jsonString(obj, s.columns.Group)
	if err != nil {
		return raw, err
	}
	raw.Content, raw.Group = content, group

	v, ok := obj[s.columns.ID]
	if !ok || isJSONNull(v) {
		return raw, nil
	}

	var num json.Number
	if numErr := json.Unmarshal(v, &num); numErr != nil {
		var str string
		if strErr := json.Unmarshal(v, &str); strErr != nil {
			return raw, fmt.Errorf("%w: id %s", ErrInvalidValue, string(v))
		}
		num = json.Number(str)
	}
	if isNaNString(num.String()) {
		return raw, nil
	}
	id, err := parseID(num.String())
	if err != nil {
		return raw, err
	}
	raw.ID = &id
	return raw, nil
}

func jsonString(obj map[string]json.RawMessage, key string) (*string, error) {
	v, ok := obj[key]
	if !ok || isJSONNull(v) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, fmt.Errorf("%w: %q is not a string", ErrInvalidValue, key)
	}
	return &s, nil
}

func isJSONNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func (s *jsonlSource) Close() error { return nil }
