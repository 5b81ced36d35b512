package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parseID parses an integer id. Integral floats such as "42.0" are accepted
// because dataframes that ever held a null id store the column as float.
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q is not an integer", ErrInvalidValue, s)
	}
	return floatID(f)
}

func floatID(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: id %v is not an integer", ErrInvalidValue, f)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: id %v overflows int64", ErrInvalidValue, f)
	}
	return int64(f), nil
}

// isNaNString reports whether a textual cell stands for a missing float.
func isNaNString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nan", "null", "none":
		return true
	}
	return false
}
