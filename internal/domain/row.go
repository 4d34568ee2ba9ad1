package domain

import (
	"fmt"
	"strconv"
)

// Row is a single merchant feed row keyed by column name. Values are the raw
// scalars produced by the loader: strings, numbers, booleans or nil.
type Row map[string]any

// Value returns the string form of a column and whether the column exists.
// A null value is reported as present and empty.
func (r Row) Value(column string) (string, bool) {
	raw, ok := r[column]
	if !ok {
		return "", false
	}
	return stringify(raw), true
}

// Require returns the string form of a column, failing with ErrMalformedInput
// when the row does not carry it.
func (r Row) Require(column string) (string, error) {
	v, ok := r.Value(column)
	if !ok {
		return "", fmt.Errorf("%w: missing column %q", ErrMalformedInput, column)
	}
	return v, nil
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
