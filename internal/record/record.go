// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package record defines the typed row flowing from landing zone sources to sink tables.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

var (
	// ErrUnsupportedType reports a value whose type cannot be stored in a Record.
	ErrUnsupportedType = errors.New("unsupported value type")
)

// Record maps a column name to its value. After normalization a value is one of string, int64,
// float64, bool, time.Time or nil.
type Record map[string]any

// New normalizes values and returns them as a Record.
func New(values map[string]any) (Record, error) {
	record := make(Record, len(values))
	for column, value := range values {
		normalized, err := Normalize(value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		record[column] = normalized
	}

	return record, nil
}

// Normalize converts value to one of the types admitted in a Record.
func Normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, int64, float64, bool:
		return v, nil
	case time.Time:
		return v.UTC(), nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		return FromUint64(uint64(v))
	case uint64:
		return FromUint64(v)
	case float32:
		return float64(v), nil
	case []byte:
		return string(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, v.String())
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, value)
	}
}

// FromUint64 converts v to int64, values that do not fit are rejected.
func FromUint64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedType, v)
	}
	return int64(v), nil
}

// Has reports whether column is present in the record, a nil value counts as present.
func (r Record) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// Clone returns a shallow copy of r, values are immutable so it is safe to modify the copy.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Columns returns the record column names in lexical order.
func (r Record) Columns() []string {
	return slices.Sorted(maps.Keys(r))
}

// Columns returns the union of the columns of records: the columns of every record are visited
// in lexical order and kept in order of first appearance.
func Columns(records []Record) []string {
	seen := make(map[string]struct{})
	columns := make([]string, 0)
	for _, r := range records {
		for _, column := range r.Columns() {
			if _, ok := seen[column]; ok {
				continue
			}
			seen[column] = struct{}{}
			columns = append(columns, column)
		}
	}

	return columns
}
