// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package transform

import (
	"github.com/mia-platform/tabingest/internal/record"
)

// Func computes the value of a column from a record. It must not modify the record.
type Func func(r record.Record) (any, error)

// Transform sets Column to the value returned by Fn. Inputs lists the columns Fn reads, every one
// must be present in the record.
type Transform struct {
	Column string
	Inputs []string
	Fn     Func
}

// Spec is an ordered list of transforms. Each transform sees the columns written by the previous
// ones.
type Spec []Transform

// Apply runs the transforms over every record and returns the transformed copies. The first failure
// is returned as a *ColumnError and no record is returned.
func (s Spec) Apply(records []record.Record) ([]record.Record, error) {
	out := make([]record.Record, 0, len(records))
	for row, r := range records {
		transformed := r.Clone()
		for _, t := range s {
			for _, input := range t.Inputs {
				if !transformed.Has(input) {
					return nil, &ColumnError{Column: input, Row: row, Err: ErrMissingColumn}
				}
			}

			value, err := t.Fn(transformed)
			if err != nil {
				return nil, &ColumnError{Column: t.Column, Row: row, Err: err}
			}

			normalized, err := record.Normalize(value)
			if err != nil {
				return nil, &ColumnError{Column: t.Column, Row: row, Err: err}
			}
			transformed[t.Column] = normalized
		}
		out = append(out, transformed)
	}

	return out, nil
}

// DropColumns returns copies of records without columns. Columns absent from a record are ignored.
func DropColumns(records []record.Record, columns []string) []record.Record {
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		dropped := r.Clone()
		for _, column := range columns {
			delete(dropped, column)
		}
		out = append(out, dropped)
	}

	return out
}
