// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mia-platform/tabingest/internal/record"
)

var (
	errEmptyKeys = errors.New("dedup keys cannot be empty")
)

// Dedup drops the records whose key columns repeat the values of an earlier record, preserving the
// order of the first occurrences. Values are compared by type and value, so int64(1) and "1" are
// different keys.
func Dedup(records []record.Record, keys []string) ([]record.Record, error) {
	if len(keys) == 0 {
		return nil, errEmptyKeys
	}

	seen := make(map[string]struct{}, len(records))
	out := make([]record.Record, 0, len(records))
	for row, r := range records {
		builder := new(strings.Builder)
		for _, key := range keys {
			value, ok := r[key]
			if !ok {
				return nil, &ColumnError{Column: key, Row: row, Err: ErrMissingColumn}
			}
			encodeKey(builder, value)
		}

		encoded := builder.String()
		if _, duplicated := seen[encoded]; duplicated {
			continue
		}
		seen[encoded] = struct{}{}
		out = append(out, r)
	}

	return out, nil
}

// encodeKey writes a type tag, the length of the value and the value itself, so that no sequence of
// values can collide with another one.
func encodeKey(builder *strings.Builder, value any) {
	var tag byte
	var text string
	switch v := value.(type) {
	case nil:
		tag = 'n'
	case string:
		tag, text = 's', v
	case int64:
		tag, text = 'i', strconv.FormatInt(v, 10)
	case float64:
		tag, text = 'f', strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		tag, text = 'b', strconv.FormatBool(v)
	case time.Time:
		tag, text = 't', v.UTC().Format(time.RFC3339Nano)
	default:
		tag, text = '?', fmt.Sprintf("%T:%v", v, v)
	}

	builder.WriteByte(tag)
	builder.WriteString(strconv.Itoa(len(text)))
	builder.WriteByte(':')
	builder.WriteString(text)
}
