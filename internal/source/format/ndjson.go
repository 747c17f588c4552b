// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package format

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mia-platform/tabingest/internal/record"
)

// decodeNDJSON reads one JSON object per line. Nested objects and arrays are kept as their
// compact JSON text.
func decodeNDJSON(ctx context.Context, data []byte) ([]record.Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	records := make([]record.Record, 0)
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := make(map[string]any)
		err := decoder.Decode(&values)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		for column, value := range values {
			switch value.(type) {
			case map[string]any, []any:
				encoded, err := json.Marshal(value)
				if err != nil {
					return nil, fmt.Errorf("row %d: column %q: %w", line, column, err)
				}
				values[column] = string(encoded)
			}
		}

		r, err := record.New(values)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, r)
	}

	return records, nil
}
