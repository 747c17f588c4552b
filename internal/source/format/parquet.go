// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package format

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/decimal128"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"

	"github.com/mia-platform/tabingest/internal/record"
)

const (
	parquetChunkSize = 4096
	secondsPerDay    = 24 * 60 * 60
)

func decodeParquet(ctx context.Context, data []byte) ([]record.Record, error) {
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, err
	}
	defer table.Release()

	fields := table.Schema().Fields()
	records := make([]record.Record, 0, table.NumRows())
	tr := array.NewTableReader(table, parquetChunkSize)
	defer tr.Release()

	for tr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec := tr.Record()
		for row := 0; row < int(rec.NumRows()); row++ {
			r := make(record.Record, len(fields))
			for idx, field := range fields {
				value, err := arrowValue(rec.Column(idx), row)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", field.Name, err)
				}
				r[field.Name] = value
			}
			records = append(records, r)
		}
	}

	return records, nil
}

// arrowValue extracts the value at row converted to one of the Record types.
func arrowValue(column arrow.Array, row int) (any, error) {
	if column.IsNull(row) {
		return nil, nil
	}

	switch arr := column.(type) {
	case *array.String:
		return arr.Value(row), nil
	case *array.LargeString:
		return arr.Value(row), nil
	case *array.Binary:
		return string(arr.Value(row)), nil
	case *array.Boolean:
		return arr.Value(row), nil
	case *array.Int8:
		return int64(arr.Value(row)), nil
	case *array.Int16:
		return int64(arr.Value(row)), nil
	case *array.Int32:
		return int64(arr.Value(row)), nil
	case *array.Int64:
		return arr.Value(row), nil
	case *array.Uint8:
		return int64(arr.Value(row)), nil
	case *array.Uint16:
		return int64(arr.Value(row)), nil
	case *array.Uint32:
		return int64(arr.Value(row)), nil
	case *array.Uint64:
		return record.FromUint64(arr.Value(row))
	case *array.Float32:
		return float64(arr.Value(row)), nil
	case *array.Float64:
		return arr.Value(row), nil
	case *array.Decimal128:
		scale := arr.DataType().(*arrow.Decimal128Type).Scale
		return decimalValue(arr.Value(row), scale), nil
	case *array.Date32:
		return time.Unix(int64(arr.Value(row))*secondsPerDay, 0).UTC(), nil
	case *array.Date64:
		return time.UnixMilli(int64(arr.Value(row))).UTC(), nil
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return timestampValue(int64(arr.Value(row)), unit), nil
	default:
		return nil, fmt.Errorf("%w: %s", record.ErrUnsupportedType, column.DataType())
	}
}

func timestampValue(value int64, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(value, 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(value).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(value).UTC()
	default:
		return time.Unix(0, value).UTC()
	}
}

// decimalValue converts a decimal to the nearest float64, integral decimals keep an exact int64.
func decimalValue(value decimal128.Num, scale int32) any {
	if scale == 0 {
		if integer := value.BigInt(); integer.IsInt64() {
			return integer.Int64()
		}
	}
	return value.ToFloat64(scale)
}
