// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package format decodes landing zone objects into records. The decoder is chosen by the object
// name extension.
package format

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mia-platform/tabingest/internal/record"
)

var (
	// ErrUnsupportedFormat is returned for objects whose extension has no decoder.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrDecode wraps every error found while decoding an object.
	ErrDecode = errors.New("decoding error")
)

type decoder func(ctx context.Context, data []byte) ([]record.Record, error)

var decoders = map[string]decoder{
	".parquet": decodeParquet,
	".json":    decodeNDJSON,
	".jsonl":   decodeNDJSON,
	".ndjson":  decodeNDJSON,
}

// Supported reports whether name can be decoded.
func Supported(name string) bool {
	_, ok := decoders[strings.ToLower(path.Ext(name))]
	return ok
}

// Decode reads data, the content of the object called name, and returns its rows in file order.
// Decoding stops when ctx is done.
func Decode(ctx context.Context, name string, data []byte) ([]record.Record, error) {
	decode, ok := decoders[strings.ToLower(path.Ext(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	records, err := decode(ctx, data)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}

	return records, nil
}
