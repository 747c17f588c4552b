// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mia-platform/tabingest/internal/record"
	"github.com/mia-platform/tabingest/internal/sink"
)

var _ sink.Table = &writerSink{}

type writerSink struct {
	writer io.Writer

	lock sync.Mutex
}

type line struct {
	Dataset string        `json:"dataset"`
	Row     record.Record `json:"row"`
}

// NewSink returns a sink.Table writing to w. The rows of a batch are written with a single call
// to w.Write, so batches of concurrent datasets are never interleaved.
func NewSink(w io.Writer) sink.Table {
	return &writerSink{
		writer: w,
	}
}

func (s *writerSink) Append(_ context.Context, datasetID string, rows []record.Record) error {
	buffer := new(bytes.Buffer)
	encoder := json.NewEncoder(buffer)
	for _, row := range rows {
		if err := encoder.Encode(line{Dataset: datasetID, Row: row}); err != nil {
			return fmt.Errorf("writer sink: %w", err)
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if _, err := s.writer.Write(buffer.Bytes()); err != nil {
		return fmt.Errorf("writer sink: %w", err)
	}
	return nil
}
