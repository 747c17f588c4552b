// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mia-platform/tabingest/internal/checkpoint"
	"github.com/mia-platform/tabingest/internal/record"
	"github.com/mia-platform/tabingest/internal/source"
)

var _ source.Source = &Source{}

// Source serves a fixed list of record batches per dataset. The batch returned is selected by the
// sequence of the checkpoint received, so a batch is returned again until its checkpoint is written.
type Source struct {
	tb testing.TB

	// FetchErr, when set, is returned by every FetchNew call.
	FetchErr error
	// OnFetch, when set, is called at the start of every FetchNew call.
	OnFetch func(ctx context.Context, datasetID string)

	lock    sync.Mutex
	batches map[string][][]record.Record
	calls   int
}

// NewSource returns a Source serving batches.
func NewSource(tb testing.TB, batches map[string][][]record.Record) *Source {
	tb.Helper()

	return &Source{
		tb:      tb,
		batches: batches,
	}
}

func (s *Source) FetchNew(ctx context.Context, datasetID string, since *checkpoint.Checkpoint) (source.Batch, error) {
	s.tb.Helper()

	s.lock.Lock()
	s.calls++
	s.lock.Unlock()

	if s.OnFetch != nil {
		s.OnFetch(ctx, datasetID)
	}
	if s.FetchErr != nil {
		return source.Batch{}, s.FetchErr
	}

	var sequence int64
	if since != nil {
		sequence = since.Sequence
	}

	batches := s.batches[datasetID]
	if sequence >= int64(len(batches)) {
		return source.Batch{}, nil
	}

	records := make([]record.Record, 0, len(batches[sequence]))
	for _, r := range batches[sequence] {
		records = append(records, r.Clone())
	}

	object := fmt.Sprintf("%s/batch-%04d.ndjson", datasetID, sequence)
	return source.Batch{
		Records:    records,
		Objects:    []string{object},
		Checkpoint: since.Advance([]string{object}, time.Unix(sequence, 0)),
	}, nil
}

// Calls returns how many times FetchNew has been called.
func (s *Source) Calls() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls
}
