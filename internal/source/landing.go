// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mia-platform/tabingest/internal/checkpoint"
	"github.com/mia-platform/tabingest/internal/logger"
	"github.com/mia-platform/tabingest/internal/record"
	"github.com/mia-platform/tabingest/internal/source/format"
)

const (
	logName = "tabingest:source"
)

var (
	// ErrLandingZone wraps the errors returned while listing or reading the landing zone.
	ErrLandingZone = errors.New("landing zone")
)

var _ Source = &LandingSource{}

// LandingSource reads the objects stored under "<dataset>/" of an ObjectStore. Objects are consumed
// in lexical order of their names, so producers must use names that sort by arrival (like Spark part
// files or timestamped names).
type LandingSource struct {
	store ObjectStore
	// maxFilesPerBatch bounds the objects of a batch, zero takes every pending object.
	maxFilesPerBatch int
	now              func() time.Time
}

// NewLandingSource returns a LandingSource putting at most maxFilesPerBatch objects in a batch. A
// non positive maxFilesPerBatch puts all the pending objects in a single batch, so that a run
// commits them with one checkpoint and deduplicates across them.
func NewLandingSource(store ObjectStore, maxFilesPerBatch int) *LandingSource {
	maxFilesPerBatch = max(maxFilesPerBatch, 0)

	return &LandingSource{
		store:            store,
		maxFilesPerBatch: maxFilesPerBatch,
		now:              time.Now,
	}
}

// FetchNew implements Source.
func (s *LandingSource) FetchNew(ctx context.Context, datasetID string, since *checkpoint.Checkpoint) (Batch, error) {
	log := logger.FromContext(ctx).WithName(logName)
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return Batch{}, err
	}

	prefix := datasetID + "/"
	names, err := s.store.ListObjects(ctx, prefix)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: listing %s: %w", ErrLandingZone, prefix, err)
	}

	pending := make([]string, 0, len(names))
	for _, name := range names {
		if !dataObject(prefix, name) || since.Consumed(name) {
			continue
		}
		pending = append(pending, name)
	}

	slices.Sort(pending)
	pending = slices.Compact(pending)
	log.Debug("landing zone listed", "dataset", datasetID, "objects", len(names), "pending", len(pending))
	if len(pending) == 0 {
		return Batch{}, nil
	}

	selected := pending
	if s.maxFilesPerBatch > 0 {
		selected = pending[:min(len(pending), s.maxFilesPerBatch)]
	}
	records := make([]record.Record, 0)
	for _, name := range selected {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}

		data, err := s.store.ReadObject(ctx, name)
		if err != nil {
			return Batch{}, fmt.Errorf("%w: reading %s: %w", ErrLandingZone, name, err)
		}

		decoded, err := format.Decode(ctx, name, data)
		if err != nil {
			return Batch{}, err
		}

		log.Trace("object decoded", "dataset", datasetID, "object", name, "rows", len(decoded))
		records = append(records, decoded...)
	}

	return Batch{
		Records:    records,
		Objects:    slices.Clone(selected),
		Checkpoint: since.Advance(selected, s.now()),
	}, nil
}

// dataObject reports whether name, listed under prefix, holds dataset rows. Objects or folders whose
// name starts with "_" or "." are markers and metadata written by the producers.
func dataObject(prefix, name string) bool {
	relative, found := strings.CutPrefix(name, prefix)
	if !found || relative == "" {
		return false
	}

	for segment := range strings.SplitSeq(relative, "/") {
		if segment == "" || strings.HasPrefix(segment, "_") || strings.HasPrefix(segment, ".") {
			return false
		}
	}

	return format.Supported(relative)
}
