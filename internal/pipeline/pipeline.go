// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/mia-platform/tabingest/internal/checkpoint"
	"github.com/mia-platform/tabingest/internal/logger"
	"github.com/mia-platform/tabingest/internal/record"
	"github.com/mia-platform/tabingest/internal/sink"
	"github.com/mia-platform/tabingest/internal/source"
	"github.com/mia-platform/tabingest/internal/transform"
)

const (
	loggerName = "tabingest:pipeline"
)

// Options customizes the processing applied to every batch.
type Options struct {
	// Transforms are applied after DropColumns and before deduplication.
	Transforms transform.Spec
	// DedupKeys are the columns identifying a row inside a batch. It cannot be empty.
	DedupKeys []string
	// DropColumns are removed from every record, missing ones are ignored.
	DropColumns []string
	// Recorder receives the metrics of every batch and run, it can be nil.
	Recorder Recorder
}

// Recorder collects the outcome of the pipelines.
type Recorder interface {
	ObserveBatch(datasetID string, fetched, appended, duplicates int)
	ObserveRun(datasetID string, result RunResult, err error, elapsed time.Duration)
}

// RunResult summarizes the batches committed by a Run.
type RunResult struct {
	BatchesProcessed  int
	RowsAppended      int
	RowsFetched       int
	DuplicatesDropped int
}

// Pipeline ingests a single dataset. It owns the checkpoint of the dataset, so only one
// Pipeline per dataset must be running at any time.
type Pipeline struct {
	datasetID string
	source    source.Source
	store     checkpoint.Store
	table     sink.Table
	options   Options

	state   atomic.Int32
	running atomic.Bool
}

// New returns the pipeline of datasetID.
func New(datasetID string, src source.Source, store checkpoint.Store, table sink.Table, options Options) (*Pipeline, error) {
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPipeline, err)
	}

	switch {
	case src == nil:
		return nil, fmt.Errorf("%w: dataset %s: missing source", ErrInvalidPipeline, datasetID)
	case store == nil:
		return nil, fmt.Errorf("%w: dataset %s: missing checkpoint store", ErrInvalidPipeline, datasetID)
	case table == nil:
		return nil, fmt.Errorf("%w: dataset %s: missing sink table", ErrInvalidPipeline, datasetID)
	case len(options.DedupKeys) == 0 || slices.Contains(options.DedupKeys, ""):
		return nil, fmt.Errorf("%w: dataset %s: dedup keys cannot be empty", ErrInvalidPipeline, datasetID)
	}

	options.Transforms = slices.Clone(options.Transforms)
	options.DedupKeys = slices.Clone(options.DedupKeys)
	options.DropColumns = slices.Clone(options.DropColumns)
	return &Pipeline{
		datasetID: datasetID,
		source:    src,
		store:     store,
		table:     table,
		options:   options,
	}, nil
}

// DatasetID returns the dataset ingested by the pipeline.
func (p *Pipeline) DatasetID() string {
	return p.datasetID
}

// State returns the stage currently executed, or the outcome of the last Run.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Running reports whether a Run is in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

func (p *Pipeline) setState(state State) {
	p.state.Store(int32(state))
}

// Run appends every batch available in the source and returns when the source has no new data.
// Batches are committed one at a time: rows are appended and only then the checkpoint is written.
// The first error stops the run; the batches committed before it are counted in the result.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return RunResult{}, fmt.Errorf("dataset %s: %w", p.datasetID, ErrRunInProgress)
	}
	defer p.running.Store(false)

	log := logger.FromContext(ctx).WithName(loggerName).With("dataset", p.datasetID)
	start := time.Now()

	result, err := p.run(ctx, log)
	if err != nil {
		p.setState(StateFailed)
		log.Error("run failed", "batches", result.BatchesProcessed, "error", err)
	} else {
		p.setState(StateDone)
		log.Info("run completed", "batches", result.BatchesProcessed, "rows", result.RowsAppended, "duplicates", result.DuplicatesDropped)
	}

	if p.options.Recorder != nil {
		p.options.Recorder.ObserveRun(p.datasetID, result, err, time.Since(start))
	}

	return result, err
}

func (p *Pipeline) run(ctx context.Context, log logger.Logger) (RunResult, error) {
	var result RunResult
	p.setState(StatePending)

	current, err := p.store.Read(ctx, p.datasetID)
	if err != nil {
		return result, &CheckpointError{DatasetID: p.datasetID, Op: "read", Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		p.setState(StateFetching)
		batch, err := p.source.FetchNew(ctx, p.datasetID, current)
		if err != nil {
			return result, &SourceReadError{DatasetID: p.datasetID, Err: err}
		}

		if batch.Empty() {
			log.Debug("no new data")
			return result, nil
		}

		if current != nil && batch.Checkpoint.Sequence <= current.Sequence {
			return result, &SourceReadError{DatasetID: p.datasetID, Err: ErrCheckpointNotAdvanced}
		}

		log.Trace("batch fetched", "objects", batch.Objects, "rows", len(batch.Records))
		rows, duplicates, err := p.process(batch)
		if err != nil {
			return result, err
		}

		p.setState(StateWriting)
		if len(rows) > 0 {
			if err := p.table.Append(ctx, p.datasetID, rows); err != nil {
				return result, &SinkWriteError{DatasetID: p.datasetID, Err: err}
			}
		}

		p.setState(StateCheckpointing)
		if err := p.store.Write(ctx, p.datasetID, batch.Checkpoint); err != nil {
			return result, &CheckpointError{DatasetID: p.datasetID, Op: "write", Err: err}
		}

		result.BatchesProcessed++
		result.RowsFetched += len(batch.Records)
		result.RowsAppended += len(rows)
		result.DuplicatesDropped += duplicates
		if p.options.Recorder != nil {
			p.options.Recorder.ObserveBatch(p.datasetID, len(batch.Records), len(rows), duplicates)
		}

		log.Debug("batch committed", "sequence", batch.Checkpoint.Sequence, "rows", len(rows), "duplicates", duplicates)
		committed := batch.Checkpoint
		current = &committed
	}
}

// process returns the rows of batch ready to be appended and how many duplicates were dropped.
func (p *Pipeline) process(batch source.Batch) ([]record.Record, int, error) {
	p.setState(StateTransforming)
	rows := transform.DropColumns(batch.Records, p.options.DropColumns)
	rows, err := p.options.Transforms.Apply(rows)
	if err != nil {
		return nil, 0, &SchemaError{DatasetID: p.datasetID, Err: err}
	}

	p.setState(StateDeduping)
	deduped, err := transform.Dedup(rows, p.options.DedupKeys)
	if err != nil {
		return nil, 0, &SchemaError{DatasetID: p.datasetID, Err: err}
	}

	return deduped, len(rows) - len(deduped), nil
}
