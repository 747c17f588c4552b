// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/tabingest/internal/checkpoint"
	fakecheckpoint "github.com/mia-platform/tabingest/internal/checkpoint/fake"
	"github.com/mia-platform/tabingest/internal/record"
	"github.com/mia-platform/tabingest/internal/sink"
	fakesink "github.com/mia-platform/tabingest/internal/sink/fake"
	"github.com/mia-platform/tabingest/internal/source"
	fakesource "github.com/mia-platform/tabingest/internal/source/fake"
	"github.com/mia-platform/tabingest/internal/source/local"
	"github.com/mia-platform/tabingest/internal/transform"
)

const dataset = "DimUser"

func userBatches() map[string][][]record.Record {
	return map[string][][]record.Record{
		dataset: {
			{
				{"user_id": int64(1), "user_name": "ada", "_rescued_data": nil},
				{"user_id": int64(1), "user_name": "ada again", "_rescued_data": nil},
				{"user_id": int64(2), "user_name": "grace", "_rescued_data": `{"x":1}`},
			},
			{
				{"user_id": int64(3), "user_name": "linus"},
			},
		},
	}
}

func upperUserName(tb testing.TB) transform.Spec {
	tb.Helper()

	spec, err := transform.Compile([]transform.Definition{
		{Column: "user_name", Function: transform.FunctionUpper, Inputs: []string{"user_name"}},
	})
	require.NoError(tb, err)
	return spec
}

func newTestPipeline(t *testing.T, src source.Source, store checkpoint.Store, table *fakesink.FakeTable, options Options) *Pipeline {
	t.Helper()

	if options.DedupKeys == nil {
		options.DedupKeys = []string{"user_id"}
	}

	p, err := New(dataset, src, store, table, options)
	require.NoError(t, err)
	return p
}

func TestRunIncremental(t *testing.T) {
	t.Parallel()

	src := fakesource.NewSource(t, userBatches())
	store := fakecheckpoint.NewStore()
	table := fakesink.NewFakeTable(t)
	p := newTestPipeline(t, src, store, table, Options{
		Transforms:  upperUserName(t),
		DropColumns: []string{"_rescued_data", "not_there"},
	})
	assert.Equal(t, StatePending, p.State())

	result, err := p.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, RunResult{BatchesProcessed: 2, RowsAppended: 3, RowsFetched: 4, DuplicatesDropped: 1}, result)
	assert.Equal(t, StateDone, p.State())
	assert.Equal(t, []record.Record{
		{"user_id": int64(1), "user_name": "ADA"},
		{"user_id": int64(2), "user_name": "GRACE"},
		{"user_id": int64(3), "user_name": "LINUS"},
	}, table.Rows(dataset))

	cp, err := store.Read(t.Context(), dataset)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(2), cp.Sequence)
	assert.Equal(t, []string{"DimUser/batch-0000.ndjson", "DimUser/batch-0001.ndjson"}, cp.Files)

	again, err := p.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, RunResult{}, again)
	assert.Equal(t, 2, table.Appends())
	assert.Equal(t, 2, store.Writes())
}

func TestRunDedupKeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	src := fakesource.NewSource(t, map[string][][]record.Record{
		dataset: {{
			{"id": int64(1), "v": "a"},
			{"id": int64(1), "v": "b"},
			{"id": int64(2), "v": "c"},
		}},
	})
	table := fakesink.NewFakeTable(t)
	p := newTestPipeline(t, src, fakecheckpoint.NewStore(), table, Options{DedupKeys: []string{"id"}})

	result, err := p.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, result.DuplicatesDropped)
	assert.Equal(t, []record.Record{{"id": int64(1), "v": "a"}, {"id": int64(2), "v": "c"}}, table.Rows(dataset))
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	failure := errors.New("storage unavailable")
	testCases := map[string]struct {
		batches     map[string][][]record.Record
		options     Options
		setup       func(*fakesource.Source, *fakecheckpoint.Store, *fakesink.FakeTable)
		expectedErr any
	}{
		"source failure": {
			batches:     userBatches(),
			setup:       func(s *fakesource.Source, _ *fakecheckpoint.Store, _ *fakesink.FakeTable) { s.FetchErr = failure },
			expectedErr: new(*SourceReadError),
		},
		"checkpoint read failure": {
			batches:     userBatches(),
			setup:       func(_ *fakesource.Source, c *fakecheckpoint.Store, _ *fakesink.FakeTable) { c.ReadErr = failure },
			expectedErr: new(*CheckpointError),
		},
		"missing dedup key": {
			batches:     map[string][][]record.Record{dataset: {{{"user_id": int64(1)}, {"user_name": "nobody"}}}},
			expectedErr: new(*SchemaError),
		},
		"missing transform input": {
			batches:     map[string][][]record.Record{dataset: {{{"user_id": int64(1)}}}},
			options:     Options{Transforms: upperUserName(t), DedupKeys: []string{"user_id"}},
			expectedErr: new(*SchemaError),
		},
		"dedup key removed by drop columns": {
			batches:     userBatches(),
			options:     Options{DropColumns: []string{"user_id"}, DedupKeys: []string{"user_id"}},
			expectedErr: new(*SchemaError),
		},
		"sink failure": {
			batches:     userBatches(),
			setup:       func(_ *fakesource.Source, _ *fakecheckpoint.Store, table *fakesink.FakeTable) { table.AppendErr = failure },
			expectedErr: new(*SinkWriteError),
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			src := fakesource.NewSource(t, test.batches)
			store := fakecheckpoint.NewStore()
			table := fakesink.NewFakeTable(t)
			if test.setup != nil {
				test.setup(src, store, table)
			}

			p := newTestPipeline(t, src, store, table, test.options)
			result, err := p.Run(t.Context())
			require.Error(t, err)
			assert.ErrorAs(t, err, test.expectedErr)
			assert.Equal(t, StateFailed, p.State())
			assert.Zero(t, result.BatchesProcessed)
			assert.Zero(t, store.Writes(), "checkpoint must not advance on failures")
		})
	}
}

func TestSinkFailureKeepsCheckpoint(t *testing.T) {
	t.Parallel()

	src := fakesource.NewSource(t, userBatches())
	store := fakecheckpoint.NewStore()
	table := fakesink.NewFakeTable(t)
	p := newTestPipeline(t, src, store, table, Options{Transforms: upperUserName(t)})

	table.AppendErr = errors.New("disk full")
	_, err := p.Run(t.Context())
	var sinkErr *SinkWriteError
	require.ErrorAs(t, err, &sinkErr)
	assert.ErrorIs(t, err, table.AppendErr)

	cp, err := store.Read(t.Context(), dataset)
	require.NoError(t, err)
	assert.Nil(t, cp)

	table.AppendErr = nil
	result, err := p.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, result.BatchesProcessed)
	assert.Len(t, table.Rows(dataset), 3)
}

func TestRunLandingZoneFailureKeepsCheckpoint(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for name, content := range map[string]string{
		"DimUser/a.ndjson": `{"user_id":1,"v":"a"}`,
		"DimUser/b.ndjson": `{"user_id":1,"v":"b"}`,
	} {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	testCases := map[string]struct {
		maxFiles           int
		failOnAppend       int
		expectedCheckpoint *checkpoint.Checkpoint
		expectedResult     RunResult
		expectedRows       []record.Record
	}{
		"all pending files in one batch": {
			failOnAppend:   1,
			expectedResult: RunResult{BatchesProcessed: 1, RowsFetched: 2, RowsAppended: 1, DuplicatesDropped: 1},
			expectedRows:   []record.Record{{"user_id": int64(1), "v": "a"}},
		},
		"bounded batches commit the files before the failure": {
			maxFiles:           1,
			failOnAppend:       2,
			expectedCheckpoint: &checkpoint.Checkpoint{Files: []string{"DimUser/a.ndjson"}, Sequence: 1},
			expectedResult:     RunResult{BatchesProcessed: 1, RowsFetched: 1, RowsAppended: 1},
			expectedRows:       []record.Record{{"user_id": int64(1), "v": "a"}, {"user_id": int64(1), "v": "b"}},
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			src := source.NewLandingSource(local.NewDirectory(root), test.maxFiles)
			store := fakecheckpoint.NewStore()
			table := fakesink.NewFakeTable(t)
			table.AppendErr = errors.New("boom")
			table.FailOnAppend = test.failOnAppend
			p := newTestPipeline(t, src, store, table, Options{})

			_, err := p.Run(t.Context())
			var sinkErr *SinkWriteError
			require.ErrorAs(t, err, &sinkErr)

			cp, err := store.Read(t.Context(), dataset)
			require.NoError(t, err)
			if test.expectedCheckpoint == nil {
				assert.Nil(t, cp)
			} else {
				require.NotNil(t, cp)
				assert.Equal(t, test.expectedCheckpoint.Files, cp.Files)
				assert.Equal(t, test.expectedCheckpoint.Sequence, cp.Sequence)
			}

			result, err := p.Run(t.Context())
			require.NoError(t, err)
			assert.Equal(t, test.expectedResult, result)
			assert.Equal(t, test.expectedRows, table.Rows(dataset))

			cp, err = store.Read(t.Context(), dataset)
			require.NoError(t, err)
			require.NotNil(t, cp)
			assert.Equal(t, []string{"DimUser/a.ndjson", "DimUser/b.ndjson"}, cp.Files)
		})
	}
}

func TestCheckpointWriteFailureRedeliversBatch(t *testing.T) {
	t.Parallel()

	src := fakesource.NewSource(t, userBatches())
	store := fakecheckpoint.NewStore()
	table := fakesink.NewFakeTable(t)
	p := newTestPipeline(t, src, store, table, Options{})

	store.WriteErr = errors.New("permission denied")
	_, err := p.Run(t.Context())
	var checkpointErr *CheckpointError
	require.ErrorAs(t, err, &checkpointErr)
	assert.Equal(t, "write", checkpointErr.Op)
	assert.Len(t, table.Rows(dataset), 2)

	store.WriteErr = nil
	result, err := p.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, result.BatchesProcessed)
	assert.Len(t, table.Rows(dataset), 5, "the uncommitted batch is appended again")
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	t.Run("before the first fetch", func(t *testing.T) {
		t.Parallel()

		src := fakesource.NewSource(t, userBatches())
		store := fakecheckpoint.NewStore()
		p := newTestPipeline(t, src, store, fakesink.NewFakeTable(t), Options{})

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := p.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, src.Calls())
		assert.Zero(t, store.Writes())
	})

	t.Run("between batches", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		src := fakesource.NewSource(t, userBatches())
		src.OnFetch = func(context.Context, string) { cancel() }
		store := fakecheckpoint.NewStore()
		p := newTestPipeline(t, src, store, fakesink.NewFakeTable(t), Options{})

		result, err := p.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, result.BatchesProcessed)
		assert.Equal(t, 1, src.Calls())
		assert.Equal(t, 1, store.Writes())
	})
}

type staticSource struct {
	batch source.Batch
}

func (s staticSource) FetchNew(context.Context, string, *checkpoint.Checkpoint) (source.Batch, error) {
	return s.batch, nil
}

func TestRunStopsWhenCheckpointDoesNotAdvance(t *testing.T) {
	t.Parallel()

	src := staticSource{batch: source.Batch{
		Records:    []record.Record{{"user_id": int64(1)}},
		Objects:    []string{"DimUser/a.json"},
		Checkpoint: checkpoint.Checkpoint{Files: []string{"DimUser/a.json"}, Sequence: 1},
	}}
	table := fakesink.NewFakeTable(t)
	p := newTestPipeline(t, src, fakecheckpoint.NewStore(), table, Options{})

	result, err := p.Run(t.Context())
	assert.ErrorIs(t, err, ErrCheckpointNotAdvanced)
	assert.Equal(t, 1, result.BatchesProcessed)
	assert.Equal(t, 1, table.Appends())
}

func TestRunEmptyObjectsAdvanceCheckpoint(t *testing.T) {
	t.Parallel()

	src := fakesource.NewSource(t, map[string][][]record.Record{dataset: {{}}})
	store := fakecheckpoint.NewStore()
	table := fakesink.NewFakeTable(t)
	p := newTestPipeline(t, src, store, table, Options{})

	result, err := p.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, RunResult{BatchesProcessed: 1}, result)
	assert.Zero(t, table.Appends())
	assert.Equal(t, 1, store.Writes())
}

// blockingTable waits for release before accepting the rows.
type blockingTable struct {
	*fakesink.FakeTable
	entered chan State
	release chan struct{}
	p       *Pipeline
}

func (b *blockingTable) Append(ctx context.Context, datasetID string, rows []record.Record) error {
	b.entered <- b.p.State()
	<-b.release
	return b.FakeTable.Append(ctx, datasetID, rows)
}

func TestRunStateAndExclusiveRuns(t *testing.T) {
	t.Parallel()

	table := &blockingTable{
		FakeTable: fakesink.NewFakeTable(t),
		entered:   make(chan State, 1),
		release:   make(chan struct{}),
	}
	src := fakesource.NewSource(t, map[string][][]record.Record{dataset: {{{"user_id": int64(1)}}}})
	p, err := New(dataset, src, fakecheckpoint.NewStore(), table, Options{DedupKeys: []string{"user_id"}})
	require.NoError(t, err)
	table.p = p

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.Run(context.Background())
		assert.NoError(t, err)
	}()

	select {
	case state := <-table.entered:
		assert.Equal(t, StateWriting, state)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "append never called")
	}

	assert.True(t, p.Running())
	_, err = p.Run(t.Context())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(table.release)
	wg.Wait()
	assert.False(t, p.Running())
	assert.Equal(t, StateDone, p.State())
}

type recorder struct {
	lock    sync.Mutex
	batches int
	runs    int
	failed  int
}

func (r *recorder) ObserveBatch(string, int, int, int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.batches++
}

func (r *recorder) ObserveRun(_ string, _ RunResult, err error, _ time.Duration) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.runs++
	if err != nil {
		r.failed++
	}
}

func TestRunRecorder(t *testing.T) {
	t.Parallel()

	rec := new(recorder)
	src := fakesource.NewSource(t, userBatches())
	p := newTestPipeline(t, src, fakecheckpoint.NewStore(), fakesink.NewFakeTable(t), Options{Recorder: rec})

	_, err := p.Run(t.Context())
	require.NoError(t, err)
	src.FetchErr = errors.New("boom")
	_, err = p.Run(t.Context())
	require.Error(t, err)

	assert.Equal(t, 2, rec.batches)
	assert.Equal(t, 2, rec.runs)
	assert.Equal(t, 1, rec.failed)
}

func TestNew(t *testing.T) {
	t.Parallel()

	src := fakesource.NewSource(t, nil)
	store := fakecheckpoint.NewStore()
	table := fakesink.NewFakeTable(t)
	keys := Options{DedupKeys: []string{"id"}}

	testCases := map[string]struct {
		datasetID string
		source    source.Source
		store     checkpoint.Store
		table     *fakesink.FakeTable
		options   Options
	}{
		"empty dataset":    {datasetID: "", source: src, store: store, table: table, options: keys},
		"missing source":   {datasetID: dataset, store: store, table: table, options: keys},
		"missing store":    {datasetID: dataset, source: src, table: table, options: keys},
		"missing table":    {datasetID: dataset, source: src, store: store, options: keys},
		"missing keys":     {datasetID: dataset, source: src, store: store, table: table},
		"empty key column": {datasetID: dataset, source: src, store: store, table: table, options: Options{DedupKeys: []string{""}}},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var sinkTable sink.Table
			if test.table != nil {
				sinkTable = test.table
			}

			_, err := New(test.datasetID, test.source, test.store, sinkTable, test.options)
			assert.ErrorIs(t, err, ErrInvalidPipeline)
		})
	}
}
