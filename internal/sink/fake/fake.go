// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/tabingest/internal/record"
	"github.com/mia-platform/tabingest/internal/sink"
)

var _ sink.Table = &FakeTable{}

// FakeTable records the appended rows in memory. When AppendErr is set every Append fails and
// nothing is recorded, unless FailOnAppend selects the single call, counted from 1, that fails.
type FakeTable struct {
	tb testing.TB

	AppendErr    error
	FailOnAppend int

	lock    sync.Mutex
	rows    map[string][]record.Record
	calls   int
	appends int
}

func NewFakeTable(tb testing.TB) *FakeTable {
	tb.Helper()
	return &FakeTable{
		tb:   tb,
		rows: make(map[string][]record.Record),
	}
}

func (f *FakeTable) Append(_ context.Context, datasetID string, rows []record.Record) error {
	f.tb.Helper()

	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls++
	if f.AppendErr != nil && (f.FailOnAppend <= 0 || f.calls == f.FailOnAppend) {
		return f.AppendErr
	}

	for _, row := range rows {
		f.rows[datasetID] = append(f.rows[datasetID], row.Clone())
	}
	f.appends++
	return nil
}

// Rows returns the rows appended for datasetID.
func (f *FakeTable) Rows(datasetID string) []record.Record {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.rows[datasetID]
}

// Appends returns how many Append calls succeeded.
func (f *FakeTable) Appends() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.appends
}
