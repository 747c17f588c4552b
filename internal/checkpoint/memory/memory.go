// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package memory keeps checkpoints in the memory of the process, they are lost when it exits.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mia-platform/tabingest/internal/checkpoint"
)

var _ checkpoint.Store = &Store{}

// Store is a checkpoint.Store backed by a map.
type Store struct {
	lock        sync.Mutex
	checkpoints map[string]checkpoint.Checkpoint
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		checkpoints: make(map[string]checkpoint.Checkpoint),
	}
}

// Read implements checkpoint.Store.
func (s *Store) Read(_ context.Context, datasetID string) (*checkpoint.Checkpoint, error) {
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	cp, ok := s.checkpoints[datasetID]
	if !ok {
		return nil, nil
	}

	cp.Files = slices.Clone(cp.Files)
	return &cp, nil
}

// Write implements checkpoint.Store.
func (s *Store) Write(_ context.Context, datasetID string, cp checkpoint.Checkpoint) error {
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	cp.Files = slices.Clone(cp.Files)
	s.checkpoints[datasetID] = cp
	return nil
}
