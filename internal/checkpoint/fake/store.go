// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"

	"github.com/mia-platform/tabingest/internal/checkpoint"
	"github.com/mia-platform/tabingest/internal/checkpoint/memory"
)

var _ checkpoint.Store = &Store{}

// Store is an in-memory checkpoint.Store. ReadErr and WriteErr, when set, are returned by every
// call of the corresponding method.
type Store struct {
	ReadErr  error
	WriteErr error

	store *memory.Store

	lock   sync.Mutex
	writes int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		store: memory.NewStore(),
	}
}

func (s *Store) Read(ctx context.Context, datasetID string) (*checkpoint.Checkpoint, error) {
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}

	return s.store.Read(ctx, datasetID)
}

func (s *Store) Write(ctx context.Context, datasetID string, cp checkpoint.Checkpoint) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}

	if err := s.store.Write(ctx, datasetID, cp); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.writes++
	return nil
}

// Writes returns how many times Write succeeded.
func (s *Store) Writes() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.writes
}
