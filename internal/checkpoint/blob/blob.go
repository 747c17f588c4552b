// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package blob stores dataset checkpoints as JSON blobs inside an Azure Blob Storage container.
package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/mia-platform/tabingest/internal/azurestorage"
	"github.com/mia-platform/tabingest/internal/checkpoint"
)

const (
	defaultPrefix = "_checkpoints/"
	blobExtension = ".json"
)

var (
	// ErrBlobStore wraps every error returned by the blob store.
	ErrBlobStore = errors.New("blob checkpoint store")
)

var _ checkpoint.Store = &Store{}

// Store keeps the checkpoints under a common prefix of a container. Block blob uploads are
// committed in a single operation, so a reader never sees a partial document.
type Store struct {
	container azurestorage.Container
	prefix    string
}

// NewStore returns a Store writing under the "_checkpoints/" prefix of container.
func NewStore(container azurestorage.Container) *Store {
	return &Store{
		container: container,
		prefix:    defaultPrefix,
	}
}

func (s *Store) blobName(datasetID string) string {
	return s.prefix + datasetID + blobExtension
}

// Read implements checkpoint.Store.
func (s *Store) Read(ctx context.Context, datasetID string) (*checkpoint.Checkpoint, error) {
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return nil, err
	}

	data, err := s.container.Download(ctx, s.blobName(datasetID))
	switch {
	case errors.Is(err, azurestorage.ErrBlobNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrBlobStore, err)
	}

	return checkpoint.Unmarshal(data)
}

// Write implements checkpoint.Store.
func (s *Store) Write(ctx context.Context, datasetID string, cp checkpoint.Checkpoint) error {
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return err
	}

	data, err := checkpoint.Marshal(cp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBlobStore, err)
	}

	if err := s.container.Upload(ctx, s.blobName(datasetID), data); err != nil {
		return fmt.Errorf("%w: %w", ErrBlobStore, err)
	}

	return nil
}
