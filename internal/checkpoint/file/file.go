// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package file stores every dataset checkpoint as a JSON document inside a local directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mia-platform/tabingest/internal/checkpoint"
)

const (
	fileExtension = ".checkpoint.json"
)

var (
	// ErrFileStore wraps every error returned by the file store.
	ErrFileStore = errors.New("file checkpoint store")
)

var _ checkpoint.Store = &Store{}

// Store keeps one file per dataset under a root directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrFileStore)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileStore, err)
	}

	return &Store{dir: filepath.Clean(dir)}, nil
}

func (s *Store) path(datasetID string) string {
	return filepath.Join(s.dir, datasetID+fileExtension)
}

// Read implements checkpoint.Store.
func (s *Store) Read(_ context.Context, datasetID string) (*checkpoint.Checkpoint, error) {
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(datasetID))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrFileStore, err)
	}

	return checkpoint.Unmarshal(data)
}

// Write implements checkpoint.Store. The new content is written to a temporary file in the same
// directory and renamed over the previous one, so readers observe either version in full.
func (s *Store) Write(_ context.Context, datasetID string, cp checkpoint.Checkpoint) error {
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return err
	}

	data, err := checkpoint.Marshal(cp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileStore, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+datasetID+"-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileStore, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrFileStore, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrFileStore, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrFileStore, err)
	}

	if err := os.Rename(tmpName, s.path(datasetID)); err != nil {
		return fmt.Errorf("%w: %w", ErrFileStore, err)
	}

	return nil
}
