// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package bolt stores dataset checkpoints in a single bbolt database.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/mia-platform/tabingest/internal/checkpoint"
)

var (
	// ErrBoltStore wraps every error returned by the bolt store.
	ErrBoltStore = errors.New("bolt checkpoint store")

	bucketName = []byte("checkpoints")
)

const (
	openTimeout = 5 * time.Second
)

var _ checkpoint.Store = &Store{}

// Store keeps one key per dataset inside the checkpoints bucket. Every Write is a bbolt
// transaction, which is atomic and fsynced on commit.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path. The file is locked until Close is called.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBoltStore, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrBoltStore, err)
	}

	return &Store{db: db}, nil
}

// Read implements checkpoint.Store.
func (s *Store) Read(_ context.Context, datasetID string) (*checkpoint.Checkpoint, error) {
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return nil, err
	}

	var cp *checkpoint.Checkpoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(datasetID))
		if data == nil {
			return nil
		}

		// data is only valid inside the transaction, Unmarshal copies what it needs
		decoded, err := checkpoint.Unmarshal(data)
		cp = decoded
		return err
	})
	if err != nil {
		if errors.Is(err, checkpoint.ErrCorrupted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrBoltStore, err)
	}

	return cp, nil
}

// Write implements checkpoint.Store.
func (s *Store) Write(_ context.Context, datasetID string, cp checkpoint.Checkpoint) error {
	if err := checkpoint.ValidateDatasetID(datasetID); err != nil {
		return err
	}

	data, err := checkpoint.Marshal(cp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBoltStore, err)
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(datasetID), data)
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrBoltStore, err)
	}

	return nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
