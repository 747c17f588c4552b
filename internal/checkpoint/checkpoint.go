// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrInvalidDatasetID reports a dataset identifier that cannot be used as a storage key.
	ErrInvalidDatasetID = errors.New("invalid dataset identifier")
	// ErrCorrupted reports a stored checkpoint that cannot be decoded.
	ErrCorrupted = errors.New("corrupted checkpoint")
)

// Checkpoint is the progress marker of one dataset. Files holds, in lexical order, the landing
// zone objects already appended to the sink; Sequence counts the committed batches.
type Checkpoint struct {
	Files     []string  `json:"files,omitempty"`
	Sequence  int64     `json:"sequence"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store durably records the checkpoint of every dataset.
type Store interface {
	// Read returns the last checkpoint written for datasetID, or nil if none has been written yet.
	Read(ctx context.Context, datasetID string) (*Checkpoint, error)
	// Write atomically replaces the checkpoint of datasetID.
	Write(ctx context.Context, datasetID string, checkpoint Checkpoint) error
}

// Consumed reports whether the object name is already recorded. It is safe to call on nil.
func (c *Checkpoint) Consumed(name string) bool {
	if c == nil {
		return false
	}

	_, found := slices.BinarySearch(c.Files, name)
	return found
}

// Advance returns the checkpoint that follows c once files have been consumed. The receiver is
// not modified and can be nil for the first batch of a dataset.
func (c *Checkpoint) Advance(files []string, now time.Time) Checkpoint {
	next := Checkpoint{
		Sequence:  1,
		UpdatedAt: now.UTC(),
	}

	if c != nil {
		next.Sequence = c.Sequence + 1
		next.Files = slices.Clone(c.Files)
	}

	next.Files = append(next.Files, files...)
	slices.Sort(next.Files)
	next.Files = slices.Compact(next.Files)
	return next
}

// ValidateDatasetID checks that id can be used as a file name or storage key.
func ValidateDatasetID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty identifier", ErrInvalidDatasetID)
	case strings.ContainsAny(id, `/\`), id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidDatasetID, id)
	}

	return nil
}

// Marshal encodes checkpoint in the format shared by all the stores.
func Marshal(checkpoint Checkpoint) ([]byte, error) {
	return json.Marshal(checkpoint)
}

// Unmarshal decodes data written by Marshal.
func Unmarshal(data []byte) (*Checkpoint, error) {
	checkpoint := new(Checkpoint)
	if err := json.Unmarshal(data, checkpoint); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	if !slices.IsSorted(checkpoint.Files) {
		slices.Sort(checkpoint.Files)
	}

	return checkpoint, nil
}
