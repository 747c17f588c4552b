// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"

	"github.com/mia-platform/tabingest/internal/checkpoint"
)

// Source yields the raw records of a dataset that are not covered by a checkpoint.
type Source interface {
	// FetchNew returns the next batch of records of datasetID not yet recorded in since, which is nil
	// when the dataset has never been ingested. An empty batch means that no new data is available.
	// Calling it again with the same checkpoint returns the same batch.
	FetchNew(ctx context.Context, datasetID string, since *checkpoint.Checkpoint) (Batch, error)
}

// ObjectStore is the minimal listing and reading capability needed to consume a landing zone.
type ObjectStore interface {
	// ListObjects returns the names of all the objects starting with prefix, in any order.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	// ReadObject returns the full content of the named object.
	ReadObject(ctx context.Context, name string) ([]byte, error)
}
