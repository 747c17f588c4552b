// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"github.com/mia-platform/tabingest/internal/checkpoint"
	"github.com/mia-platform/tabingest/internal/record"
)

// Batch groups the records read from a set of landing zone objects.
type Batch struct {
	// Records holds the rows of Objects, object after object. It must not be modified in place.
	Records []record.Record
	// Objects lists the names of the objects the records have been read from.
	Objects []string
	// Checkpoint is the progress marker to persist once the records have been appended.
	Checkpoint checkpoint.Checkpoint
}

// Empty reports whether the batch carries nothing to commit. A batch made of objects without rows
// is not empty: its checkpoint must still be written to move past those objects.
func (b Batch) Empty() bool {
	return len(b.Objects) == 0 && len(b.Records) == 0
}
