// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package sink

import (
	"context"

	"github.com/mia-platform/tabingest/internal/record"
)

// Table receives the rows of a dataset.
type Table interface {
	// Append adds rows to the table of datasetID. Either all the rows are stored or, when an
	// error is returned, none of them.
	Append(ctx context.Context, datasetID string, rows []record.Record) error
}
