// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// DatasetResult is the outcome of the Run of one pipeline inside RunAll.
type DatasetResult struct {
	DatasetID string
	Result    RunResult
	Err       error
}

// RunAll runs the pipelines concurrently, at most limit at a time when limit is positive. A failing
// pipeline does not stop the others. The results keep the order of pipelines and the returned error
// joins the errors of all the failed runs.
func RunAll(ctx context.Context, pipelines []*Pipeline, limit int) ([]DatasetResult, error) {
	results := make([]DatasetResult, len(pipelines))

	group := new(errgroup.Group)
	if limit > 0 {
		group.SetLimit(limit)
	}

	for idx, p := range pipelines {
		group.Go(func() error {
			result, err := p.Run(ctx)
			results[idx] = DatasetResult{
				DatasetID: p.DatasetID(),
				Result:    result,
				Err:       err,
			}
			return nil
		})
	}
	_ = group.Wait()

	errs := make([]error, 0)
	for _, result := range results {
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}

	return results, errors.Join(errs...)
}
