// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPipeline is returned by New when a mandatory argument is missing.
	ErrInvalidPipeline = errors.New("invalid pipeline")
	// ErrRunInProgress is returned by Run when another Run of the same pipeline has not finished.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrCheckpointNotAdvanced is returned when the source yields a batch that does not move the
	// checkpoint forward.
	ErrCheckpointNotAdvanced = errors.New("source batch does not advance the checkpoint")
)

// Ensure the stage errors implement the error interface.
var (
	_ error = &SchemaError{}
	_ error = &SourceReadError{}
	_ error = &SinkWriteError{}
	_ error = &CheckpointError{}
)

// SchemaError reports a batch with a missing transform input or dedup key, or a failing transform.
type SchemaError struct {
	DatasetID string
	Err       error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset %s: schema error: %s", e.DatasetID, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// SourceReadError reports a failure fetching a batch from the source.
type SourceReadError struct {
	DatasetID string
	Err       error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("dataset %s: source read error: %s", e.DatasetID, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// SinkWriteError reports a failed append. The checkpoint has not been advanced.
type SinkWriteError struct {
	DatasetID string
	Err       error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("dataset %s: sink write error: %s", e.DatasetID, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}

// CheckpointError reports a failure reading or writing the checkpoint. When writing fails the
// batch has already been appended and it will be delivered again by the next run.
type CheckpointError struct {
	DatasetID string
	Op        string
	Err       error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("dataset %s: checkpoint %s error: %s", e.DatasetID, e.Op, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}
