// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn reports a record without a column needed by a transform or a dedup key.
	ErrMissingColumn = errors.New("missing column")
	// ErrInvalidValue reports a value that a function cannot handle.
	ErrInvalidValue = errors.New("invalid value")
	// ErrUnknownFunction reports a definition naming a function that does not exist.
	ErrUnknownFunction = errors.New("unknown transform function")
	// ErrInvalidDefinition reports a definition with wrong inputs or arguments.
	ErrInvalidDefinition = errors.New("invalid transform definition")
)

// Ensure the error types implement the error interface.
var _ error = &ColumnError{}
var _ error = &ParsingError{}

// ColumnError locates the failure of a transform or dedup step inside a batch.
type ColumnError struct {
	Column string
	Row    int
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("row %d, column %q: %s", e.Row, e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}

var (
	errTemplateParsing = "transform template parsing error"
)

// ParsingError is returned when the template of a template transform cannot be parsed.
type ParsingError struct {
	msg string
	err error
}

func NewParsingError(column string, err error) *ParsingError {
	msg := fmt.Sprintf("%s for column %q", errTemplateParsing, column)
	if err != nil {
		msg = msg + ": " + err.Error()
	}

	return &ParsingError{
		msg: msg,
		err: err,
	}
}

func (e *ParsingError) Error() string {
	return e.msg
}

func (e *ParsingError) Unwrap() error {
	return e.err
}

func (e *ParsingError) Is(target error) bool {
	if e == nil || target == nil {
		return e == target
	}

	if t, ok := target.(*ParsingError); ok {
		return e.Error() == t.Error()
	}

	return errors.Is(target, ErrInvalidDefinition)
}
