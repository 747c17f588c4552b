// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package writer implements a sink that prints every appended row as a JSON line on the given
// io.Writer.
// It is primarily useful for debugging purposes, or for tweaking and adjusting the dataset
// transforms before writing to a real table.
package writer
