// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package transform contains the record level steps run on every batch before it is appended:
// column drop, derived columns and deduplication.
//
// Derived columns are computed by a Spec, an ordered list of pure functions. The functions are
// usually compiled from a Definition naming one of the built-ins:
//
//   - upper, lower, trim: change the string form of the input column
//   - replace: substitutes every occurrence of Old with New
//   - bucket: maps a number to the label of the first threshold it is lower than, or to Default
//   - template: executes a text/template over the whole record, with the helpers of the functions
//     package
//   - sha256: hex digest of the string form of the input column
//
// Nil values stay nil for all the string functions.
package transform
