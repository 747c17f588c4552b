// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package pipeline provides the incremental ingestion pipeline of a dataset.
// A pipeline is composed of a source, a checkpoint store, the record transforms and a sink table.
// Every Run appends the rows that arrived since the last checkpoint and moves the checkpoint
// forward only after the rows have been stored.
package pipeline
