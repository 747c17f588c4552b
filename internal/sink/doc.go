// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package sink defines the append only tables receiving the processed batches.
// Implementations live in the subpackages: sqltable for SQL databases, catalog for an HTTP
// endpoint and writer for debugging on a local stream.
package sink
