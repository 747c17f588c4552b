// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package metrics exposes the outcome of the pipelines as prometheus metrics. Every Metrics owns
// its registry so that tests and multiple servers in the same process do not share collectors.
package metrics
