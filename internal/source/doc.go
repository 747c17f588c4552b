// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package source defines the contract of the connectors that yield new batches of raw records
// for a dataset. LandingSource implements it over any object store laid out as a landing zone,
// with one folder per dataset.
package source
