// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package checkpoint defines the progress marker of a dataset and the contract of the stores
// that persist it. Subpackages implement the store on local files, bbolt and Azure Blob Storage.
package checkpoint
