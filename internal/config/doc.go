// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package config reads the dataset files. A file can contain multiple YAML documents, each one
// describing a dataset: its name, the columns to drop, the transforms and the dedup keys.
package config
