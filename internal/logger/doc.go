// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logger wraps hclog behind a small interface. Loggers travel inside a context
// so every pipeline stage and HTTP handler logs with the same configuration.
package logger
