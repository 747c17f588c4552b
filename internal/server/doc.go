// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package server contains the HTTP surface of the serve command.
// It sets up the HTTP server using the Fiber framework, configures middleware for logging,
// exposes health, readiness and metrics routes and lets clients trigger dataset runs.
package server
