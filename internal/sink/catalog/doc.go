// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package catalog implements a sink that posts every batch, as a single JSON document, to an HTTP
// catalog service.
//
// The service is authenticated with a static bearer token (SINK_CATALOG_TOKEN) or with the OAuth2
// client credentials flow (SINK_CATALOG_CLIENT_ID and SINK_CATALOG_CLIENT_SECRET). The token
// endpoint defaults to /oauth/token on the host of SINK_CATALOG_ENDPOINT.
package catalog
