// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/caarlos0/env/v11"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mia-platform/tabingest/internal/info"
	"github.com/mia-platform/tabingest/internal/record"
	"github.com/mia-platform/tabingest/internal/sink"
)

const (
	defaultTokenPath = "/oauth/token"
)

var (
	errMultipleAuthMethods = errors.New("only one of SINK_CATALOG_TOKEN or SINK_CATALOG_CLIENT_ID can be set")
	errMissingClientSecret = errors.New("SINK_CATALOG_CLIENT_SECRET is required with SINK_CATALOG_CLIENT_ID")
	errMissingClientID     = errors.New("SINK_CATALOG_CLIENT_ID is required with SINK_CATALOG_CLIENT_SECRET")
	errUnexpectedResponse  = errors.New("unexpected error")
)

var _ sink.Table = &catalogSink{}

// CatalogError wraps every failure of the catalog sink.
type CatalogError struct {
	err error
}

func (e *CatalogError) Error() string {
	return "catalog: " + e.err.Error()
}

func (e *CatalogError) Unwrap() error {
	return e.err
}

func (e *CatalogError) Is(target error) bool {
	cre, ok := target.(*CatalogError)
	if !ok {
		return false
	}

	return e.err.Error() == cre.err.Error()
}

type catalogSink struct {
	CatalogEndpoint string `env:"SINK_CATALOG_ENDPOINT,required"`
	Token           string `env:"SINK_CATALOG_TOKEN"`
	ClientID        string `env:"SINK_CATALOG_CLIENT_ID"`
	ClientSecret    string `env:"SINK_CATALOG_CLIENT_SECRET"`
	AuthEndpoint    string `env:"SINK_CATALOG_AUTH_ENDPOINT"`

	client *http.Client
}

// batch is the document sent for every append.
type batch struct {
	Dataset string          `json:"dataset"`
	Rows    []record.Record `json:"rows"`
}

// NewSink returns a sink.Table configured from the environment variables.
func NewSink() (sink.Table, error) {
	s := new(catalogSink)
	if err := env.Parse(s); err != nil {
		return nil, handleError(err)
	}

	if err := s.setup(); err != nil {
		return nil, handleError(err)
	}

	return s, nil
}

// setup validates the configuration and builds the authenticated http client.
func (s *catalogSink) setup() error {
	endpoint, err := url.Parse(s.CatalogEndpoint)
	if err != nil {
		return err
	}

	if s.AuthEndpoint == "" {
		s.AuthEndpoint = endpoint.Scheme + "://" + endpoint.Host + defaultTokenPath
	} else if _, err := url.Parse(s.AuthEndpoint); err != nil {
		return err
	}

	switch {
	case s.Token != "" && (s.ClientID != "" || s.ClientSecret != ""):
		return errMultipleAuthMethods
	case s.ClientID != "" && s.ClientSecret == "":
		return errMissingClientSecret
	case s.ClientID == "" && s.ClientSecret != "":
		return errMissingClientID
	}

	ctx := context.Background()
	switch {
	case s.ClientID != "":
		config := clientcredentials.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			TokenURL:     s.AuthEndpoint,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		s.client = config.Client(ctx)
	case s.Token != "":
		s.client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.Token, TokenType: "Bearer"}))
	default:
		s.client = http.DefaultClient
	}

	return nil
}

// Append implements sink.Table.
func (s *catalogSink) Append(ctx context.Context, datasetID string, rows []record.Record) error {
	if len(rows) == 0 {
		return nil
	}

	body, err := json.Marshal(batch{Dataset: datasetID, Rows: rows})
	if err != nil {
		return handleError(err)
	}

	target, err := url.JoinPath(s.CatalogEndpoint, "datasets", datasetID, "rows")
	if err != nil {
		return handleError(err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return handleError(err)
	}

	request.Header.Set("User-Agent", info.UserAgent())
	request.Header.Set("Content-Type", "application/json")

	client := s.client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(request)
	if err != nil {
		return handleError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var respBody map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&respBody); err == nil {
			if message, ok := respBody["message"].(string); ok {
				return handleError(errors.New(message))
			}
		}

		return handleError(fmt.Errorf("%w: status %d", errUnexpectedResponse, resp.StatusCode))
	}

	return nil
}

func handleError(err error) error {
	var parseErr env.AggregateError
	if errors.As(err, &parseErr) {
		err = parseErr.Errors[0]
	}

	return &CatalogError{
		err: err,
	}
}
