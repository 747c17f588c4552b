// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package azure exposes a landing zone kept in an Azure Blob Storage container, for example the
// bronze container filled by upstream copy jobs.
package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/tabingest/internal/azurestorage"
	"github.com/mia-platform/tabingest/internal/source"
)

var (
	// ErrAzureSource is the sentinel error for all Azure Source errors.
	ErrAzureSource = errors.New("azure source")
)

var _ source.ObjectStore = &containerStore{}

// containerStore adapts an azurestorage.Container to source.ObjectStore.
type containerStore struct {
	container azurestorage.Container
}

func (c containerStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	return c.container.List(ctx, prefix)
}

func (c containerStore) ReadObject(ctx context.Context, name string) ([]byte, error) {
	return c.container.Download(ctx, name)
}

// NewSource creates a landing source over the container set in the env variables.
func NewSource() (*source.LandingSource, error) {
	config, err := env.ParseAs[config]()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAzureSource, err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAzureSource, err)
	}

	container, err := config.NewContainer(config.ContainerName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAzureSource, err)
	}

	return newSource(container, config.MaxFilesPerBatch), nil
}

func newSource(container azurestorage.Container, maxFilesPerBatch int) *source.LandingSource {
	return source.NewLandingSource(containerStore{container: container}, maxFilesPerBatch)
}
