// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azure

import (
	"errors"
	"fmt"

	"github.com/mia-platform/tabingest/internal/azurestorage"
)

var (
	// ErrInvalidEnvVariable reports malformed environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")
)

// config holds all the configuration needed to read the landing zone container.
type config struct {
	azurestorage.Config

	ContainerName    string `env:"AZURE_STORAGE_BLOB_CONTAINER_NAME"`
	MaxFilesPerBatch int    `env:"SOURCE_MAX_FILES_PER_BATCH" envDefault:"0"`
}

func (c config) validate() error {
	if err := c.Validate(c.ContainerName); err != nil {
		return err
	}

	if c.MaxFilesPerBatch < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidEnvVariable, "SOURCE_MAX_FILES_PER_BATCH")
	}

	return nil
}
