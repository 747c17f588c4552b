// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/tabingest/internal/azurestorage"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		cfg         config
		expectedErr error
	}{
		"missing storage account": {
			cfg:         config{ContainerName: "bronze", MaxFilesPerBatch: 1},
			expectedErr: azurestorage.ErrInvalidEnvVariable,
		},
		"missing container": {
			cfg:         config{Config: azurestorage.Config{AccountName: "lake"}, MaxFilesPerBatch: 1},
			expectedErr: azurestorage.ErrMissingEnvVariable,
		},
		"invalid batch size": {
			cfg:         config{Config: azurestorage.Config{AccountName: "lake"}, ContainerName: "bronze", MaxFilesPerBatch: -1},
			expectedErr: ErrInvalidEnvVariable,
		},
		"valid": {
			cfg: config{Config: azurestorage.Config{AccountName: "lake"}, ContainerName: "bronze", MaxFilesPerBatch: 1},
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			err := test.cfg.validate()
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				return
			}

			require.NoError(t, err)
		})
	}
}
