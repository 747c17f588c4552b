// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azurestorage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		cfg           Config
		containerName string
		expectedErr   error
	}{
		"missing connection string and account": {
			containerName: "bronze",
			expectedErr:   ErrInvalidEnvVariable,
		},
		"missing container name": {
			cfg:         Config{AccountName: "account"},
			expectedErr: ErrMissingEnvVariable,
		},
		"valid with account": {
			cfg:           Config{AccountName: "account"},
			containerName: "bronze",
		},
		"valid with connection string": {
			cfg:           Config{ConnectionString: "UseDevelopmentStorage=true"},
			containerName: "bronze",
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := test.cfg.Validate(test.containerName)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestServiceURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://account.blob.core.windows.net/", Config{AccountName: "account"}.serviceURL())
	assert.Equal(t, "https://other.blob.core.windows.net/", Config{AccountName: "https://other.blob.core.windows.net/"}.serviceURL())
}

func TestNewContainerFromConnectionString(t *testing.T) {
	t.Parallel()

	cfg := Config{ConnectionString: "DefaultEndpointsProtocol=https;AccountName=devstore;AccountKey=a2V5;EndpointSuffix=core.windows.net"}
	container, err := cfg.NewContainer("bronze")
	require.NoError(t, err)
	assert.NotNil(t, container)

	_, err = Config{}.NewContainer("bronze")
	assert.ErrorIs(t, err, ErrInvalidEnvVariable)
}
