// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package blob

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/tabingest/internal/azurestorage/fake"
	"github.com/mia-platform/tabingest/internal/checkpoint"
)

func TestStore(t *testing.T) {
	t.Parallel()

	container := fake.NewContainer(t, nil)
	store := NewStore(container)

	cp, err := store.Read(t.Context(), "DimTrack")
	require.NoError(t, err)
	assert.Nil(t, cp)

	written := checkpoint.Checkpoint{Files: []string{"DimTrack/part-0.parquet"}, Sequence: 3, UpdatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Write(t.Context(), "DimTrack", written))
	data, ok := container.Blob("_checkpoints/DimTrack.json")
	require.True(t, ok)
	assert.JSONEq(t, `{"files":["DimTrack/part-0.parquet"],"sequence":3,"updatedAt":"2024-06-01T00:00:00Z"}`, string(data))

	cp, err = store.Read(t.Context(), "DimTrack")
	require.NoError(t, err)
	assert.Equal(t, &written, cp)
}

func TestStoreErrors(t *testing.T) {
	t.Parallel()

	failure := errors.New("network down")
	testCases := map[string]struct {
		setup       func(*fake.Container)
		read        bool
		expectedErr error
	}{
		"download failure": {
			setup:       func(c *fake.Container) { c.DownloadErr = failure },
			read:        true,
			expectedErr: ErrBlobStore,
		},
		"upload failure": {
			setup:       func(c *fake.Container) { c.UploadErr = failure },
			expectedErr: ErrBlobStore,
		},
		"corrupted blob": {
			setup: func(c *fake.Container) {
				require.NoError(t, c.Upload(t.Context(), "_checkpoints/DimUser.json", []byte("not json")))
			},
			read:        true,
			expectedErr: checkpoint.ErrCorrupted,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			container := fake.NewContainer(t, nil)
			test.setup(container)
			store := NewStore(container)

			var err error
			if test.read {
				_, err = store.Read(t.Context(), "DimUser")
			} else {
				err = store.Write(t.Context(), "DimUser", checkpoint.Checkpoint{Sequence: 1})
			}
			assert.ErrorIs(t, err, test.expectedErr)
		})
	}
}
