// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/mia-platform/tabingest/internal/azurestorage"
)

var _ azurestorage.Container = &Container{}

// Container is an in-memory azurestorage.Container. Failures can be injected per operation.
type Container struct {
	tb testing.TB

	ListErr     error
	DownloadErr error
	UploadErr   error

	lock  sync.Mutex
	blobs map[string][]byte
}

// NewContainer returns a Container holding a copy of blobs.
func NewContainer(tb testing.TB, blobs map[string][]byte) *Container {
	tb.Helper()

	return &Container{
		tb:    tb,
		blobs: maps.Clone(blobs),
	}
}

func (c *Container) List(_ context.Context, prefix string) ([]string, error) {
	c.tb.Helper()
	if c.ListErr != nil {
		return nil, c.ListErr
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	names := make([]string, 0)
	for name := range c.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}

	slices.Sort(names)
	return names, nil
}

func (c *Container) Download(_ context.Context, name string) ([]byte, error) {
	c.tb.Helper()
	if c.DownloadErr != nil {
		return nil, c.DownloadErr
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	data, ok := c.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", azurestorage.ErrBlobNotFound, name)
	}

	return slices.Clone(data), nil
}

func (c *Container) Upload(_ context.Context, name string, data []byte) error {
	c.tb.Helper()
	if c.UploadErr != nil {
		return c.UploadErr
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if c.blobs == nil {
		c.blobs = make(map[string][]byte)
	}
	c.blobs[name] = slices.Clone(data)
	return nil
}

// Blob returns the current content of name.
func (c *Container) Blob(name string) ([]byte, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	data, ok := c.blobs[name]
	return data, ok
}
