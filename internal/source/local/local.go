// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package local exposes a landing zone kept in a directory of the local file system.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/tabingest/internal/source"
)

var (
	// ErrLocalSource is the sentinel error for all the local source errors.
	ErrLocalSource = errors.New("local source")
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrInvalidEnvVariable reports malformed environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")
)

type config struct {
	LandingZonePath  string `env:"LANDING_ZONE_PATH"`
	MaxFilesPerBatch int    `env:"SOURCE_MAX_FILES_PER_BATCH" envDefault:"0"`
}

func (c config) validate() error {
	switch {
	case len(c.LandingZonePath) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "LANDING_ZONE_PATH")
	case c.MaxFilesPerBatch < 0:
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidEnvVariable, "SOURCE_MAX_FILES_PER_BATCH")
	}

	return nil
}

var _ source.ObjectStore = &Directory{}

// Directory lists and reads objects from a root folder. Object names are slash separated paths
// relative to the root.
type Directory struct {
	root string
}

// NewDirectory returns a Directory rooted at root.
func NewDirectory(root string) *Directory {
	return &Directory{root: filepath.Clean(root)}
}

// ListObjects implements source.ObjectStore. A missing prefix folder has no objects.
func (d *Directory) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	names := make([]string, 0)
	dir, _ := path.Split(prefix)
	base := filepath.Join(d.root, filepath.FromSlash(dir))
	err := filepath.WalkDir(base, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(d.root, current)
		if err != nil {
			return err
		}

		if name := filepath.ToSlash(relative); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})

	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalSource, err)
	}

	return names, nil
}

// ReadObject implements source.ObjectStore.
func (d *Directory) ReadObject(_ context.Context, name string) ([]byte, error) {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return nil, fmt.Errorf("%w: object %q is outside the landing zone", ErrLocalSource, name)
	}

	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalSource, err)
	}

	return data, nil
}

// NewSource returns a landing source over the directory set in LANDING_ZONE_PATH.
func NewSource() (*source.LandingSource, error) {
	config, err := env.ParseAs[config]()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalSource, err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalSource, err)
	}

	return source.NewLandingSource(NewDirectory(config.LandingZonePath), config.MaxFilesPerBatch), nil
}
