// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/tabingest/internal/azurestorage"
	"github.com/mia-platform/tabingest/internal/checkpoint"
	"github.com/mia-platform/tabingest/internal/checkpoint/blob"
	"github.com/mia-platform/tabingest/internal/checkpoint/bolt"
	"github.com/mia-platform/tabingest/internal/checkpoint/file"
	"github.com/mia-platform/tabingest/internal/checkpoint/memory"
	"github.com/mia-platform/tabingest/internal/server"
	"github.com/mia-platform/tabingest/internal/sink"
	"github.com/mia-platform/tabingest/internal/sink/catalog"
	"github.com/mia-platform/tabingest/internal/sink/sqltable"
	"github.com/mia-platform/tabingest/internal/sink/writer"
)

const (
	checkpointBackendFile = "file"
	checkpointBackendBolt = "bolt"
	checkpointBackendBlob = "blob"

	sinkDriverCatalog = "catalog"

	defaultCheckpointDir  = ".checkpoints"
	defaultCheckpointBolt = "checkpoints.db"
	defaultSQLiteDSN      = "tabingest.db"
)

var (
	errInvalidBackend = errors.New("invalid backend configuration")

	checkpointBackends = []string{checkpointBackendFile, checkpointBackendBolt, checkpointBackendBlob}
	sinkDrivers        = []string{sqltable.DriverSQLite, sqltable.DriverPostgres, sinkDriverCatalog}

	// backendsGetter returns the checkpoint store and the sink table of the pipelines.
	// It can be overridden for testing purposes.
	backendsGetter = backendsFromEnv
)

// backendConfig holds the environment selecting where checkpoints and rows are written.
type backendConfig struct {
	azurestorage.Config

	CheckpointBackend       string `env:"CHECKPOINT_BACKEND" envDefault:"file"`
	CheckpointPath          string `env:"CHECKPOINT_PATH"`
	CheckpointContainerName string `env:"CHECKPOINT_CONTAINER_NAME"`

	SinkDriver      string `env:"SINK_DRIVER" envDefault:"sqlite"`
	SinkDSN         string `env:"SINK_DSN"`
	SinkTablePrefix string `env:"SINK_TABLE_PREFIX" envDefault:"silver_"`
}

func (c backendConfig) validate(localOutput bool) error {
	errs := make([]error, 0)
	if !localOutput && !slices.Contains(checkpointBackends, c.CheckpointBackend) {
		errs = append(errs, fmt.Errorf("CHECKPOINT_BACKEND must be one of %v, got %q", checkpointBackends, c.CheckpointBackend))
	}

	if !localOutput && !slices.Contains(sinkDrivers, c.SinkDriver) {
		errs = append(errs, fmt.Errorf("SINK_DRIVER must be one of %v, got %q", sinkDrivers, c.SinkDriver))
	}

	if !localOutput && c.SinkDriver == sqltable.DriverPostgres && c.SinkDSN == "" {
		errs = append(errs, errors.New("SINK_DSN is required for the postgres driver"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errInvalidBackend, errors.Join(errs...))
	}
	return nil
}

// backends are the collaborators shared by all the pipelines of a command.
type backends struct {
	store     checkpoint.Store
	table     sink.Table
	readiness server.ReadinessCheck

	closers []io.Closer
}

// Close releases the database handles opened for the backends.
func (b *backends) Close() error {
	errs := make([]error, 0, len(b.closers))
	for _, closer := range slices.Backward(b.closers) {
		errs = append(errs, closer.Close())
	}

	return errors.Join(errs...)
}

// backendsFromEnv builds the checkpoint store and the sink table from the environment. When
// localOutput is not nil the rows are written to it as newline delimited JSON and the checkpoints
// are only kept in memory, so the configured store is not advanced.
func backendsFromEnv(localOutput io.Writer) (*backends, error) {
	cfg, err := env.ParseAs[backendConfig]()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidBackend, err)
	}

	if err := cfg.validate(localOutput != nil); err != nil {
		return nil, err
	}

	b := new(backends)
	if localOutput != nil {
		b.store = memory.NewStore()
		b.table = writer.NewSink(localOutput)
		return b, nil
	}

	if err := b.openCheckpointStore(cfg); err != nil {
		return nil, err
	}

	if err := b.openSinkTable(cfg); err != nil {
		_ = b.Close()
		return nil, err
	}

	return b, nil
}

func (b *backends) openCheckpointStore(cfg backendConfig) error {
	switch cfg.CheckpointBackend {
	case checkpointBackendBolt:
		path := cfg.CheckpointPath
		if path == "" {
			path = defaultCheckpointBolt
		}
		store, err := bolt.Open(path)
		if err != nil {
			return err
		}
		b.store = store
		b.closers = append(b.closers, store)
	case checkpointBackendBlob:
		container, err := cfg.NewContainer(cfg.CheckpointContainerName)
		if err != nil {
			return fmt.Errorf("%w: checkpoint container: %w", errInvalidBackend, err)
		}
		b.store = blob.NewStore(container)
	default:
		path := cfg.CheckpointPath
		if path == "" {
			path = defaultCheckpointDir
		}
		store, err := file.NewStore(path)
		if err != nil {
			return err
		}
		b.store = store
	}

	return nil
}

func (b *backends) openSinkTable(cfg backendConfig) error {
	switch cfg.SinkDriver {
	case sinkDriverCatalog:
		table, err := catalog.NewSink()
		if err != nil {
			return err
		}
		b.table = table
	default:
		dsn := cfg.SinkDSN
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		table, err := sqltable.Open(cfg.SinkDriver, dsn, cfg.SinkTablePrefix)
		if err != nil {
			return err
		}
		b.table = table
		b.readiness = table.Ping
		b.closers = append(b.closers, table)
	}

	return nil
}
