// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mia-platform/tabingest/internal/logger"
	"github.com/mia-platform/tabingest/internal/metrics"
	"github.com/mia-platform/tabingest/internal/pipeline"
	"github.com/mia-platform/tabingest/internal/scheduler"
	"github.com/mia-platform/tabingest/internal/server"
)

const (
	loggerName      = "tabingest:cmd"
	shutdownTimeout = 30 * time.Second
)

// options configures the pipelines of the run and serve commands.
type options struct {
	sourceName   string
	datasetPaths []string
	datasets     []string
	localOutput  io.Writer
	summary      io.Writer
	concurrency  int
	schedule     string
}

// validate checks the configured values and reports invalid setups.
func (o *options) validate() error {
	if o.sourceName == "" {
		return errNoArguments
	}

	if _, ok := availableSources[o.sourceName]; !ok {
		return fmt.Errorf("%w: %s", errInvalidSource, o.sourceName)
	}

	if len(o.datasetPaths) == 0 {
		return fmt.Errorf("%w: use the --%s flag", errNoDatasetFiles, datasetPathFlagName)
	}

	if o.concurrency < 0 {
		return fmt.Errorf("%w: --%s cannot be negative", errInvalidFlagValue, concurrencyFlagName)
	}

	return nil
}

// pipelines assembles one pipeline per selected dataset, all sharing the source and backends.
func (o *options) pipelines(recorder pipeline.Recorder) ([]*pipeline.Pipeline, *backends, error) {
	configs, err := loadDatasets(o.datasetPaths, o.datasets)
	if err != nil {
		return nil, nil, err
	}

	src, err := sourceGetter(o.sourceName)
	if err != nil {
		return nil, nil, err
	}

	b, err := backendsGetter(o.localOutput)
	if err != nil {
		return nil, nil, err
	}

	pipelines := make([]*pipeline.Pipeline, 0, len(configs))
	for _, config := range configs {
		spec, err := config.Spec()
		if err != nil {
			_ = b.Close()
			return nil, nil, err
		}

		p, err := pipeline.New(config.Name, src, b.store, b.table, pipeline.Options{
			Transforms:  spec,
			DedupKeys:   config.DedupKeys,
			DropColumns: config.DropColumns,
			Recorder:    recorder,
		})
		if err != nil {
			_ = b.Close()
			return nil, nil, err
		}
		pipelines = append(pipelines, p)
	}

	return pipelines, b, nil
}

// executeRun ingests the selected datasets once and prints a line per dataset.
func (o *options) executeRun(ctx context.Context) error {
	pipelines, b, err := o.pipelines(nil)
	if err != nil {
		return err
	}
	defer b.Close()

	results, _ := pipeline.RunAll(ctx, pipelines, o.concurrency)
	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
		fmt.Fprintln(o.summary, summaryLine(result))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d datasets", errRunFailed, failed, len(results))
	}
	return nil
}

// executeServe starts the HTTP server and the optional schedule, and waits for ctx to be done
// or for a termination signal.
func (o *options) executeServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.FromContext(ctx).WithName(loggerName)

	recorder := metrics.New()
	pipelines, b, err := o.pipelines(recorder)
	if err != nil {
		return err
	}
	defer b.Close()

	srv, err := server.NewServer(ctx, pipelines, server.Options{
		Metrics:   recorder.Handler(),
		Readiness: b.readiness,
	})
	if err != nil {
		return err
	}

	var cron *scheduler.Scheduler
	if o.schedule != "" {
		cron, err = scheduler.New(ctx, o.schedule, func(ctx context.Context) {
			results, _ := pipeline.RunAll(ctx, pipelines, o.concurrency)
			for _, result := range results {
				if result.Err != nil {
					log.Warn("scheduled run failed", "dataset", result.DatasetID, "error", result.Err)
				}
			}
		})
		if err != nil {
			return fmt.Errorf("%w: --%s: %w", errInvalidFlagValue, scheduleFlagName, err)
		}
		cron.Start()
	}

	log.Info("server starting", "address", srv.Address(), "datasets", len(pipelines), "schedule", o.schedule)
	srv.StartAsync(ctx)
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if cron != nil {
		if err := cron.Stop(shutdownCtx); err != nil {
			log.Warn("scheduled runs still in progress", "error", err)
		}
	}
	return srv.Stop()
}

func summaryLine(result pipeline.DatasetResult) string {
	if result.Err != nil {
		return fmt.Sprintf("%s: failed after %d batches: %s", result.DatasetID, result.Result.BatchesProcessed, result.Err)
	}

	return fmt.Sprintf("%s: %d batches, %d rows appended, %d duplicates dropped",
		result.DatasetID,
		result.Result.BatchesProcessed,
		result.Result.RowsAppended,
		result.Result.DuplicatesDropped,
	)
}
