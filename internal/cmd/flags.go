// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const (
	datasetPathFlagName  = "dataset-file"
	datasetPathFlagShort = "f"
	datasetPathFlagUsage = "Path to a file or directory containing dataset definitions. Can be specified multiple times."

	datasetFlagName  = "dataset"
	datasetFlagUsage = "Name of a dataset to ingest, all the configured datasets are ingested if not set. Can be specified multiple times."

	localOutputFlagName  = "local-output"
	localOutputFlagUsage = "If set, writes the rows to stdout instead of the table configured in the environment and keeps the checkpoints in memory"
	defaultLocalOutput   = false

	concurrencyFlagName  = "concurrency"
	concurrencyFlagUsage = "Maximum number of datasets ingested at the same time, 0 means no limit"
	defaultConcurrency   = 0

	scheduleFlagName  = "schedule"
	scheduleFlagUsage = "Cron expression or descriptor (like @every 10m) for running all the datasets"
)

// flags collects the CLI options shared by the run and serve commands.
type flags struct {
	datasetPaths []string
	datasets     []string
	localOutput  bool
	concurrency  int
	schedule     string
}

// addFlags registers the CLI flags on cmd.
func (f *flags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(
		&f.datasetPaths,
		datasetPathFlagName,
		datasetPathFlagShort,
		nil,
		datasetPathFlagUsage)

	cmd.Flags().StringArrayVar(&f.datasets, datasetFlagName, nil, datasetFlagUsage)
	cmd.Flags().BoolVar(&f.localOutput, localOutputFlagName, defaultLocalOutput, localOutputFlagUsage)
	cmd.Flags().IntVar(&f.concurrency, concurrencyFlagName, defaultConcurrency, concurrencyFlagUsage)
}

// addServeFlags registers the flags available only on the serve command.
func (f *flags) addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.schedule, scheduleFlagName, "", scheduleFlagUsage)
}

// toOptions builds an options instance from the parsed flags and CLI arguments.
func (f *flags) toOptions(cmd *cobra.Command, args []string) (*options, error) {
	sourceName := ""
	if len(args) > 0 {
		sourceName = args[0]
	}

	datasetPaths, err := collectPaths(f.datasetPaths)
	if err != nil {
		return nil, err
	}

	var localOutput io.Writer
	if f.localOutput {
		localOutput = cmd.OutOrStdout()
	}

	return &options{
		sourceName:   strings.ToLower(sourceName),
		datasetPaths: datasetPaths,
		datasets:     f.datasets,
		localOutput:  localOutput,
		summary:      cmd.ErrOrStderr(),
		concurrency:  f.concurrency,
		schedule:     f.schedule,
	}, nil
}
