// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	runCmdUsageTemplate = "run [%s]"
	runCmdShort         = "ingest the new landing zone files of the configured datasets"
	runCmdLong          = `Ingest the new landing zone files of the configured datasets.
	Every dataset is read from the folder with its name in the landing zone, cleaned,
	deduplicated and appended to its table. Only the files not yet recorded in the
	dataset checkpoint are read, and the command returns when no new file is left.
	Datasets are ingested concurrently and a failing dataset does not stop the others.
	With the local-output flag the rows are printed instead of being written and the
	checkpoints are kept in memory, so the next run reads the same files again.

	The available sources are:
	- local: landing zone on the local file system
	- azure: landing zone in an Azure Blob Storage container`

	runCmdExample = `# Ingest all the datasets from a local folder into a sqlite database
	LANDING_ZONE_PATH=./bronze SINK_DSN=./silver.db tabingest run local -f datasets/silver.yaml

	# Print the rows of a single dataset instead of writing them
	tabingest run azure -f datasets/silver.yaml --dataset DimUser --local-output`

	serveCmdUsageTemplate = "serve [%s]"
	serveCmdShort         = "expose the configured datasets over HTTP"
	serveCmdLong          = `Expose the configured datasets over HTTP.
	A run of a dataset is started with a POST on /datasets/{name}/runs; the request
	is rejected with 409 if the dataset is already running. With the schedule flag
	all the datasets are also run following the cron expression.
	Health, readiness and prometheus metrics are exposed under /-/.

	The available sources are:
	- local: landing zone on the local file system
	- azure: landing zone in an Azure Blob Storage container`

	serveCmdExample = `# Serve the datasets and ingest them every 15 minutes
	tabingest serve azure -f datasets/ --schedule "*/15 * * * *"`
)

// RunCmd returns the Cobra command that ingests the datasets once.
func RunCmd() *cobra.Command {
	flags := &flags{}
	allSources := slices.Sorted(maps.Keys(availableSources))
	cmd := &cobra.Command{
		Use:     fmt.Sprintf(runCmdUsageTemplate, strings.Join(allSources, "|")),
		Short:   heredoc.Doc(runCmdShort),
		Long:    heredoc.Doc(runCmdLong),
		Example: heredoc.Doc(runCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		ValidArgsFunction: validArgsFunc(availableSources),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.toOptions(cmd, args)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeRun(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// ServeCmd returns the Cobra command that starts the HTTP server.
func ServeCmd() *cobra.Command {
	flags := &flags{}
	allSources := slices.Sorted(maps.Keys(availableSources))
	cmd := &cobra.Command{
		Use:     fmt.Sprintf(serveCmdUsageTemplate, strings.Join(allSources, "|")),
		Short:   heredoc.Doc(serveCmdShort),
		Long:    heredoc.Doc(serveCmdLong),
		Example: heredoc.Doc(serveCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		ValidArgsFunction: validArgsFunc(availableSources),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.toOptions(cmd, args)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeServe(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	flags.addServeFlags(cmd)
	return cmd
}
