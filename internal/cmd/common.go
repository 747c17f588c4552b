// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mia-platform/tabingest/internal/config"
	"github.com/mia-platform/tabingest/internal/source"
	"github.com/mia-platform/tabingest/internal/source/azure"
	"github.com/mia-platform/tabingest/internal/source/local"
)

var (
	errNoArguments      = errors.New("no source name provided")
	errInvalidSource    = errors.New("invalid source name provided")
	errNoDatasetFiles   = errors.New("no dataset file provided")
	errNoDatasets       = errors.New("no dataset configured")
	errUnknownDataset   = errors.New("unknown dataset")
	errInvalidFlagValue = errors.New("invalid flag value")
	errRunFailed        = errors.New("ingestion failed")

	// availableSources holds the list of available landing zone sources and their description
	// for command completion and help messages.
	availableSources = map[string]string{
		"local": "landing zone on the local file system",
		"azure": "landing zone in an Azure Blob Storage container",
	}

	// sourceGetter returns the landing zone source based on the provided source name.
	// It can be overridden for testing purposes.
	sourceGetter = sourceFromName
)

// handleError will do custom print error handling based on the type of error received.
// it will return nil if the command must return 0 exit code, otherwise it will return
// the original error.
func handleError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, errNoArguments):
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return nil
	case errors.Is(err, errInvalidSource), errors.Is(err, errNoDatasetFiles), errors.Is(err, errInvalidFlagValue):
		cmd.PrintErrln(err)
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return err
	default:
		cmd.PrintErrln(err)
		return err
	}
}

// unwrappedError returns the unwrapped error if available, otherwise it returns the original error.
func unwrappedError(err error) error {
	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		return unwrapped
	}

	return err
}

func validArgsFunc(sources map[string]string) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var comps []string
		if len(args) == 0 {
			for name, description := range sources {
				if strings.HasPrefix(name, toComplete) {
					comps = append(comps, cobra.CompletionWithDesc(name, description))
				}
			}
		}

		return comps, cobra.ShellCompDirectiveNoFileComp
	}
}

// collectPaths expands every directory in paths to the files it directly contains.
func collectPaths(paths []string) ([]string, error) {
	collected := make([]string, 0)
	for _, p := range paths {
		cleanedPath := filepath.Clean(p)
		err := filepath.Walk(cleanedPath, func(walkedPath string, info fs.FileInfo, err error) error {
			if err != nil {
				return fmt.Errorf("dataset file %q: %w", walkedPath, unwrappedError(err))
			}

			switch {
			case !info.IsDir(): // it's a file add to the collection
				collected = append(collected, walkedPath)
			case info.IsDir() && cleanedPath != walkedPath: // skip directories if is not the root path
				return filepath.SkipDir
			}

			return nil
		})

		if err != nil {
			return nil, err
		}
	}

	return collected, nil
}

// loadDatasets loads the dataset configurations from paths, keeping only the selected names
// when selected is not empty.
func loadDatasets(paths []string, selected []string) ([]*config.DatasetConfig, error) {
	configs, err := config.LoadDatasetConfigs(paths)
	if err != nil {
		return nil, err
	}

	if len(configs) == 0 {
		return nil, errNoDatasets
	}

	if len(selected) == 0 {
		return configs, nil
	}

	filtered := make([]*config.DatasetConfig, 0, len(selected))
	for _, name := range selected {
		idx := slices.IndexFunc(configs, func(c *config.DatasetConfig) bool { return c.Name == name })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", errUnknownDataset, name)
		}
		if !slices.Contains(filtered, configs[idx]) {
			filtered = append(filtered, configs[idx])
		}
	}

	return filtered, nil
}

// sourceFromName returns the landing zone source configured from the environment.
func sourceFromName(name string) (source.Source, error) {
	switch name {
	case "local":
		src, err := local.NewSource()
		if err != nil {
			return nil, err
		}
		return src, nil
	case "azure":
		src, err := azure.NewSource()
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("%w: %s", errInvalidSource, name)
	}
}
