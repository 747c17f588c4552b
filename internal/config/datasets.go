// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mia-platform/tabingest/internal/checkpoint"
	"github.com/mia-platform/tabingest/internal/transform"
)

const (
	NameField      = "name"
	DedupKeysField = "dedupKeys"
)

var (
	// ErrParsing reports failures that occur while decoding dataset files.
	ErrParsing = errors.New("error parsing")
	// ErrDuplicatedDataset reports two documents declaring the same dataset name.
	ErrDuplicatedDataset = errors.New("duplicated dataset")
)

// DatasetConfig describes how a dataset is ingested from the landing zone into its table.
type DatasetConfig struct {
	Name        string            `json:"name" yaml:"name"`
	DropColumns []string          `json:"dropColumns,omitempty" yaml:"dropColumns,omitempty"`
	DedupKeys   []string          `json:"dedupKeys" yaml:"dedupKeys"`
	Transforms  []TransformConfig `json:"transforms,omitempty" yaml:"transforms,omitempty"`
}

// TransformConfig holds a built-in transform and its arguments. Input is a shorthand for a
// single element Inputs.
type TransformConfig struct {
	Column   string         `json:"column" yaml:"column"`
	Function string         `json:"function" yaml:"function"`
	Input    string         `json:"input,omitempty" yaml:"input,omitempty"`
	Inputs   []string       `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Old      string         `json:"old,omitempty" yaml:"old,omitempty"`
	New      string         `json:"new,omitempty" yaml:"new,omitempty"`
	Buckets  []BucketConfig `json:"buckets,omitempty" yaml:"buckets,omitempty"`
	Default  string         `json:"default,omitempty" yaml:"default,omitempty"`
	Template string         `json:"template,omitempty" yaml:"template,omitempty"`
}

// BucketConfig is one threshold of a bucket transform.
type BucketConfig struct {
	LessThan float64 `json:"lessThan" yaml:"lessThan"`
	Value    string  `json:"value" yaml:"value"`
}

// Definitions returns the transform definitions in declaration order.
func (d *DatasetConfig) Definitions() []transform.Definition {
	definitions := make([]transform.Definition, 0, len(d.Transforms))
	for _, t := range d.Transforms {
		inputs := slices.Clone(t.Inputs)
		if t.Input != "" {
			inputs = []string{t.Input}
		}

		buckets := make([]transform.Bucket, 0, len(t.Buckets))
		for _, b := range t.Buckets {
			buckets = append(buckets, transform.Bucket{LessThan: b.LessThan, Value: b.Value})
		}

		definitions = append(definitions, transform.Definition{
			Column:   t.Column,
			Function: t.Function,
			Inputs:   inputs,
			Old:      t.Old,
			New:      t.New,
			Buckets:  buckets,
			Default:  t.Default,
			Template: t.Template,
		})
	}

	return definitions
}

// Spec compiles the transforms of the dataset.
func (d *DatasetConfig) Spec() (transform.Spec, error) {
	return transform.Compile(d.Definitions())
}

// validate reports all the problems of the document at once.
func (d *DatasetConfig) validate() error {
	errs := make([]error, 0)
	if err := checkpoint.ValidateDatasetID(d.Name); err != nil {
		errs = append(errs, fmt.Errorf("field '%s': %w", NameField, err))
	}

	if len(d.DedupKeys) == 0 {
		errs = append(errs, fmt.Errorf("missing field '%s'", DedupKeysField))
	}
	if slices.Contains(d.DedupKeys, "") {
		errs = append(errs, fmt.Errorf("empty column in '%s'", DedupKeysField))
	}

	for idx, t := range d.Transforms {
		if t.Input != "" && len(t.Inputs) > 0 {
			errs = append(errs, fmt.Errorf("transform %d: 'input' and 'inputs' are mutually exclusive", idx))
		}
	}

	if _, err := d.Spec(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// NewDatasetConfigsFromPath parses the file at path and returns the dataset configurations of
// all its documents. It reports failures encountered while reading, decoding or validating them.
func NewDatasetConfigsFromPath(path string) ([]*DatasetConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return decodeDatasetConfigs(path, file)
}

func decodeDatasetConfigs(path string, reader io.Reader) ([]*DatasetConfig, error) {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	configs := make([]*DatasetConfig, 0)
	for {
		config := new(DatasetConfig)
		err := decoder.Decode(&config)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, fmt.Errorf("%w %q: %w", ErrParsing, path, err)
		}

		// Skip empty documents.
		if config == nil {
			continue
		}

		if err := config.validate(); err != nil {
			return nil, fmt.Errorf("%w %q: dataset %q: %w", ErrParsing, path, config.Name, err)
		}

		configs = append(configs, config)
	}

	return configs, nil
}

// LoadDatasetConfigs parses all the files in paths. A dataset name can be declared only once.
func LoadDatasetConfigs(paths []string) ([]*DatasetConfig, error) {
	seen := make(map[string]string)
	configs := make([]*DatasetConfig, 0)
	for _, path := range paths {
		fileConfigs, err := NewDatasetConfigsFromPath(path)
		if err != nil {
			return nil, err
		}

		for _, config := range fileConfigs {
			if previous, found := seen[config.Name]; found {
				return nil, fmt.Errorf("%w %q: declared in %q and %q", ErrDuplicatedDataset, config.Name, previous, path)
			}
			seen[config.Name] = path
		}

		configs = append(configs, fileConfigs...)
	}

	return configs, nil
}
