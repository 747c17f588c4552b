// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package transform

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/mia-platform/tabingest/internal/record"
	"github.com/mia-platform/tabingest/internal/transform/functions"
)

// Names of the built-in functions usable in a Definition.
const (
	FunctionUpper    = "upper"
	FunctionLower    = "lower"
	FunctionTrim     = "trim"
	FunctionReplace  = "replace"
	FunctionBucket   = "bucket"
	FunctionTemplate = "template"
	FunctionSha256   = "sha256"
)

// Bucket assigns Value to the numbers lower than LessThan.
type Bucket struct {
	LessThan float64
	Value    string
}

// Definition describes a built-in transform, as read from a dataset configuration.
type Definition struct {
	Column   string
	Function string
	Inputs   []string

	// Old and New are the replace arguments.
	Old string
	New string

	// Buckets are evaluated in order, the first matching one wins. Default is used for nil
	// values and for values over the last threshold.
	Buckets []Bucket
	Default string

	Template string
}

var stringFunctions = map[string]func(any) string{
	FunctionUpper:  functions.ToUpper,
	FunctionLower:  functions.ToLower,
	FunctionTrim:   functions.TrimSpace,
	FunctionSha256: functions.Sha256Sum,
}

// Compile builds the Spec described by definitions, keeping their order. All the invalid
// definitions are reported in the returned error.
func Compile(definitions []Definition) (Spec, error) {
	var errs error
	spec := make(Spec, 0, len(definitions))
	for _, definition := range definitions {
		t, err := definition.Compile()
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		spec = append(spec, t)
	}

	if errs != nil {
		return nil, errs
	}

	return spec, nil
}

// Compile validates the definition and returns its Transform.
func (d Definition) Compile() (Transform, error) {
	if strings.TrimSpace(d.Column) == "" {
		return Transform{}, fmt.Errorf("%w: missing column name", ErrInvalidDefinition)
	}

	if fn, ok := stringFunctions[d.Function]; ok {
		if err := d.singleInput(); err != nil {
			return Transform{}, err
		}
		return d.transform(nullSafe(d.Inputs[0], fn)), nil
	}

	switch d.Function {
	case FunctionReplace:
		if err := d.singleInput(); err != nil {
			return Transform{}, err
		}
		if d.Old == "" {
			return Transform{}, fmt.Errorf("%w: column %q: replace needs a non empty old value", ErrInvalidDefinition, d.Column)
		}
		return d.transform(nullSafe(d.Inputs[0], func(value any) string {
			return functions.Replace(d.Old, d.New, value)
		})), nil
	case FunctionBucket:
		if err := d.singleInput(); err != nil {
			return Transform{}, err
		}
		return d.bucket()
	case FunctionTemplate:
		return d.template()
	default:
		return Transform{}, fmt.Errorf("%w: %q for column %q", ErrUnknownFunction, d.Function, d.Column)
	}
}

func (d Definition) singleInput() error {
	if len(d.Inputs) != 1 || d.Inputs[0] == "" {
		return fmt.Errorf("%w: column %q: %s needs exactly one input column", ErrInvalidDefinition, d.Column, d.Function)
	}

	return nil
}

func (d Definition) transform(fn Func) Transform {
	return Transform{
		Column: d.Column,
		Inputs: slices.Clone(d.Inputs),
		Fn:     fn,
	}
}

// nullSafe applies fn to the input column, nil values are kept as nil.
func nullSafe(input string, fn func(any) string) Func {
	return func(r record.Record) (any, error) {
		value := r[input]
		if value == nil {
			return nil, nil
		}

		return fn(value), nil
	}
}

func (d Definition) bucket() (Transform, error) {
	if len(d.Buckets) == 0 {
		return Transform{}, fmt.Errorf("%w: column %q: bucket needs at least one threshold", ErrInvalidDefinition, d.Column)
	}

	for idx := 1; idx < len(d.Buckets); idx++ {
		if d.Buckets[idx].LessThan <= d.Buckets[idx-1].LessThan {
			return Transform{}, fmt.Errorf("%w: column %q: bucket thresholds must be increasing", ErrInvalidDefinition, d.Column)
		}
	}

	buckets := slices.Clone(d.Buckets)
	input := d.Inputs[0]
	defaultValue := d.Default
	return d.transform(func(r record.Record) (any, error) {
		var number float64
		switch v := r[input].(type) {
		case nil:
			return defaultValue, nil
		case int64:
			number = float64(v)
		case float64:
			number = v
		default:
			return nil, fmt.Errorf("%w: bucket of %T", ErrInvalidValue, v)
		}

		for _, b := range buckets {
			if number < b.LessThan {
				return b.Value, nil
			}
		}
		return defaultValue, nil
	}), nil
}

func (d Definition) template() (Transform, error) {
	if strings.TrimSpace(d.Template) == "" {
		return Transform{}, fmt.Errorf("%w: column %q: template cannot be empty", ErrInvalidDefinition, d.Column)
	}

	tmpl, err := template.New(d.Column).
		Option("missingkey=error").
		Funcs(functions.FuncMap()).
		Parse(d.Template)
	if err != nil {
		return Transform{}, NewParsingError(d.Column, err)
	}

	return d.transform(func(r record.Record) (any, error) {
		builder := new(strings.Builder)
		if err := tmpl.Execute(builder, map[string]any(r)); err != nil {
			return nil, err
		}
		return builder.String(), nil
	}), nil
}
