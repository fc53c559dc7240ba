package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
)

type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

var _ pflag.Value = (*outputFormat)(nil)

func (o *outputFormat) String() string { return string(*o) }
func (o *outputFormat) Type() string   { return "format" }

func (o *outputFormat) Set(s string) error {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case outputText, outputJSON, outputYAML:
		*o = f
		return nil
	default:
		return fmt.Errorf("unknown output format %q (valid: text, json, yaml)", s)
	}
}

// enumValue is a single-valued flag restricted by parse.
type enumValue[T ~string] struct {
	target *T
	parse  func(string) (T, error)
	kind   string
}

func newEnumValue[T ~string](target *T, parse func(string) (T, error), kind string) *enumValue[T] {
	return &enumValue[T]{target: target, parse: parse, kind: kind}
}

func (e *enumValue[T]) String() string { return string(*e.target) }
func (e *enumValue[T]) Type() string   { return e.kind }

func (e *enumValue[T]) Set(s string) error {
	v, err := e.parse(s)
	if err != nil {
		return err
	}
	*e.target = v
	return nil
}

// enumListValue is a repeatable flag. Each occurrence may also carry a
// comma-separated list. The first Set replaces any default.
type enumListValue[T ~string] struct {
	target  *[]T
	parse   func(string) (T, error)
	kind    string
	changed bool
}

func newEnumListValue[T ~string](target *[]T, parse func(string) (T, error), kind string) *enumListValue[T] {
	return &enumListValue[T]{target: target, parse: parse, kind: kind}
}

func (e *enumListValue[T]) String() string {
	parts := make([]string, len(*e.target))
	for i, v := range *e.target {
		parts[i] = string(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (e *enumListValue[T]) Type() string { return e.kind }

func (e *enumListValue[T]) Set(s string) error {
	var parsed []T
	for _, part := range splitList(s) {
		v, err := e.parse(part)
		if err != nil {
			return err
		}
		parsed = append(parsed, v)
	}
	if !e.changed {
		*e.target = nil
		e.changed = true
	}
	*e.target = append(*e.target, parsed...)
	return nil
}

// interestFlag splits on commas only when the result parses, so a single
// interest containing a comma is still accepted.
type interestFlag struct {
	enumListValue[trip.Interest]
}

func newInterestFlag(target *[]trip.Interest) *interestFlag {
	return &interestFlag{enumListValue[trip.Interest]{target: target, parse: trip.ParseInterest, kind: "interest"}}
}

func (f *interestFlag) Set(s string) error {
	if v, err := trip.ParseInterest(s); err == nil {
		if !f.changed {
			*f.target = nil
			f.changed = true
		}
		*f.target = append(*f.target, v)
		return nil
	}
	return f.enumListValue.Set(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
