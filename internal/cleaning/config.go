package cleaning

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/csvclean/internal/table"
)

// Fill strategies.
const (
	StrategyMean     = "mean"
	StrategyMedian   = "median"
	StrategyMode     = "mode"
	StrategyConstant = "constant"
)

// Duplicate keep policies.
const (
	KeepFirst = "first"
	KeepLast  = "last"
	KeepNone  = "none"
)

// Outlier scoring methods.
const (
	MethodZScore = "zscore"
	MethodMAD    = "mad"
)

// DefaultZThreshold applies when outliers.z_threshold is omitted.
const DefaultZThreshold = 3.0

// DefaultSplitSeed applies when split.seed is omitted.
const DefaultSplitSeed uint64 = 42

// Config is the declarative description of a cleaning run. Column names
// that do not exist in a table are skipped when the config is applied.
type Config struct {
	Dtypes     map[string]string `json:"dtypes,omitempty" yaml:"dtypes,omitempty"`
	Missing    MissingConfig     `json:"missing" yaml:"missing"`
	TextClean  TextCleanConfig   `json:"text_clean" yaml:"text_clean"`
	Duplicates *DuplicatesConfig `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Outliers   OutliersConfig    `json:"outliers" yaml:"outliers"`
	Sort       SortConfig        `json:"sort" yaml:"sort"`
	Split      *SplitConfig      `json:"split,omitempty" yaml:"split,omitempty"`
}

type MissingConfig struct {
	DropIfMissing []string            `json:"drop_if_missing,omitempty" yaml:"drop_if_missing,omitempty"`
	Fill          map[string]FillSpec `json:"fill,omitempty" yaml:"fill,omitempty"`
}

// FillSpec selects how missing cells of one column are filled. In JSON and
// YAML a bare strategy name is accepted in place of the object form.
type FillSpec struct {
	Strategy string `json:"strategy" yaml:"strategy"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

func (f *FillSpec) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*f = FillSpec{Strategy: name}
		return nil
	}
	type plain FillSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = FillSpec(p)
	return nil
}

func (f *FillSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = FillSpec{Strategy: node.Value}
		return nil
	}
	type plain FillSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*f = FillSpec(p)
	return nil
}

type TextCleanConfig struct {
	Lower              []string `json:"lower,omitempty" yaml:"lower,omitempty"`
	Strip              []string `json:"strip,omitempty" yaml:"strip,omitempty"`
	RemoveCharsPattern string   `json:"remove_chars_pattern,omitempty" yaml:"remove_chars_pattern,omitempty"`
}

type DuplicatesConfig struct {
	Subset []string `json:"subset,omitempty" yaml:"subset,omitempty"`
	Keep   string   `json:"keep,omitempty" yaml:"keep,omitempty"`
}

type OutliersConfig struct {
	Columns    []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	ZThreshold *float64 `json:"z_threshold,omitempty" yaml:"z_threshold,omitempty"`
	Method     string   `json:"method,omitempty" yaml:"method,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// Threshold returns the configured threshold or DefaultZThreshold.
func (o OutliersConfig) Threshold() float64 {
	if o.ZThreshold == nil {
		return DefaultZThreshold
	}
	return *o.ZThreshold
}

type SortConfig struct {
	By        []string  `json:"by,omitempty" yaml:"by,omitempty"`
	Ascending Ascending `json:"ascending,omitempty" yaml:"ascending,omitempty"`
}

// Ascending holds one direction per sort key. A single boolean applies to
// every key; missing trailing entries default to true.
type Ascending []bool

func (a *Ascending) UnmarshalJSON(data []byte) error {
	var one bool
	if err := json.Unmarshal(data, &one); err == nil {
		*a = Ascending{one}
		return nil
	}
	var many []bool
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("ascending must be a boolean or a list of booleans: %w", err)
	}
	*a = many
	return nil
}

func (a *Ascending) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var one bool
		if err := node.Decode(&one); err != nil {
			return err
		}
		*a = Ascending{one}
		return nil
	}
	var many []bool
	if err := node.Decode(&many); err != nil {
		return err
	}
	*a = many
	return nil
}

// Directions aligns a to n sort keys. A single value is broadcast.
func (a Ascending) Directions(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		switch {
		case len(a) == 1:
			out[i] = a[0]
		case i < len(a):
			out[i] = a[i]
		default:
			out[i] = true
		}
	}
	return out
}

type SplitConfig struct {
	Train          float64 `json:"train" yaml:"train"`
	Val            float64 `json:"val" yaml:"val"`
	Test           float64 `json:"test" yaml:"test"`
	Seed           *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	StratifyColumn string  `json:"stratify_column,omitempty" yaml:"stratify_column,omitempty"`
}

// SeedOrDefault returns the configured seed or DefaultSplitSeed.
func (s SplitConfig) SeedOrDefault() uint64 {
	if s.Seed == nil {
		return DefaultSplitSeed
	}
	return *s.Seed
}

// FieldError names one invalid config field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ConfigError lists every shape problem found in a Config.
type ConfigError struct {
	Errors []FieldError
}

func (e *ConfigError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid cleaning config: " + strings.Join(parts, "; ")
}

func (e *ConfigError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

const fractionTolerance = 1e-6

// Validate checks the config shape. It returns nil or a *ConfigError
// listing every problem. Column existence is not checked.
func (c *Config) Validate() error {
	ce := &ConfigError{}

	for _, col := range sortedKeys(c.Dtypes) {
		if _, err := table.ParseColumnType(c.Dtypes[col]); err != nil {
			ce.add("dtypes."+col, "unsupported type %q (want int, float, string, bool, datetime or category)", c.Dtypes[col])
		}
	}

	for _, col := range sortedKeys(c.Missing.Fill) {
		spec := c.Missing.Fill[col]
		field := "missing.fill." + col
		switch spec.Strategy {
		case StrategyMean, StrategyMedian, StrategyMode:
		case StrategyConstant:
			if spec.Value == nil {
				ce.add(field+".value", "required for the constant strategy")
			}
		case "":
			ce.add(field+".strategy", "is required")
		default:
			ce.add(field+".strategy", "unsupported strategy %q (want mean, median, mode or constant)", spec.Strategy)
		}
	}

	if d := c.Duplicates; d != nil {
		switch d.Keep {
		case "", KeepFirst, KeepLast, KeepNone:
		default:
			ce.add("duplicates.keep", "unsupported value %q (want first, last or none)", d.Keep)
		}
	}

	if z := c.Outliers.ZThreshold; z != nil && (*z <= 0 || math.IsNaN(*z) || math.IsInf(*z, 0)) {
		ce.add("outliers.z_threshold", "must be a positive number")
	}
	switch c.Outliers.Method {
	case "", MethodZScore, MethodMAD:
	default:
		ce.add("outliers.method", "unsupported method %q (want zscore or mad)", c.Outliers.Method)
	}

	if len(c.Sort.Ascending) > 1 && len(c.Sort.Ascending) > len(c.Sort.By) {
		ce.add("sort.ascending", "has %d entries but sort.by has %d", len(c.Sort.Ascending), len(c.Sort.By))
	}
	if slices.Contains(c.Sort.By, "") {
		ce.add("sort.by", "contains an empty column name")
	}

	if s := c.Split; s != nil {
		for _, f := range []struct {
			name string
			v    float64
		}{{"train", s.Train}, {"val", s.Val}, {"test", s.Test}} {
			if f.v < 0 || f.v > 1 || math.IsNaN(f.v) {
				ce.add("split."+f.name, "must be between 0 and 1")
			}
		}
		if sum := s.Train + s.Val + s.Test; math.Abs(sum-1) > fractionTolerance {
			ce.add("split", "fractions must sum to 1 (got %g)", sum)
		}
	}

	if len(ce.Errors) > 0 {
		return ce
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	if c.Dtypes != nil {
		out.Dtypes = make(map[string]string, len(c.Dtypes))
		for k, v := range c.Dtypes {
			out.Dtypes[k] = v
		}
	}
	out.Missing.DropIfMissing = slices.Clone(c.Missing.DropIfMissing)
	if c.Missing.Fill != nil {
		out.Missing.Fill = make(map[string]FillSpec, len(c.Missing.Fill))
		for k, v := range c.Missing.Fill {
			out.Missing.Fill[k] = v
		}
	}
	out.TextClean.Lower = slices.Clone(c.TextClean.Lower)
	out.TextClean.Strip = slices.Clone(c.TextClean.Strip)
	if c.Duplicates != nil {
		d := *c.Duplicates
		d.Subset = slices.Clone(d.Subset)
		out.Duplicates = &d
	}
	out.Outliers.Columns = slices.Clone(c.Outliers.Columns)
	if c.Outliers.ZThreshold != nil {
		z := *c.Outliers.ZThreshold
		out.Outliers.ZThreshold = &z
	}
	out.Sort.By = slices.Clone(c.Sort.By)
	out.Sort.Ascending = slices.Clone(c.Sort.Ascending)
	if c.Split != nil {
		s := *c.Split
		if s.Seed != nil {
			seed := *s.Seed
			s.Seed = &seed
		}
		out.Split = &s
	}
	return &out
}

// ParseJSON decodes and validates a JSON config. Unknown fields are
// rejected so that typos surface as errors instead of silent no-ops.
func ParseJSON(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, &ConfigError{Errors: []FieldError{{Field: "config", Message: err.Error()}}}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseYAML decodes and validates a YAML config.
func ParseYAML(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Errors: []FieldError{{Field: "config", Message: err.Error()}}}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
