package cleaning

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrUnrecognizedCommand is returned for text outside the command grammar.
var ErrUnrecognizedCommand = errors.New("unrecognized command")

// Translator turns a free-text command into a config patch.
type Translator interface {
	Translate(command string) (*Patch, error)
}

// Patch is a config edit produced from one command.
type Patch struct {
	Reply string
	edit  func(*Config)
}

// Apply returns a copy of cfg with the patch applied. cfg is not modified.
func (p *Patch) Apply(cfg *Config) *Config {
	if cfg == nil {
		cfg = &Config{}
	}
	out := cfg.Clone()
	p.edit(out)
	return out
}

// RuleTranslator understands a small fixed grammar, case-insensitive:
//
//	drop rows with missing <col>
//	sort by <col> [ascending|descending]
//	fill missing <col> with mean|median|mode
//	remove duplicates
type RuleTranslator struct{}

var (
	dropMissingRule = regexp.MustCompile(`(?i)^drop rows (?:with|where) missing (?:values in )?(.+)$`)
	sortRule        = regexp.MustCompile(`(?i)^sort by (.+?)(?:\s+(asc|ascending|desc|descending))?$`)
	fillRule        = regexp.MustCompile(`(?i)^fill missing (?:values in )?(.+?) with (mean|median|mode)$`)
	duplicatesRule  = regexp.MustCompile(`(?i)^(?:remove|drop) duplicates?(?: rows)?$`)
)

func (RuleTranslator) Translate(command string) (*Patch, error) {
	cmd := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(command), ".!"))

	if m := dropMissingRule.FindStringSubmatch(cmd); m != nil {
		col := columnArg(m[1])
		return &Patch{
			Reply: fmt.Sprintf("Rows with missing '%s' will be dropped.", col),
			edit: func(c *Config) {
				if !slices.Contains(c.Missing.DropIfMissing, col) {
					c.Missing.DropIfMissing = append(c.Missing.DropIfMissing, col)
				}
			},
		}, nil
	}

	if m := fillRule.FindStringSubmatch(cmd); m != nil {
		col, strategy := columnArg(m[1]), strings.ToLower(m[2])
		return &Patch{
			Reply: fmt.Sprintf("Missing values in '%s' will be filled with the %s.", col, strategy),
			edit: func(c *Config) {
				if c.Missing.Fill == nil {
					c.Missing.Fill = map[string]FillSpec{}
				}
				c.Missing.Fill[col] = FillSpec{Strategy: strategy}
			},
		}, nil
	}

	if m := sortRule.FindStringSubmatch(cmd); m != nil {
		col := columnArg(m[1])
		asc := !strings.HasPrefix(strings.ToLower(m[2]), "desc")
		dir := "ascending"
		if !asc {
			dir = "descending"
		}
		return &Patch{
			Reply: fmt.Sprintf("Rows will be sorted by '%s' (%s).", col, dir),
			edit: func(c *Config) {
				c.Sort = SortConfig{By: []string{col}, Ascending: Ascending{asc}}
			},
		}, nil
	}

	if duplicatesRule.MatchString(cmd) {
		return &Patch{
			Reply: "Duplicate rows will be removed, keeping the first occurrence.",
			edit: func(c *Config) {
				if c.Duplicates == nil {
					c.Duplicates = &DuplicatesConfig{}
				}
				c.Duplicates.Keep = KeepFirst
			},
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnrecognizedCommand, command)
}

func columnArg(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`+"`")
}
