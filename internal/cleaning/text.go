package cleaning

import (
	"regexp"
	"slices"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/table"
)

// CleanText lowercases the lower columns, trims the strip columns, then
// removes remove_chars_pattern matches from every column named in either.
// Only string values are touched. An invalid pattern turns the whole stage
// into a no-op with a warning.
func CleanText(t *table.Table, cfg TextCleanConfig) (*table.Table, StageLog) {
	var log StageLog

	var pattern *regexp.Regexp
	if cfg.RemoveCharsPattern != "" {
		re, err := regexp.Compile(cfg.RemoveCharsPattern)
		if err != nil {
			log.warn("Invalid remove_chars_pattern %q: %v; text cleaning skipped", cfg.RemoveCharsPattern, err)
			return t, log
		}
		pattern = re
	}

	lower, _ := resolveColumns(t, cfg.Lower)
	strip, _ := resolveColumns(t, cfg.Strip)
	touched, _ := resolveColumns(t, append(slices.Clone(cfg.Lower), cfg.Strip...))

	out := t
	for c := 0; c < t.NumCols(); c++ {
		if !slices.Contains(touched, c) {
			continue
		}
		doLower := slices.Contains(lower, c)
		doStrip := slices.Contains(strip, c)

		values := out.Values(c)
		changed := 0
		for i, v := range values {
			s, ok := v.Str()
			if !ok {
				continue
			}
			ns := s
			if doLower {
				ns = strings.ToLower(ns)
			}
			if doStrip {
				ns = strings.TrimSpace(ns)
			}
			if pattern != nil {
				ns = pattern.ReplaceAllString(ns, "")
			}
			if ns != s {
				values[i] = table.String(ns)
				changed++
			}
		}
		if changed == 0 {
			continue
		}

		col := t.Column(c)
		out = out.WithColumn(c, col, values)
		log.change("Cleaned text in '%s' (%s): %s changed", col.Name, textOps(doLower, doStrip, pattern), plural(changed, "value"))
	}
	return out, log
}

func textOps(lower, strip bool, pattern *regexp.Regexp) string {
	var ops []string
	if lower {
		ops = append(ops, "lowercase")
	}
	if strip {
		ops = append(ops, "strip")
	}
	if pattern != nil {
		ops = append(ops, "remove "+pattern.String())
	}
	return strings.Join(ops, " + ")
}
