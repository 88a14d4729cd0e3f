package cleaning

import (
	"github.com/JonMunkholm/csvclean/internal/table"
)

// DropDuplicates removes rows that repeat an earlier row on the subset
// columns, or on all columns when no subset is given. keep selects which
// occurrence survives: first, last, or none of them.
func DropDuplicates(t *table.Table, cfg *DuplicatesConfig) (*table.Table, StageLog) {
	var log StageLog
	if cfg == nil {
		return t, log
	}

	var cols []int
	if len(cfg.Subset) > 0 {
		cols, _ = resolveColumns(t, cfg.Subset)
		if len(cols) == 0 {
			log.warn("None of the duplicate subset columns %s exist; duplicate removal skipped", quoteNames(cfg.Subset))
			return t, log
		}
	}

	keepPolicy := cfg.Keep
	if keepPolicy == "" {
		keepPolicy = KeepFirst
	}

	keys := make([]string, t.NumRows())
	counts := make(map[string]int, t.NumRows())
	for r := range keys {
		keys[r] = t.RowKey(r, cols)
		counts[keys[r]]++
	}

	keep := make([]int, 0, t.NumRows())
	switch keepPolicy {
	case KeepLast:
		seen := make(map[string]bool, len(counts))
		for r := len(keys) - 1; r >= 0; r-- {
			if !seen[keys[r]] {
				seen[keys[r]] = true
				keep = append(keep, r)
			}
		}
		for i, j := 0, len(keep)-1; i < j; i, j = i+1, j-1 {
			keep[i], keep[j] = keep[j], keep[i]
		}
	case KeepNone:
		for r, k := range keys {
			if counts[k] == 1 {
				keep = append(keep, r)
			}
		}
	default:
		seen := make(map[string]bool, len(counts))
		for r, k := range keys {
			if !seen[k] {
				seen[k] = true
				keep = append(keep, r)
			}
		}
	}

	removed := t.NumRows() - len(keep)
	if removed == 0 {
		return t, log
	}
	if cols != nil {
		log.change("Removed %s (subset %s, keep=%s)", plural(removed, "duplicate row"), quoteNames(columnNames(t, cols)), keepPolicy)
	} else {
		log.change("Removed %s (keep=%s)", plural(removed, "duplicate row"), keepPolicy)
	}
	return t.SelectRows(keep), log
}
