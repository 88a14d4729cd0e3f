package cleaning

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/table"
)

// SortRows stably sorts by the configured keys. Nulls sort last in either
// direction. A change is logged only if the row order actually moved.
func SortRows(t *table.Table, cfg SortConfig) (*table.Table, StageLog) {
	var log StageLog

	dirs := cfg.Ascending.Directions(len(cfg.By))
	var keys []int
	var asc []bool
	seen := make(map[int]bool)
	for i, name := range cfg.By {
		c, ok := t.ColumnIndex(name)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		keys = append(keys, c)
		asc = append(asc, dirs[i])
	}
	if len(keys) == 0 || t.NumRows() < 2 {
		return t, log
	}

	order := make([]int, t.NumRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := t.Row(order[i]), t.Row(order[j])
		for k, c := range keys {
			if cmp := compareNullsLast(a[c], b[c], asc[k]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})

	moved := false
	for i, r := range order {
		if i != r {
			moved = true
			break
		}
	}
	if !moved {
		return t, log
	}

	parts := make([]string, len(keys))
	for k, c := range keys {
		dir := "ascending"
		if !asc[k] {
			dir = "descending"
		}
		parts[k] = "'" + t.Column(c).Name + "' " + dir
	}
	log.change("Sorted rows by %s", strings.Join(parts, ", "))
	return t.SelectRows(order), log
}

func compareNullsLast(a, b table.Value, ascending bool) int {
	switch an, bn := a.IsNull(), b.IsNull(); {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	cmp := table.Compare(a, b)
	if !ascending {
		cmp = -cmp
	}
	return cmp
}
