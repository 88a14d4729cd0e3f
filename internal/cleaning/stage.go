package cleaning

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/table"
)

// StageLog collects what one stage did. Changes describe applied
// mutations; Warnings describe data problems the stage worked around.
type StageLog struct {
	Changes  []string
	Warnings []string
}

func (l *StageLog) change(format string, args ...any) {
	l.Changes = append(l.Changes, fmt.Sprintf(format, args...))
}

func (l *StageLog) warn(format string, args ...any) {
	l.Warnings = append(l.Warnings, fmt.Sprintf(format, args...))
}

func (l *StageLog) merge(o StageLog) {
	l.Changes = append(l.Changes, o.Changes...)
	l.Warnings = append(l.Warnings, o.Warnings...)
}

// resolveColumns maps names to column indexes in table order of the
// input, dropping unknown names and repeats.
func resolveColumns(t *table.Table, names []string) (idx []int, unknown []string) {
	seen := make(map[int]bool, len(names))
	for _, name := range names {
		i, ok := t.ColumnIndex(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	return idx, unknown
}

func quoteNames(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = "'" + n + "'"
	}
	return strings.Join(q, ", ")
}

func columnNames(t *table.Table, idx []int) []string {
	names := make([]string, len(idx))
	for i, c := range idx {
		names[i] = t.Column(c).Name
	}
	return names
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
