package cleaning

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/csvclean/internal/table"
)

func mustCSV(t *testing.T, s string) *table.Table {
	t.Helper()
	tbl, err := table.ReadCSV(strings.NewReader(s))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return tbl
}

// column renders every value of the named column.
func column(t *testing.T, tbl *table.Table, name string) []string {
	t.Helper()
	c, ok := tbl.ColumnIndex(name)
	if !ok {
		t.Fatalf("column %q not found in %v", name, tbl.Header())
	}
	out := make([]string, tbl.NumRows())
	for r := range out {
		out[r] = tbl.Cell(r, c).String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
