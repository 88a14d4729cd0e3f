package cleaning

import (
	"github.com/JonMunkholm/csvclean/internal/table"
)

// Severity is the qualitative tier of a dirty score.
type Severity string

const (
	SeverityClean    Severity = "CLEAN"
	SeverityGood     Severity = "GOOD"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Default tier boundaries, in percent. Both are inclusive upper bounds.
const (
	DefaultLowThreshold = 5.0
	DefaultMidThreshold = 20.0
)

// Thresholds are the tier boundaries used to derive a Severity.
type Thresholds struct {
	Low float64
	Mid float64
}

// DefaultThresholds returns the default tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLowThreshold, Mid: DefaultMidThreshold}
}

// Severity maps a score onto a tier.
func (t Thresholds) Severity(score float64) Severity {
	switch {
	case score <= 0:
		return SeverityClean
	case score <= t.Low:
		return SeverityGood
	case score <= t.Mid:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

// ColumnCount is a per-column tally.
type ColumnCount struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// Assessment is the data-quality summary of one table.
type Assessment struct {
	Score           float64       `json:"dirty_score"`
	Severity        Severity      `json:"severity"`
	MissingCells    int           `json:"missing_count"`
	DuplicateRows   int           `json:"duplicate_rows"`
	TotalCells      int           `json:"total_cells"`
	Rows            int           `json:"rows"`
	Columns         int           `json:"columns"`
	MissingByColumn []ColumnCount `json:"missing_by_column,omitempty"`
}

// Assess scores t with the default thresholds.
func Assess(t *table.Table) Assessment {
	return AssessWith(t, DefaultThresholds())
}

// AssessWith scores t: the share of cells that are missing plus the number
// of duplicate rows, as a percentage of all cells.
func AssessWith(t *table.Table, th Thresholds) Assessment {
	a := Assessment{
		Rows:       t.NumRows(),
		Columns:    t.NumCols(),
		TotalCells: t.NumRows() * t.NumCols(),
	}
	if a.TotalCells == 0 {
		a.Severity = SeverityClean
		return a
	}

	for c := 0; c < t.NumCols(); c++ {
		n := 0
		for r := 0; r < t.NumRows(); r++ {
			if t.Cell(r, c).IsMissing() {
				n++
			}
		}
		if n > 0 {
			a.MissingByColumn = append(a.MissingByColumn, ColumnCount{Column: t.Column(c).Name, Count: n})
			a.MissingCells += n
		}
	}
	a.DuplicateRows = countDuplicates(t, nil)

	score := 100 * float64(a.MissingCells+a.DuplicateRows) / float64(a.TotalCells)
	a.Score = min(max(score, 0), 100)
	a.Severity = th.Severity(a.Score)
	return a
}

// countDuplicates counts rows equal on cols to an earlier row.
func countDuplicates(t *table.Table, cols []int) int {
	seen := make(map[string]struct{}, t.NumRows())
	dups := 0
	for r := 0; r < t.NumRows(); r++ {
		k := t.RowKey(r, cols)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}
