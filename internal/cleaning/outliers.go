package cleaning

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/JonMunkholm/csvclean/internal/table"
)

// madScale makes the median absolute deviation comparable to a standard
// deviation for normally distributed data.
const madScale = 0.6745

// RemoveOutliers drops every row whose score exceeds the threshold in any
// configured column. Scores are computed per column over its numeric
// values; columns with zero spread are skipped.
func RemoveOutliers(t *table.Table, cfg OutliersConfig) (*table.Table, StageLog) {
	var log StageLog
	cols, _ := resolveColumns(t, cfg.Columns)
	if len(cols) == 0 || t.NumRows() == 0 {
		return t, log
	}

	threshold := cfg.Threshold()
	method := cfg.Method
	if method == "" {
		method = MethodZScore
	}

	flagged := make([]bool, t.NumRows())
	var used []string
	for _, c := range cols {
		col := t.Column(c)
		rows, x := numericColumn(t, c)
		if len(x) == 0 {
			log.warn("Column '%s' has no numeric values; outlier check skipped", col.Name)
			continue
		}
		scores, ok := scoreFunc(method)(x)
		if !ok {
			continue
		}
		used = append(used, col.Name)
		for i, z := range scores {
			if math.Abs(z) > threshold {
				flagged[rows[i]] = true
			}
		}
	}

	keep := make([]int, 0, t.NumRows())
	for r, f := range flagged {
		if !f {
			keep = append(keep, r)
		}
	}
	removed := t.NumRows() - len(keep)
	if removed == 0 {
		return t, log
	}
	log.change("Removed %s (%s) in %s", plural(removed, "outlier row"), describeRule(method, threshold), quoteNames(used))
	return t.SelectRows(keep), log
}

func numericColumn(t *table.Table, c int) (rows []int, x []float64) {
	for r := 0; r < t.NumRows(); r++ {
		if f, ok := t.Cell(r, c).Float(); ok {
			rows = append(rows, r)
			x = append(x, f)
		}
	}
	return rows, x
}

func scoreFunc(method string) func([]float64) ([]float64, bool) {
	if method == MethodMAD {
		return modifiedZScores
	}
	return zScores
}

// zScores returns (x-mean)/s with s the sample standard deviation.
func zScores(x []float64) ([]float64, bool) {
	if len(x) < 2 {
		return nil, false
	}
	mean, sd := stat.MeanStdDev(x, nil)
	if sd == 0 || math.IsNaN(sd) {
		return nil, false
	}
	z := make([]float64, len(x))
	for i, v := range x {
		z[i] = stat.StdScore(v, mean, sd)
	}
	return z, true
}

// modifiedZScores returns 0.6745*(x-median)/MAD.
func modifiedZScores(x []float64) ([]float64, bool) {
	med := median(x)
	dev := make([]float64, len(x))
	for i, v := range x {
		dev[i] = math.Abs(v - med)
	}
	mad := median(dev)
	if mad == 0 {
		return nil, false
	}
	z := make([]float64, len(x))
	for i, v := range x {
		z[i] = madScale * (v - med) / mad
	}
	return z, true
}

func describeRule(method string, threshold float64) string {
	if method == MethodMAD {
		return fmt.Sprintf("|modified z| > %g", threshold)
	}
	return fmt.Sprintf("|z| > %g", threshold)
}
