package cleaning

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/JonMunkholm/csvclean/internal/table"
)

// Splits holds the train, validation and test partitions of a table.
type Splits struct {
	Train *table.Table
	Val   *table.Table
	Test  *table.Table
}

// Summary renders the partition sizes.
func (s *Splits) Summary() string {
	return fmt.Sprintf("train: %s, val: %s, test: %s",
		plural(s.Train.NumRows(), "row"), plural(s.Val.NumRows(), "row"), plural(s.Test.NumRows(), "row"))
}

// SplitRows partitions t by the configured fractions after a seeded
// shuffle, so equal seeds give equal partitions. Counts are rounded for
// train and val; test takes the remainder. With a stratify column each
// distinct value is split separately, keeping class proportions.
func SplitRows(t *table.Table, cfg *SplitConfig) (*Splits, StageLog) {
	var log StageLog
	seed := cfg.SeedOrDefault()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	groups := [][]int{allRows(t.NumRows())}
	if cfg.StratifyColumn != "" {
		if c, ok := t.ColumnIndex(cfg.StratifyColumn); ok {
			groups = groupRows(t, c)
		} else {
			log.warn("Stratify column '%s' not found; split is not stratified", cfg.StratifyColumn)
		}
	}

	var train, val, test []int
	for _, g := range groups {
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		nTrain, nVal := partitionSizes(len(g), cfg.Train, cfg.Val)
		train = append(train, g[:nTrain]...)
		val = append(val, g[nTrain:nTrain+nVal]...)
		test = append(test, g[nTrain+nVal:]...)
	}

	return &Splits{
		Train: t.SelectRows(train),
		Val:   t.SelectRows(val),
		Test:  t.SelectRows(test),
	}, log
}

func partitionSizes(n int, train, val float64) (int, int) {
	nTrain := min(int(math.Round(train*float64(n))), n)
	nVal := min(int(math.Round(val*float64(n))), n-nTrain)
	return nTrain, nVal
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// groupRows buckets row indexes by the value of column c, in order of
// first appearance.
func groupRows(t *table.Table, c int) [][]int {
	index := make(map[string]int)
	var groups [][]int
	for r := 0; r < t.NumRows(); r++ {
		k := t.RowKey(r, []int{c})
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], r)
	}
	return groups
}
