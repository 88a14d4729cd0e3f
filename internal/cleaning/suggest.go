package cleaning

import (
	"github.com/JonMunkholm/csvclean/internal/table"
)

// Suggest derives a starting config from the uploaded tables. Numeric
// columns keep their type, get a median fill when they have gaps and are
// screened for outliers; other columns become categories with a mode fill
// and lowercase+strip text cleaning. Duplicates are dropped keeping the
// first occurrence. A column present in several tables is configured
// from the first table that has it.
func Suggest(tables ...*table.Table) *Config {
	cfg := &Config{
		Dtypes:     map[string]string{},
		Missing:    MissingConfig{Fill: map[string]FillSpec{}},
		Duplicates: &DuplicatesConfig{Keep: KeepFirst},
		Outliers:   OutliersConfig{ZThreshold: ptr(DefaultZThreshold)},
	}

	seen := map[string]bool{}
	for _, t := range tables {
		for c, col := range t.Columns() {
			if seen[col.Name] {
				continue
			}
			seen[col.Name] = true

			hasMissing := false
			for r := 0; r < t.NumRows(); r++ {
				if t.Cell(r, c).IsMissing() {
					hasMissing = true
					break
				}
			}

			switch {
			case col.Type.IsNumeric():
				cfg.Dtypes[col.Name] = col.Type.String()
				if hasMissing {
					cfg.Missing.Fill[col.Name] = FillSpec{Strategy: StrategyMedian}
				}
				cfg.Outliers.Columns = append(cfg.Outliers.Columns, col.Name)
			case col.Type == table.TypeBool || col.Type == table.TypeDatetime:
				cfg.Dtypes[col.Name] = col.Type.String()
				if hasMissing {
					cfg.Missing.Fill[col.Name] = FillSpec{Strategy: StrategyMode}
				}
			default:
				cfg.Dtypes[col.Name] = table.TypeCategory.String()
				if hasMissing {
					cfg.Missing.Fill[col.Name] = FillSpec{Strategy: StrategyMode}
				}
				cfg.TextClean.Lower = append(cfg.TextClean.Lower, col.Name)
				cfg.TextClean.Strip = append(cfg.TextClean.Strip, col.Name)
			}
		}
	}
	return cfg
}
