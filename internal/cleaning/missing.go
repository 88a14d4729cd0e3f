package cleaning

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/JonMunkholm/csvclean/internal/table"
)

// HandleMissing drops rows missing any drop_if_missing column, then fills
// the remaining missing cells column by column. Fill values are computed
// from the table as it stands after the drop.
//
// The returned error is a configuration error: an unknown strategy or a
// constant that cannot be represented in the column's type.
func HandleMissing(t *table.Table, cfg MissingConfig) (*table.Table, StageLog, error) {
	var log StageLog

	out := t
	if cols, _ := resolveColumns(t, cfg.DropIfMissing); len(cols) > 0 {
		keep := make([]int, 0, t.NumRows())
		for r := 0; r < t.NumRows(); r++ {
			missing := false
			for _, c := range cols {
				if t.Cell(r, c).IsMissing() {
					missing = true
					break
				}
			}
			if !missing {
				keep = append(keep, r)
			}
		}
		if dropped := t.NumRows() - len(keep); dropped > 0 {
			out = t.SelectRows(keep)
			log.change("Dropped %s with missing values in %s", plural(dropped, "row"), quoteNames(columnNames(t, cols)))
		}
	}

	for c, col := range out.Columns() {
		spec, ok := cfg.Fill[col.Name]
		if !ok {
			continue
		}
		next, err := fillColumn(out, c, spec, &log)
		if err != nil {
			return nil, log, err
		}
		out = next
	}
	return out, log, nil
}

func fillColumn(t *table.Table, c int, spec FillSpec, log *StageLog) (*table.Table, error) {
	col := t.Column(c)
	values := t.Values(c)

	missing := 0
	for _, v := range values {
		if v.IsMissing() {
			missing++
		}
	}
	if missing == 0 {
		return t, nil
	}

	strategy := spec.Strategy
	if (strategy == StrategyMean || strategy == StrategyMedian) && !col.Type.IsNumeric() {
		log.warn("Column '%s' is not numeric; used mode instead of %s", col.Name, strategy)
		strategy = StrategyMode
	}

	var fill table.Value
	switch strategy {
	case StrategyMean, StrategyMedian:
		nums := numericValues(values)
		if len(nums) == 0 {
			log.warn("Column '%s' has no numeric values to compute %s; left missing", col.Name, strategy)
			return t, nil
		}
		var f float64
		if strategy == StrategyMean {
			f = stat.Mean(nums, nil)
		} else {
			f = median(nums)
		}
		fill = table.Float(f)
		if col.Type == table.TypeInt && f == math.Trunc(f) {
			fill = table.Int(int64(f))
		}
	case StrategyMode:
		v, ok := mode(values)
		if !ok {
			log.warn("Column '%s' has no values to compute mode; left missing", col.Name)
			return t, nil
		}
		fill = v
	case StrategyConstant:
		v, err := constantValue(spec.Value, col.Type)
		if err != nil {
			return nil, &ConfigError{Errors: []FieldError{{
				Field:   "missing.fill." + col.Name + ".value",
				Message: err.Error(),
			}}}
		}
		fill = v
	default:
		return nil, &ConfigError{Errors: []FieldError{{
			Field:   "missing.fill." + col.Name + ".strategy",
			Message: fmt.Sprintf("unsupported strategy %q", spec.Strategy),
		}}}
	}

	colType := col.Type
	if colType == table.TypeInt && fill.Kind() == table.KindFloat {
		colType = table.TypeFloat
		for i, v := range values {
			if f, ok := v.Float(); ok {
				values[i] = table.Float(f)
			}
		}
	}
	for i, v := range values {
		if v.IsMissing() {
			values[i] = fill
		}
	}

	log.change("Filled %s in '%s' with %s (%s)", plural(missing, "missing value"), col.Name, strategy, fill)
	return t.WithColumn(c, table.Column{Name: col.Name, Type: colType}, values), nil
}

func numericValues(values []table.Value) []float64 {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.Float(); ok {
			nums = append(nums, f)
		}
	}
	return nums
}

// median returns the middle value, or the mean of the two middle values
// for an even count. x is not modified.
func median(x []float64) float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mode returns the most frequent non-missing value. Ties go to the value
// seen first.
func mode(values []table.Value) (table.Value, bool) {
	counts := make(map[string]int)
	first := make(map[string]table.Value)
	var order []string
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		var b strings.Builder
		b.WriteString(v.Kind().String())
		b.WriteByte(':')
		b.WriteString(v.String())
		k := b.String()
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			first[k] = v
		}
		counts[k]++
	}
	if len(order) == 0 {
		return table.Null(), false
	}
	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return first[best], true
}

// constantValue converts a decoded JSON/YAML scalar to a value of type typ.
func constantValue(raw any, typ table.ColumnType) (table.Value, error) {
	var v table.Value
	switch x := raw.(type) {
	case nil:
		return table.Null(), fmt.Errorf("constant fill needs a value")
	case string:
		v = table.String(x)
	case bool:
		v = table.Bool(x)
	case int:
		v = table.Int(int64(x))
	case int64:
		v = table.Int(x)
	case uint64:
		v = table.Int(int64(x))
	case float64:
		v = table.Float(x)
	case time.Time:
		v = table.Time(x)
	default:
		return table.Null(), fmt.Errorf("unsupported constant %v of type %T", raw, raw)
	}

	if typ == table.TypeInt {
		if out, ok := toInt(v); ok {
			return out, nil
		}
		if out, ok := toFloat(v); ok {
			return out, nil
		}
		return table.Null(), fmt.Errorf("%s is not a number", strconv.Quote(v.String()))
	}
	out, ok := coerce(v, typ)
	if !ok || out.IsMissing() {
		return table.Null(), fmt.Errorf("%s cannot be used in a %s column", strconv.Quote(v.String()), typ)
	}
	return out, nil
}
