package cleaning

import (
	"math"

	"github.com/JonMunkholm/csvclean/internal/table"
)

// ApplyDtypes coerces the named columns to their target types. Values that
// cannot be converted are left as they were and reported once per column.
// Blank strings become null in non-text columns.
func ApplyDtypes(t *table.Table, dtypes map[string]string) (*table.Table, StageLog) {
	var log StageLog
	out := t
	for c, col := range t.Columns() {
		name, ok := dtypes[col.Name]
		if !ok {
			continue
		}
		target, err := table.ParseColumnType(name)
		if err != nil {
			log.warn("Column '%s': %v", col.Name, err)
			continue
		}

		values := out.Values(c)
		changed := col.Type != target
		failed := 0
		for i, v := range values {
			nv, ok := coerce(v, target)
			if !ok {
				failed++
				continue
			}
			if !nv.Equal(v) {
				values[i] = nv
				changed = true
			}
		}

		if failed > 0 {
			log.warn("Column '%s': %s could not be converted to %s and were left unchanged", col.Name, plural(failed, "value"), target)
		}
		if !changed {
			continue
		}
		out = out.WithColumn(c, table.Column{Name: col.Name, Type: target}, values)
		log.change("Converted '%s' to %s", col.Name, target)
	}
	return out, log
}

// coerce converts v to the representation used by columns of type target.
func coerce(v table.Value, target table.ColumnType) (table.Value, bool) {
	if v.IsNull() {
		return v, true
	}
	if target.IsText() {
		if _, ok := v.Str(); ok {
			return v, true
		}
		return table.String(v.String()), true
	}
	if v.IsMissing() {
		return table.Null(), true
	}

	switch target {
	case table.TypeInt:
		return toInt(v)
	case table.TypeFloat:
		return toFloat(v)
	case table.TypeBool:
		return toBool(v)
	case table.TypeDatetime:
		return toTime(v)
	}
	return v, false
}

func toInt(v table.Value) (table.Value, bool) {
	switch v.Kind() {
	case table.KindInt:
		return v, true
	case table.KindFloat:
		f, _ := v.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return v, false
		}
		return table.Int(int64(f)), true
	case table.KindBool:
		if b, _ := v.Bool(); b {
			return table.Int(1), true
		}
		return table.Int(0), true
	case table.KindString:
		s, _ := v.Str()
		i, ok := table.ParseInteger(s)
		if !ok {
			return v, false
		}
		return table.Int(i), true
	}
	return v, false
}

func toFloat(v table.Value) (table.Value, bool) {
	switch v.Kind() {
	case table.KindFloat:
		return v, true
	case table.KindInt:
		f, _ := v.Float()
		return table.Float(f), true
	case table.KindBool:
		if b, _ := v.Bool(); b {
			return table.Float(1), true
		}
		return table.Float(0), true
	case table.KindString:
		s, _ := v.Str()
		f, ok := table.ParseNumber(s)
		if !ok {
			return v, false
		}
		return table.Float(f), true
	}
	return v, false
}

func toBool(v table.Value) (table.Value, bool) {
	switch v.Kind() {
	case table.KindBool:
		return v, true
	case table.KindInt, table.KindFloat:
		f, _ := v.Float()
		switch f {
		case 0:
			return table.Bool(false), true
		case 1:
			return table.Bool(true), true
		}
	case table.KindString:
		s, _ := v.Str()
		if b, ok := table.ParseBool(s); ok {
			return table.Bool(b), true
		}
	}
	return v, false
}

func toTime(v table.Value) (table.Value, bool) {
	switch v.Kind() {
	case table.KindTime:
		return v, true
	case table.KindString:
		s, _ := v.Str()
		if t, ok := table.ParseDate(s); ok {
			return table.Time(t), true
		}
	}
	return v, false
}
