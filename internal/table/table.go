// Package table is the in-memory tabular model shared by the cleaning
// engine: typed columns, immutable rows and the CSV and XLSX codecs.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// ColumnType is the declared type of a column.
type ColumnType uint8

const (
	TypeString ColumnType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeDatetime
	TypeCategory
)

var columnTypeNames = map[ColumnType]string{
	TypeString:   "string",
	TypeInt:      "int",
	TypeFloat:    "float",
	TypeBool:     "bool",
	TypeDatetime: "datetime",
	TypeCategory: "category",
}

func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", uint8(t))
}

// ParseColumnType parses a dtype name. Common aliases (str, object, int64,
// float64, boolean, date) are accepted.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str", "object", "text":
		return TypeString, nil
	case "int", "int64", "integer":
		return TypeInt, nil
	case "float", "float64", "double", "number":
		return TypeFloat, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "datetime", "date", "datetime64", "timestamp":
		return TypeDatetime, nil
	case "category", "categorical":
		return TypeCategory, nil
	}
	return 0, fmt.Errorf("unknown column type %q", s)
}

// IsNumeric reports whether the column holds ints or floats.
func (t ColumnType) IsNumeric() bool { return t == TypeInt || t == TypeFloat }

// IsText reports whether the column holds free text or categories.
func (t ColumnType) IsText() bool { return t == TypeString || t == TypeCategory }

// Column describes one column of a table.
type Column struct {
	Name string
	Type ColumnType
}

// Table is an immutable, column-typed grid of values. Operations that
// change data return a new Table; row slices may be shared between
// tables and must never be written to after construction.
type Table struct {
	columns []Column
	rows    [][]Value
	index   map[string]int
}

// Named pairs a table with the filename it was uploaded as.
type Named struct {
	Name  string
	Table *Table
}

var (
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrRowWidth        = errors.New("row width does not match column count")
)

// New builds a table. Column names must be unique and every row must have
// exactly one value per column.
func New(columns []Column, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		index[c.Name] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRowWidth, i, len(r), len(columns))
		}
	}
	return &Table{columns: append([]Column(nil), columns...), rows: rows, index: index}, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(columns []Column, rows [][]Value) *Table {
	t, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// Columns returns a copy of the column descriptors.
func (t *Table) Columns() []Column { return append([]Column(nil), t.columns...) }

// Column returns the descriptor of column i.
func (t *Table) Column(i int) Column { return t.columns[i] }

// ColumnIndex looks up a column by name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Header returns the column names in order.
func (t *Table) Header() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Row returns row i. The slice is shared; callers must not modify it.
func (t *Table) Row(i int) []Value { return t.rows[i] }

// Cell returns the value at row r, column c.
func (t *Table) Cell(r, c int) Value { return t.rows[r][c] }

// Values returns a copy of column c.
func (t *Table) Values(c int) []Value {
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[c]
	}
	return out
}

// SelectRows returns a table with the given rows in the given order.
func (t *Table) SelectRows(idx []int) *Table {
	rows := make([][]Value, len(idx))
	for i, j := range idx {
		rows[i] = t.rows[j]
	}
	return &Table{columns: t.columns, rows: rows, index: t.index}
}

// WithColumn returns a table where column c is replaced by col and values.
func (t *Table) WithColumn(c int, col Column, values []Value) *Table {
	columns := append([]Column(nil), t.columns...)
	columns[c].Type = col.Type
	rows := make([][]Value, len(t.rows))
	for i, r := range t.rows {
		nr := append([]Value(nil), r...)
		nr[c] = values[i]
		rows[i] = nr
	}
	return &Table{columns: columns, rows: rows, index: t.index}
}

// RowKey encodes the values of the given columns of row r so that two rows
// have equal keys exactly when those values are equal. A nil cols selects
// every column.
func (t *Table) RowKey(r int, cols []int) string {
	var b strings.Builder
	row := t.rows[r]
	if cols == nil {
		for _, v := range row {
			v.appendKey(&b)
		}
		return b.String()
	}
	for _, c := range cols {
		row[c].appendKey(&b)
	}
	return b.String()
}

// Equal reports whether two tables have the same columns and rows.
func (t *Table) Equal(o *Table) bool {
	if len(t.columns) != len(o.columns) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if !t.rows[i][j].Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}
