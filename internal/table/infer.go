package table

import (
	"fmt"
	"strconv"
	"strings"
)

// FromRecords builds a table from a header row and raw string records, the
// shape produced by both the CSV and XLSX readers.
//
// Column names are made unique (a repeated "x" becomes "x.1", "x.2") and
// blank headers become "Unnamed: i". Rows shorter than the widest row are
// padded with nulls. Each column's type is inferred strictly from its
// non-missing cells: all integers gives int, all numbers float, all
// true/false bool, anything else string. Empty cells become null;
// whitespace-only cells are kept verbatim in string columns and become
// null elsewhere.
func FromRecords(header []string, records [][]string) (*Table, error) {
	width := len(header)
	for _, r := range records {
		width = max(width, len(r))
	}

	names := uniqueNames(header, width)
	columns := make([]Column, width)
	for c := range columns {
		columns[c] = Column{Name: names[c], Type: inferType(records, c)}
	}

	rows := make([][]Value, len(records))
	for i, rec := range records {
		row := make([]Value, width)
		for c := range row {
			if c < len(rec) {
				row[c] = parseCell(rec[c], columns[c].Type)
			}
		}
		rows[i] = row
	}
	return New(columns, rows)
}

func uniqueNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := range names {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for {
			n, dup := seen[name]
			if !dup {
				break
			}
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", base, n+1)
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

func inferType(records [][]string, c int) ColumnType {
	isInt, isFloat, isBool := true, true, true
	nonEmpty := false
	for _, rec := range records {
		if c >= len(rec) {
			continue
		}
		s := strings.TrimSpace(rec[c])
		if s == "" {
			continue
		}
		nonEmpty = true
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat && !isInt {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := strictBool(s); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			return TypeString
		}
	}
	switch {
	case !nonEmpty:
		return TypeString
	case isInt:
		return TypeInt
	case isFloat:
		return TypeFloat
	case isBool:
		return TypeBool
	}
	return TypeString
}

func strictBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func parseCell(raw string, typ ColumnType) Value {
	if raw == "" {
		return Null()
	}
	s := strings.TrimSpace(raw)
	switch typ {
	case TypeInt:
		if s == "" {
			return Null()
		}
		i, _ := strconv.ParseInt(s, 10, 64)
		return Int(i)
	case TypeFloat:
		if s == "" {
			return Null()
		}
		f, _ := strconv.ParseFloat(s, 64)
		return Float(f)
	case TypeBool:
		if s == "" {
			return Null()
		}
		b, _ := strictBool(s)
		return Bool(b)
	}
	return String(raw)
}
