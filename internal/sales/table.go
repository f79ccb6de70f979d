package sales

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Table is a fully materialized tabular dataset: a header row plus data rows.
// Rows are aligned with Columns; short rows read as empty cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable trims column names and returns a Table over the given rows.
// The input slices are copied so later mutation by the caller is not observed.
func NewTable(columns []string, rows [][]string) Table {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = strings.TrimSpace(c)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		cp := make([]string, len(r))
		copy(cp, r)
		out[i] = cp
	}
	return Table{Columns: cols, Rows: out}
}

// FromRecords builds a Table from API-shaped records (column -> value). Values
// may be strings, numbers, booleans, times, or nil; numbers are formatted with
// the shortest representation that parses back to the same value.
func FromRecords(columns []string, records []map[string]any) Table {
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(columns))
		for j, c := range columns {
			row[j] = cellString(rec[c])
		}
		rows[i] = row
	}
	return NewTable(columns, rows)
}

// Len reports the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Cell returns the trimmed cell at (row, col), or "" when out of bounds.
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(DateTimeLayout)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
