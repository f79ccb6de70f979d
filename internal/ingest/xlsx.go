package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/vinodismyname/mcpsales/internal/sales"
	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads one worksheet into a Table. An empty sheet name selects the
// first sheet. Cells are read raw so dates arrive as serial numbers and
// numbers keep full precision; the first non-blank row is the header.
func ParseXLSX(r io.Reader, sheet string) (sales.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return sales.Table{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer func() { _ = f.Close() }()

	list := f.GetSheetList()
	if sheet == "" {
		if len(list) == 0 {
			return sales.Table{}, fmt.Errorf("ingest: workbook has no sheets")
		}
		sheet = list[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return sales.Table{}, fmt.Errorf("%w: %q (available: %s)", ErrSheetNotFound, sheet, strings.Join(list, ", "))
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return sales.Table{}, fmt.Errorf("ingest: rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var header []string
	var data [][]string
	for rows.Next() {
		vals, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return sales.Table{}, fmt.Errorf("ingest: columns: %w", err)
		}
		if blank(vals) {
			continue
		}
		if header == nil {
			header = vals
			continue
		}
		if len(vals) > len(header) {
			vals = vals[:len(header)]
		}
		data = append(data, vals)
	}
	if err := rows.Error(); err != nil {
		return sales.Table{}, fmt.Errorf("ingest: rows: %w", err)
	}
	return sales.NewTable(header, data), nil
}
