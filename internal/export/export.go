// Package export writes canonical sales rows to CSV or XLSX and reads such
// files back.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vinodismyname/mcpsales/internal/sales"
	"github.com/xuri/excelize/v2"
)

// Header is the fixed column order of every export.
var Header = []string{
	string(sales.FieldSKU),
	string(sales.FieldUnifiedCode),
	string(sales.FieldCountry),
	string(sales.FieldStatus),
	string(sales.FieldOrderDate),
	string(sales.FieldShippedDate),
	string(sales.FieldDeliveredDate),
	string(sales.FieldFulfillment),
	string(sales.FieldQuantity),
	string(sales.FieldInvoicePrice),
	string(sales.FieldBasePrice),
	string(sales.FieldDiscount),
	string(sales.FieldDiscountPct),
}

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "rows"

// ErrNotExport reports a table that lacks the export header.
var ErrNotExport = errors.New("export: table is not a row export")

// Record renders one row in Header order. Nulls are empty strings.
func Record(r sales.CanonicalRow) []string {
	return []string{
		r.SKU,
		str(r.UnifiedCode),
		str(r.Country),
		str(r.Status),
		date(r.OrderDate),
		date(r.ShippedDate),
		date(r.DeliveredDate),
		r.FulfillmentChannel,
		num(&r.Quantity),
		num(r.InvoicePrice),
		num(r.BasePrice),
		num(r.Discount),
		num(r.DiscountPct),
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func date(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.UTC().Format(sales.DateTimeLayout)
}

func num(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

// WriteCSV writes Header followed by one record per row.
func WriteCSV(w io.Writer, rows []sales.CanonicalRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(Record(rows[i])); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook. Numeric fields are stored as
// numbers and dates as text in the export layout so values survive exactly.
func WriteXLSX(w io.Writer, rows []sales.CanonicalRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export: sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("export: stream: %w", err)
	}
	head := make([]any, len(Header))
	for i, h := range Header {
		head[i] = h
	}
	if err := sw.SetRow("A1", head); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell: %w", err)
		}
		if err := sw.SetRow(cell, xlsxValues(rows[i])); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func xlsxValues(r sales.CanonicalRow) []any {
	rec := Record(r)
	out := make([]any, len(rec))
	for i, v := range rec {
		out[i] = v
	}
	// Numeric columns trail the text columns in Header.
	for i, p := range []*float64{&r.Quantity, r.InvoicePrice, r.BasePrice, r.Discount, r.DiscountPct} {
		if p != nil {
			out[8+i] = *p
		} else {
			out[8+i] = nil
		}
	}
	return out
}

// Save writes rows to path, choosing the format by extension (.csv, .xlsx).
// The file is created or truncated; callers validate the path first.
func Save(path string, rows []sales.CanonicalRow) (int64, error) {
	var write func(io.Writer, []sales.CanonicalRow) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".xlsx":
		write = WriteXLSX
	default:
		return 0, fmt.Errorf("export: unsupported extension %q", filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("export: create: %w", err)
	}
	if err := write(f, rows); err != nil {
		_ = f.Close()
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("export: stat: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("export: close: %w", err)
	}
	return info.Size(), nil
}

// Decode reads an export back into canonical rows. Values are taken as
// written rather than re-derived.
func Decode(t sales.Table) ([]sales.CanonicalRow, error) {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, ok := idx[c]; !ok {
			idx[c] = i
		}
	}
	for _, h := range Header {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrNotExport, h)
		}
	}
	cell := func(row int, f sales.Field) string { return t.Cell(row, idx[string(f)]) }
	text := func(row int, f sales.Field) *string {
		if v := cell(row, f); v != "" {
			return &v
		}
		return nil
	}
	number := func(row int, f sales.Field) *float64 {
		if v, ok := sales.ParseNumber(cell(row, f)); ok {
			return &v
		}
		return nil
	}
	when := func(row int, f sales.Field) *time.Time {
		if v, ok := sales.ParseDate(cell(row, f)); ok {
			return &v
		}
		return nil
	}

	out := make([]sales.CanonicalRow, t.Len())
	for i := range out {
		r := sales.CanonicalRow{
			SKU:                cell(i, sales.FieldSKU),
			UnifiedCode:        text(i, sales.FieldUnifiedCode),
			Country:            text(i, sales.FieldCountry),
			Status:             text(i, sales.FieldStatus),
			OrderDate:          when(i, sales.FieldOrderDate),
			ShippedDate:        when(i, sales.FieldShippedDate),
			DeliveredDate:      when(i, sales.FieldDeliveredDate),
			FulfillmentChannel: cell(i, sales.FieldFulfillment),
			Quantity:           sales.DefaultQuantity,
			InvoicePrice:       number(i, sales.FieldInvoicePrice),
			BasePrice:          number(i, sales.FieldBasePrice),
			Discount:           number(i, sales.FieldDiscount),
			DiscountPct:        number(i, sales.FieldDiscountPct),
		}
		if r.SKU == "" {
			r.SKU = sales.UnknownSKU
		}
		if r.FulfillmentChannel == "" {
			r.FulfillmentChannel = sales.ChannelUnknown
		}
		if q := number(i, sales.FieldQuantity); q != nil {
			r.Quantity = *q
		}
		out[i] = r
	}
	return out, nil
}
