package sales

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	// UnknownSKU is assigned when no SKU column or value is present.
	UnknownSKU = "UNKNOWN"
	// DefaultQuantity replaces missing or unparseable quantities.
	DefaultQuantity = 1.0

	// DateLayout keys day aggregates and date filters.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the lossless text form used by exports.
	DateTimeLayout = "2006-01-02 15:04:05"

	// Excel serial day numbers accepted for date columns (1900-01-01 .. 9999-12-31).
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

var currencyCodes = []string{"SAR", "AED", "EGP", "USD", "KWD", "BHD", "OMR", "QAR"}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	DateTimeLayout,
	"2006-01-02 15:04",
	DateLayout,
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06",
	"02 Jan 2006",
	"02 Jan 06",
	"Jan 2, 2006",
	"20060102",
}

// ParseNumber parses a spreadsheet cell as a float. Thousands separators,
// currency markers, Arabic-Indic digits, and accounting negatives like (100)
// are tolerated; NaN and Inf are not.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r == '٫':
			return '.'
		case r == ',', r == '٬', r == '$', r == ' ':
			return -1
		default:
			return r
		}
	}, s)
	neg := false
	if n := len(s); n > 2 && s[0] == '(' && s[n-1] == ')' {
		neg, s = true, strings.TrimSpace(s[1:n-1])
	}
	for _, code := range currencyCodes {
		n := len(code)
		if len(s) >= n && strings.EqualFold(s[:n], code) {
			s = s[n:]
		}
		if len(s) >= n && strings.EqualFold(s[len(s)-n:], code) {
			s = s[:len(s)-n]
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if neg && (s[0] == '-' || s[0] == '+') {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// ParseDate parses a cell as a UTC timestamp. Bare numbers in the Excel serial
// range are read as serial dates, which is how raw xlsx cells arrive.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minExcelSerial && f <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func numberAt(t Table, row int, cm ColumnMap, f Field) *float64 {
	col, ok := cm[f]
	if !ok {
		return nil
	}
	v, ok := ParseNumber(t.Cell(row, col))
	if !ok {
		return nil
	}
	return &v
}

func textAt(t Table, row int, cm ColumnMap, f Field) *string {
	col, ok := cm[f]
	if !ok {
		return nil
	}
	v := t.Cell(row, col)
	if v == "" {
		return nil
	}
	return &v
}

func dateAt(t Table, row int, cm ColumnMap, f Field) *time.Time {
	col, ok := cm[f]
	if !ok {
		return nil
	}
	v, ok := ParseDate(t.Cell(row, col))
	if !ok {
		return nil
	}
	return &v
}
