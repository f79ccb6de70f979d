package ingest

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"

	"github.com/vinodismyname/mcpsales/internal/sales"
)

var (
	// ErrUnsupportedFormat reports bytes that are neither a workbook nor delimited text.
	ErrUnsupportedFormat = errors.New("ingest: unsupported format")
	// ErrSheetNotFound reports a worksheet name absent from the workbook.
	ErrSheetNotFound = errors.New("ingest: sheet not found")
	// ErrTooLarge reports a source over the configured byte cap.
	ErrTooLarge = errors.New("ingest: source too large")
	// ErrTooManyRows reports a source over the configured row cap.
	ErrTooManyRows = errors.New("ingest: too many rows")
	// ErrFetch reports a remote sheet that could not be downloaded.
	ErrFetch = errors.New("ingest: fetch failed")
	// ErrNoSource reports a Source with neither a path nor a URL.
	ErrNoSource = errors.New("ingest: no source configured")
)

// Format names a detected source encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var zipMagic = []byte("PK\x03\x04")

// DetectFormat infers the format from the file name, falling back to content
// sniffing: zip containers are workbooks, printable text is CSV.
func DetectFormat(name string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	}
	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX, nil
	}
	if len(data) == 0 || looksLikeText(data) {
		return FormatCSV, nil
	}
	return "", ErrUnsupportedFormat
}

func looksLikeText(data []byte) bool {
	probe := data
	if len(probe) > 4096 {
		probe = probe[:4096]
	}
	// UTF-16 text carries NULs, so let a BOM vouch for it.
	if bytes.HasPrefix(probe, []byte{0xFF, 0xFE}) || bytes.HasPrefix(probe, []byte{0xFE, 0xFF}) {
		return true
	}
	return bytes.IndexByte(probe, 0) < 0
}

// ParseBytes decodes a source held in memory. Workbooks read the named sheet
// (first sheet when empty); CSV ignores sheet.
func ParseBytes(name string, data []byte, sheet string) (sales.Table, Format, []Warning, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return sales.Table{}, "", nil, err
	}
	if format == FormatXLSX {
		t, err := ParseXLSX(bytes.NewReader(data), sheet)
		return t, format, nil, err
	}
	t, warns, err := ParseCSV(data)
	return t, format, warns, err
}
