package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/vinodismyname/mcpsales/internal/sales"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Warning reports a recoverable irregularity found while reading a source.
type Warning struct {
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

// Encoding labels reported by DecodeText.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF16   = "utf-16"
	EncodingWin1256 = "windows-1256"
)

// DecodeText converts raw CSV bytes to UTF-8. A UTF-8 or UTF-16 byte order
// mark selects that encoding; otherwise valid UTF-8 passes through and
// anything else is read as Windows-1256, the legacy Arabic code page common
// in Gulf marketplace exports.
func DecodeText(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], EncodingUTF8, nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		// BOMOverride picks endianness from the mark and strips it.
		dec := unicode.BOMOverride(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return nil, "", fmt.Errorf("ingest: decode utf-16: %w", err)
		}
		return out, EncodingUTF16, nil
	case utf8.Valid(data):
		return data, EncodingUTF8, nil
	}
	out, err := decodeWith(charmap.Windows1256, data)
	if err != nil {
		return nil, "", err
	}
	return out, EncodingWin1256, nil
}

func decodeWith(enc encoding.Encoding, data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("ingest: decode: %w", err)
	}
	return out, nil
}

// sniffDelimiter picks the separator that occurs most often in the first line.
func sniffDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// ParseCSV reads delimited text into a Table. The first non-blank record is
// the header. Rows shorter than the header are padded and longer rows are
// truncated, each with a warning. A header with no data rows yields an empty
// table, and empty input yields a table with no columns.
func ParseCSV(data []byte) (sales.Table, []Warning, error) {
	text, enc, err := DecodeText(data)
	if err != nil {
		return sales.Table{}, nil, err
	}
	var warns []Warning
	if enc != EncodingUTF8 {
		warns = append(warns, Warning{Message: "decoded as " + enc})
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var header []string
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				warns = append(warns, Warning{Row: perr.Line, Message: perr.Err.Error()})
				continue
			}
			return sales.Table{}, warns, fmt.Errorf("ingest: read csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		line, _ := r.FieldPos(0)
		switch {
		case len(rec) < len(header):
			warns = append(warns, Warning{Row: line, Message: fmt.Sprintf("padded %d missing cells", len(header)-len(rec))})
			padded := make([]string, len(header))
			copy(padded, rec)
			rec = padded
		case len(rec) > len(header):
			warns = append(warns, Warning{Row: line, Message: fmt.Sprintf("dropped %d extra cells", len(rec)-len(header))})
			rec = rec[:len(header)]
		}
		rows = append(rows, rec)
	}
	return sales.NewTable(header, rows), warns, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
