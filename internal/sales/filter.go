package sales

import (
	"fmt"
	"strconv"
	"time"
)

// All is the equality value meaning "no constraint".
const All = "All"

// Predicate decides whether a row passes one filter condition.
type Predicate interface {
	Match(r *CanonicalRow) bool
}

// Equals matches rows whose textual field equals Value. An empty Value or All
// passes every row; a nil field value fails an active constraint.
type Equals struct {
	Field Field
	Value string
}

func (p Equals) Match(r *CanonicalRow) bool {
	if p.Value == "" || p.Value == All {
		return true
	}
	v, ok := r.Text(p.Field)
	return ok && v == p.Value
}

// DateRange matches rows whose order date falls within [Start, End] by calendar
// day. Rows without an order date never match. Start after End matches nothing.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (p DateRange) Match(r *CanonicalRow) bool {
	if r.OrderDate == nil {
		return false
	}
	start, end := day(p.Start), day(p.End)
	if start.After(end) {
		return false
	}
	d := day(*r.OrderDate)
	return !d.Before(start) && !d.After(end)
}

// Valid reports whether Start is not after End.
func (p DateRange) Valid() bool {
	return !day(p.Start).After(day(p.End))
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AtLeast matches rows whose numeric field is >= Min. Nil values never match.
type AtLeast struct {
	Field Field
	Min   float64
}

func (p AtLeast) Match(r *CanonicalRow) bool {
	v, ok := r.Number(p.Field)
	return ok && v >= p.Min
}

// Filter returns the rows matching every predicate, preserving order. The
// input slice is never modified.
func Filter(rows []CanonicalRow, preds ...Predicate) []CanonicalRow {
	out := make([]CanonicalRow, 0, len(rows))
	for i := range rows {
		if matchAll(&rows[i], preds) {
			out = append(out, rows[i])
		}
	}
	return out
}

func matchAll(r *CanonicalRow, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(r) {
			return false
		}
	}
	return true
}

// FilterSpec is the caller-facing filter configuration.
type FilterSpec struct {
	SKU             string     `json:"sku,omitempty"`
	Country         string     `json:"country,omitempty"`
	DateRange       *DateRange `json:"date_range,omitempty"`
	MinInvoicePrice float64    `json:"min_invoice_price,omitempty"`
}

// Predicates expands the filter into predicates. A MinInvoicePrice of zero or
// below applies no threshold.
func (s FilterSpec) Predicates() []Predicate {
	var preds []Predicate
	if s.SKU != "" && s.SKU != All {
		preds = append(preds, Equals{Field: FieldSKU, Value: s.SKU})
	}
	if s.Country != "" && s.Country != All {
		preds = append(preds, Equals{Field: FieldCountry, Value: s.Country})
	}
	if s.DateRange != nil {
		preds = append(preds, *s.DateRange)
	}
	if s.MinInvoicePrice > 0 {
		preds = append(preds, AtLeast{Field: FieldInvoicePrice, Min: s.MinInvoicePrice})
	}
	return preds
}

// Key is a canonical string form of the filter, stable across calls, used for
// memoization.
func (s FilterSpec) Key() string {
	dr := "-"
	if s.DateRange != nil {
		dr = s.DateRange.Start.Format(DateLayout) + ".." + s.DateRange.End.Format(DateLayout)
	}
	minPrice := s.MinInvoicePrice
	if minPrice < 0 {
		minPrice = 0
	}
	return fmt.Sprintf("sku=%q;country=%q;dates=%s;min=%s", orAll(s.SKU), orAll(s.Country), dr, strconv.FormatFloat(minPrice, 'g', -1, 64))
}

func orAll(v string) string {
	if v == "" {
		return All
	}
	return v
}
