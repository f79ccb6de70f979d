package sales

import (
	"math"
	"sort"
	"time"
)

// Summary holds headline scalars for a row collection. All fields are zero
// for an empty collection.
type Summary struct {
	Rows         int     `json:"rows"`
	Revenue      float64 `json:"revenue"`
	AvgPrice     float64 `json:"avg_price"`
	DistinctSKUs int     `json:"distinct_skus"`
}

// Summarize computes Summary over rows. AvgPrice averages non-null invoice
// prices and is zero when there are none.
func Summarize(rows []CanonicalRow) Summary {
	var s Summary
	s.Rows = len(rows)
	skus := make(map[string]struct{}, len(rows))
	priced := 0
	for i := range rows {
		skus[rows[i].SKU] = struct{}{}
		if rows[i].InvoicePrice != nil {
			s.Revenue += *rows[i].InvoicePrice
			priced++
		}
	}
	if priced > 0 {
		s.AvgPrice = s.Revenue / float64(priced)
	}
	s.DistinctSKUs = len(skus)
	return s
}

// FilterOptions lists the selectable values for the SKU and country filters
// (All first, then sorted) and the observed order-date bounds.
type FilterOptions struct {
	SKUs      []string   `json:"skus"`
	Countries []string   `json:"countries"`
	MinDate   *time.Time `json:"min_date,omitempty"`
	MaxDate   *time.Time `json:"max_date,omitempty"`
}

// Options derives filter choices from rows.
func Options(rows []CanonicalRow) FilterOptions {
	skus := map[string]struct{}{}
	countries := map[string]struct{}{}
	var opts FilterOptions
	for i := range rows {
		r := &rows[i]
		skus[r.SKU] = struct{}{}
		if r.Country != nil {
			countries[*r.Country] = struct{}{}
		}
		if r.OrderDate != nil {
			d := *r.OrderDate
			if opts.MinDate == nil || d.Before(*opts.MinDate) {
				opts.MinDate = &d
			}
			if opts.MaxDate == nil || d.After(*opts.MaxDate) {
				opts.MaxDate = &d
			}
		}
	}
	opts.SKUs = withAll(skus)
	opts.Countries = withAll(countries)
	return opts
}

func withAll(set map[string]struct{}) []string {
	vals := make([]string, 0, len(set))
	for v := range set {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return append([]string{All}, vals...)
}

// TopDiscounts returns up to n rows that carry a base price, ordered by
// discount percentage descending (nil last), then by SKU.
func TopDiscounts(rows []CanonicalRow, n int) []CanonicalRow {
	out := make([]CanonicalRow, 0, len(rows))
	for i := range rows {
		if rows[i].BasePrice != nil {
			out = append(out, rows[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, oki := deref(out[i].DiscountPct)
		pj, okj := deref(out[j].DiscountPct)
		if oki != okj {
			return oki
		}
		if oki && pi != pj {
			return pi > pj
		}
		return out[i].SKU < out[j].SKU
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Bin is one equal-width histogram bucket over [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// DefaultHistogramBins matches the discount distribution view.
const DefaultHistogramBins = 30

// DiscountHistogram buckets non-null discount percentages into equal-width
// bins. The last bin is closed on the right. No data yields nil.
func DiscountHistogram(rows []CanonicalRow, bins int) []Bin {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	var vals []float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range rows {
		if rows[i].DiscountPct == nil {
			continue
		}
		v := *rows[i].DiscountPct
		vals = append(vals, v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(vals) == 0 {
		return nil
	}
	if hi == lo {
		return []Bin{{Lower: lo, Upper: hi, Count: len(vals)}}
	}
	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi
	for _, v := range vals {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}
