package sales

import (
	"errors"
	"fmt"
	"sort"
)

// GroupKey selects the dimension rows are grouped by.
type GroupKey string

const (
	GroupSKU         GroupKey = "sku"
	GroupUnifiedCode GroupKey = "unified_code"
	GroupChannel     GroupKey = "fulfillment_channel"
	GroupDay         GroupKey = "day"
)

// SortMetric selects the metric groups are ordered by (descending).
type SortMetric string

const (
	SortRevenue        SortMetric = "revenue"
	SortOrders         SortMetric = "orders"
	SortAvgPrice       SortMetric = "avg_price"
	SortAvgDiscountPct SortMetric = "avg_discount_pct"
)

var (
	// ErrInvalidGroupKey reports a grouping selector outside the defined set.
	ErrInvalidGroupKey = errors.New("sales: invalid group key")
	// ErrInvalidSortMetric reports a sort selector outside the defined set.
	ErrInvalidSortMetric = errors.New("sales: invalid sort metric")
)

// GroupKeys lists every valid grouping selector.
var GroupKeys = []GroupKey{GroupSKU, GroupUnifiedCode, GroupChannel, GroupDay}

// SortMetrics lists every valid sort selector.
var SortMetrics = []SortMetric{SortRevenue, SortOrders, SortAvgPrice, SortAvgDiscountPct}

// ParseGroupKey maps a selector string to a GroupKey; "" means sku.
func ParseGroupKey(s string) (GroupKey, error) {
	if s == "" {
		return GroupSKU, nil
	}
	for _, k := range GroupKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGroupKey, s)
}

// ParseSortMetric maps a selector string to a SortMetric; "" means revenue.
func ParseSortMetric(s string) (SortMetric, error) {
	if s == "" {
		return SortRevenue, nil
	}
	for _, m := range SortMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortMetric, s)
}

// AggregateGroup holds per-group metrics. Means are nil when the group has no
// non-null values for the underlying field.
type AggregateGroup struct {
	Key            string   `json:"key"`
	Orders         int      `json:"orders"`
	Units          float64  `json:"units"`
	Revenue        float64  `json:"revenue"`
	AvgPrice       *float64 `json:"avg_price"`
	AvgDiscountPct *float64 `json:"avg_discount_pct"`
}

type accumulator struct {
	orders  int
	units   float64
	revenue float64
	priceN  int
	discSum float64
	discN   int
}

// Aggregate groups rows by key and computes per-group metrics, sorted by the
// chosen metric descending with ties broken by ascending key. Rows with a nil
// key value are excluded. An empty input yields an empty, non-nil slice.
func Aggregate(rows []CanonicalRow, key GroupKey, sortBy SortMetric) ([]AggregateGroup, error) {
	field, err := keyField(key)
	if err != nil {
		return nil, err
	}
	if _, err := ParseSortMetric(string(sortBy)); err != nil {
		return nil, err
	}

	acc := map[string]*accumulator{}
	for i := range rows {
		r := &rows[i]
		k, ok := r.Text(field)
		if !ok {
			continue
		}
		a, ok := acc[k]
		if !ok {
			a = &accumulator{}
			acc[k] = a
		}
		a.orders++
		a.units += r.Quantity
		if r.InvoicePrice != nil {
			a.revenue += *r.InvoicePrice
			a.priceN++
		}
		if r.DiscountPct != nil {
			a.discSum += *r.DiscountPct
			a.discN++
		}
	}

	groups := make([]AggregateGroup, 0, len(acc))
	for k, a := range acc {
		g := AggregateGroup{Key: k, Orders: a.orders, Units: a.units, Revenue: a.revenue}
		if a.priceN > 0 {
			v := a.revenue / float64(a.priceN)
			g.AvgPrice = &v
		}
		if a.discN > 0 {
			v := a.discSum / float64(a.discN)
			g.AvgDiscountPct = &v
		}
		groups = append(groups, g)
	}
	SortGroups(groups, sortBy)
	return groups, nil
}

func keyField(key GroupKey) (Field, error) {
	switch key {
	case GroupSKU:
		return FieldSKU, nil
	case GroupUnifiedCode:
		return FieldUnifiedCode, nil
	case GroupChannel:
		return FieldFulfillment, nil
	case GroupDay:
		return FieldOrderDate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGroupKey, string(key))
}

// SortGroups orders groups by metric descending; nil metrics sort last and
// ties fall back to ascending key.
func SortGroups(groups []AggregateGroup, by SortMetric) {
	sort.SliceStable(groups, func(i, j int) bool {
		vi, oki := metric(groups[i], by)
		vj, okj := metric(groups[j], by)
		if oki != okj {
			return oki
		}
		if oki && vi != vj {
			return vi > vj
		}
		return groups[i].Key < groups[j].Key
	})
}

func metric(g AggregateGroup, by SortMetric) (float64, bool) {
	switch by {
	case SortOrders:
		return float64(g.Orders), true
	case SortAvgPrice:
		return deref(g.AvgPrice)
	case SortAvgDiscountPct:
		return deref(g.AvgDiscountPct)
	default:
		return g.Revenue, true
	}
}
