package sales

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	cases := map[string]float64{
		"42":          42,
		" 1,234.5 ":   1234.5,
		"$99.90":      99.9,
		"SAR 150":     150,
		"150 aed":     150,
		"١٢٣":         123,
		"-3.5":        -3.5,
		"1e3":         1000,
		"EGP1,000":    1000,
		"(100)":       -100,
		"(SAR 1,250)": -1250,
		"$(99.5)":     -99.5,
	}
	for in, want := range cases {
		got, ok := ParseNumber(in)
		require.True(t, ok, in)
		require.InDelta(t, want, got, 1e-9, in)
	}
	for _, bad := range []string{"", "  ", "abc", "NaN", "Inf", "12abc", "SAR", "()", "(-5)", "(12"} {
		_, ok := ParseNumber(bad)
		require.False(t, ok, bad)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-05", "2024/03/05", "3/5/2024", "05 Mar 2024", "20240305"} {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		require.True(t, want.Equal(got), in)
	}

	got, ok := ParseDate("2024-03-05 13:45:00")
	require.True(t, ok)
	require.Equal(t, 13, got.Hour())

	// Excel serial 45356 is 2024-03-05.
	got, ok = ParseDate("45356")
	require.True(t, ok)
	require.Equal(t, want.Format(DateLayout), got.Format(DateLayout))

	for _, bad := range []string{"", "yesterday", "2024-13-40", "0", "-5"} {
		_, ok := ParseDate(bad)
		require.False(t, ok, bad)
	}
}

func TestNormalizeDefaultsAndNulls(t *testing.T) {
	tbl := NewTable([]string{"Invoice Price", "qty"}, [][]string{{"abc", ""}, {"10", "3"}})
	n := Normalize(tbl, DefaultAliases)
	require.Len(t, n.Rows, 2)

	r0 := n.Rows[0]
	require.Equal(t, UnknownSKU, r0.SKU)
	require.Nil(t, r0.InvoicePrice)
	require.Equal(t, DefaultQuantity, r0.Quantity)
	require.Equal(t, ChannelUnknown, r0.FulfillmentChannel)
	require.Nil(t, r0.Discount)
	require.Nil(t, r0.DiscountPct)

	r1 := n.Rows[1]
	require.InDelta(t, 10, *r1.InvoicePrice, 1e-9)
	require.Equal(t, 3.0, r1.Quantity)
	require.False(t, n.Columns.Has(FieldSKU))
}

func TestDiscountPctNullability(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		base, invoice *float64
		want          *float64
	}{
		{nil, f(10), nil},
		{f(0), f(10), nil},
		{f(100), nil, nil},
		{f(100), f(75), f(25)},
		{f(50), f(50), f(0)},
		{f(40), f(50), f(-25)},
	}
	for _, c := range cases {
		got := DiscountPct(Discount(c.base, c.invoice), c.base)
		if c.want == nil {
			require.Nil(t, got)
			continue
		}
		require.NotNil(t, got)
		require.InDelta(t, *c.want, *got, 1e-9)
		require.False(t, math.IsNaN(*got) || math.IsInf(*got, 0))
	}
}

func TestNormalizeDiscountInvariant(t *testing.T) {
	tbl := NewTable(
		[]string{"sku", "invoice", "price"},
		[][]string{{"A", "90", "100"}, {"B", "10", "0"}, {"C", "10", ""}, {"D", "", "100"}, {"E", "12.5", "37.5"}},
	)
	for _, r := range Normalize(tbl, DefaultAliases).Rows {
		if r.BasePrice == nil || *r.BasePrice == 0 || r.InvoicePrice == nil {
			require.Nil(t, r.DiscountPct, r.SKU)
			continue
		}
		want := 100 * (*r.BasePrice - *r.InvoicePrice) / *r.BasePrice
		require.NotNil(t, r.DiscountPct, r.SKU)
		require.InDelta(t, want, *r.DiscountPct, 1e-9, r.SKU)
	}
}

func TestCanonicalChannel(t *testing.T) {
	require.Equal(t, ChannelPlatform, CanonicalChannel(" Fulfilled  by Noon "))
	require.Equal(t, ChannelPlatform, CanonicalChannel("FBN"))
	require.Equal(t, ChannelPartner, CanonicalChannel("fbp"))
	require.Equal(t, ChannelPartner, CanonicalChannel("Seller"))
	require.Equal(t, ChannelRetail, CanonicalChannel("Supermall"))
	require.Equal(t, ChannelUnknown, CanonicalChannel("drone"))
	require.Equal(t, ChannelUnknown, CanonicalChannel(""))
}
