package sales

import (
	"strings"

	"golang.org/x/text/cases"
)

// Canonical fulfillment channel labels.
const (
	ChannelPlatform = "FBN"
	ChannelPartner  = "FBP"
	ChannelRetail   = "Retail"
	ChannelUnknown  = "Unknown"
)

// channelLookup maps folded, whitespace-collapsed spellings to canonical labels.
var channelLookup = map[string]string{
	"fbn":                    ChannelPlatform,
	"fulfilled by noon":      ChannelPlatform,
	"fulfilled_by_noon":      ChannelPlatform,
	"fulfilled-by-noon":      ChannelPlatform,
	"noon":                   ChannelPlatform,
	"noon fulfilled":         ChannelPlatform,
	"platform":               ChannelPlatform,
	"fulfilled by platform":  ChannelPlatform,
	"marketplace fulfilled":  ChannelPlatform,
	"fba":                    ChannelPlatform,
	"fulfilled by amazon":    ChannelPlatform,
	"fbp":                    ChannelPartner,
	"fbm":                    ChannelPartner,
	"fulfilled by partner":   ChannelPartner,
	"fulfilled_by_partner":   ChannelPartner,
	"fulfilled-by-partner":   ChannelPartner,
	"fulfilled by seller":    ChannelPartner,
	"fulfilled by merchant":  ChannelPartner,
	"partner":                ChannelPartner,
	"seller":                 ChannelPartner,
	"merchant":               ChannelPartner,
	"self ship":              ChannelPartner,
	"dropship":               ChannelPartner,
	"retail":                 ChannelRetail,
	"supermall":              ChannelRetail,
	"store":                  ChannelRetail,
	"in store":               ChannelRetail,
	"instore":                ChannelRetail,
	"retail store":           ChannelRetail,
}

// CanonicalChannel collapses raw fulfillment spellings to a fixed label set.
func CanonicalChannel(raw string) string {
	k := strings.Join(strings.Fields(cases.Fold().String(raw)), " ")
	if v, ok := channelLookup[k]; ok {
		return v
	}
	return ChannelUnknown
}

// Discount returns base - invoice, or nil when either operand is missing.
func Discount(base, invoice *float64) *float64 {
	if base == nil || invoice == nil {
		return nil
	}
	d := *base - *invoice
	return &d
}

// DiscountPct returns 100 * discount / base. A missing or zero base yields nil
// rather than NaN or Inf.
func DiscountPct(discount, base *float64) *float64 {
	if discount == nil || base == nil || *base == 0 {
		return nil
	}
	p := 100 * *discount / *base
	return &p
}
