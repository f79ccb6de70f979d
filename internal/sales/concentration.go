package sales

import "math"

// GroupShare is one group's share of total revenue.
type GroupShare struct {
	Key     string  `json:"key"`
	Share   float64 `json:"share"`
	Revenue float64 `json:"revenue"`
}

// Concentration summarizes how revenue is spread across groups.
type Concentration struct {
	TopN       int          `json:"top_n"`
	Groups     []GroupShare `json:"groups"`
	OtherShare float64      `json:"other_share"`
	HHI        float64      `json:"hhi"`
	Band       string       `json:"band"`
}

// HHI bands, on the 0..1 share-squared scale.
const (
	BandUnconcentrated = "unconcentrated"
	BandModerate       = "moderately_concentrated"
	BandHigh           = "highly_concentrated"
)

// Concentrate computes Top-N revenue share and the Herfindahl-Hirschman index
// over groups, which must already be sorted by revenue descending for the
// Top-N slice to be meaningful. Zero or negative total revenue yields an empty
// unconcentrated result.
func Concentrate(groups []AggregateGroup, topN int) Concentration {
	if topN <= 0 {
		topN = 5
	}
	out := Concentration{TopN: topN, Band: BandUnconcentrated}
	var total float64
	for _, g := range groups {
		total += g.Revenue
	}
	if total <= 0 {
		return out
	}
	keep := min(topN, len(groups))
	var top float64
	for _, g := range groups[:keep] {
		sh := g.Revenue / total
		out.Groups = append(out.Groups, GroupShare{Key: g.Key, Share: round3(sh), Revenue: g.Revenue})
		top += sh
	}
	out.OtherShare = round3(math.Max(0, 1-top))

	var hhi float64
	for _, g := range groups {
		sh := g.Revenue / total
		hhi += sh * sh
	}
	out.HHI = round3(hhi)
	switch {
	case hhi < 0.15:
		out.Band = BandUnconcentrated
	case hhi < 0.25:
		out.Band = BandModerate
	default:
		out.Band = BandHigh
	}
	return out
}

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
