package sales

// Label is the qualitative recommendation for an aggregate group.
type Label string

const (
	LabelDiscountDependent Label = "discount-dependent"
	LabelLowData           Label = "low-data"
	LabelStable            Label = "stable/good"
)

// Fixed classification thresholds.
const (
	DiscountDependentPct = 25.0
	MinOrders            = 5
	LowDataRevenue       = 500.0
)

// Classify applies the threshold rules in priority order. A nil average
// discount counts as zero.
func Classify(g AggregateGroup) Label {
	disc := 0.0
	if g.AvgDiscountPct != nil {
		disc = *g.AvgDiscountPct
	}
	switch {
	case disc > DiscountDependentPct && g.Orders >= MinOrders:
		return LabelDiscountDependent
	case g.Orders < MinOrders && g.Revenue < LowDataRevenue:
		return LabelLowData
	default:
		return LabelStable
	}
}

// Advice is a short operator-facing hint for the label.
func (l Label) Advice() string {
	switch l {
	case LabelDiscountDependent:
		return "relies heavily on markdowns; improve listing content and images before cutting price further"
	case LabelLowData:
		return "too little volume to judge; consider a small promotion or product test"
	default:
		return "stable or good performance"
	}
}

// Recommendation pairs a group key with its label.
type Recommendation struct {
	Key    string `json:"key"`
	Label  Label  `json:"label"`
	Advice string `json:"advice"`
}

// Recommend classifies every group, preserving order.
func Recommend(groups []AggregateGroup) []Recommendation {
	out := make([]Recommendation, len(groups))
	for i, g := range groups {
		l := Classify(g)
		out[i] = Recommendation{Key: g.Key, Label: l, Advice: l.Advice()}
	}
	return out
}
