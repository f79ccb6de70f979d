package sales

// Input bundles one pipeline invocation.
type Input struct {
	Sales   Table
	Mapping *Table
	Filter  FilterSpec
	GroupBy GroupKey
	SortBy  SortMetric
	// TopN caps Groups and Recommendations; zero or below keeps all. The
	// concentration view always sees every group.
	TopN int
}

// Result is the full output of Run.
type Result struct {
	Columns         ColumnMap        `json:"-"`
	ColumnNames     map[Field]string `json:"columns"`
	Rows            []CanonicalRow   `json:"-"`
	Groups          []AggregateGroup `json:"groups"`
	Recommendations []Recommendation `json:"recommendations"`
	Overall         Summary          `json:"overall"`
	Filtered        Summary          `json:"filtered"`
	MappingApplied  bool             `json:"mapping_applied"`
	UnmappedRows    int              `json:"unmapped_rows"`
	Concentration   Concentration    `json:"concentration"`
}

// Prepare normalizes the sales table and, when a usable mapping is present,
// enriches it. The returned rows are the unfiltered working set.
func Prepare(sales Table, mapping *Table) (Normalized, bool) {
	n := Normalize(sales, DefaultAliases)
	if m, ok := ParseMapping(mapping); ok {
		n.Rows = Enrich(n.Rows, m)
		return n, true
	}
	return n, false
}

// Run executes the pipeline end to end. It only fails on an invalid group key
// or sort metric; every data-quality condition degrades to nil values or an
// empty result.
func Run(in Input) (Result, error) {
	groupBy, err := ParseGroupKey(string(in.GroupBy))
	if err != nil {
		return Result{}, err
	}
	sortBy, err := ParseSortMetric(string(in.SortBy))
	if err != nil {
		return Result{}, err
	}

	n, applied := Prepare(in.Sales, in.Mapping)
	return Analyze(n, applied, in.Filter, groupBy, sortBy, in.TopN)
}

// Analyze runs the filter, aggregation, and classification stages over an
// already prepared working set.
func Analyze(n Normalized, mappingApplied bool, spec FilterSpec, groupBy GroupKey, sortBy SortMetric, topN int) (Result, error) {
	filtered := Filter(n.Rows, spec.Predicates()...)
	groups, err := Aggregate(filtered, groupBy, sortBy)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Columns:        n.Columns,
		ColumnNames:    n.Names,
		Rows:           filtered,
		Overall:        Summarize(n.Rows),
		Filtered:       Summarize(filtered),
		MappingApplied: mappingApplied,
	}
	if mappingApplied {
		for i := range n.Rows {
			if n.Rows[i].UnifiedCode == nil {
				res.UnmappedRows++
			}
		}
	}

	byRevenue := make([]AggregateGroup, len(groups))
	copy(byRevenue, groups)
	SortGroups(byRevenue, SortRevenue)
	res.Concentration = Concentrate(byRevenue, 0)

	if topN > 0 && len(groups) > topN {
		groups = groups[:topN]
	}
	res.Groups = groups
	res.Recommendations = Recommend(groups)
	return res, nil
}
