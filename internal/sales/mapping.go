package sales

// MappingRow links a SKU to the unified product code it rolls up to.
type MappingRow struct {
	SKU         string `json:"sku"`
	UnifiedCode string `json:"unified_code"`
}

// ParseMapping extracts mapping rows from an optional secondary table. A nil
// table, one lacking either a SKU or a unified-code column, or one with no
// usable rows returns ok=false; callers treat that as "no mapping".
func ParseMapping(t *Table) ([]MappingRow, bool) {
	if t == nil {
		return nil, false
	}
	cm := Resolve(t.Columns, MappingAliases)
	skuCol, okSKU := cm[FieldSKU]
	codeCol, okCode := cm[FieldUnifiedCode]
	if !okSKU || !okCode {
		return nil, false
	}
	out := make([]MappingRow, 0, len(t.Rows))
	for i := range t.Rows {
		sku := t.Cell(i, skuCol)
		code := t.Cell(i, codeCol)
		if sku == "" || code == "" {
			continue
		}
		out = append(out, MappingRow{SKU: sku, UnifiedCode: code})
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// Enrich left-joins mapping onto rows by SKU. The first mapping row per SKU
// wins; later duplicates are ignored. The result has exactly len(rows) rows
// and the input is not modified.
func Enrich(rows []CanonicalRow, mapping []MappingRow) []CanonicalRow {
	index := make(map[string]string, len(mapping))
	for _, m := range mapping {
		if _, exists := index[m.SKU]; !exists {
			index[m.SKU] = m.UnifiedCode
		}
	}
	out := make([]CanonicalRow, len(rows))
	for i, r := range rows {
		r.UnifiedCode = nil
		if code, ok := index[r.SKU]; ok {
			c := code
			r.UnifiedCode = &c
		}
		out[i] = r
	}
	return out
}
