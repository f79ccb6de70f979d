package sales

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Field is a logical column name used throughout the pipeline.
type Field string

const (
	FieldInvoicePrice  Field = "invoice_price"
	FieldBasePrice     Field = "base_price"
	FieldSKU           Field = "sku"
	FieldCountry       Field = "country"
	FieldStatus        Field = "status"
	FieldOrderDate     Field = "order_date"
	FieldShippedDate   Field = "shipped_date"
	FieldDeliveredDate Field = "delivered_date"
	FieldQuantity      Field = "quantity"
	FieldFulfillment   Field = "fulfillment_channel"
	FieldUnifiedCode   Field = "unified_code"

	// Derived fields; never resolved from input columns.
	FieldDiscount    Field = "discount"
	FieldDiscountPct Field = "discount_pct"
)

// FieldAlias lists accepted literal column names for a logical field, highest
// priority first. Matching is case-insensitive and whitespace-trimmed.
type FieldAlias struct {
	Field   Field
	Aliases []string
}

// DefaultAliases covers the column spellings seen across sales exports.
var DefaultAliases = []FieldAlias{
	{Field: FieldInvoicePrice, Aliases: []string{"invoice_price", "invoice price", "invoice"}},
	{Field: FieldBasePrice, Aliases: []string{"base_price", "base price", "price", "base price (list)"}},
	{Field: FieldSKU, Aliases: []string{"partner_sku", "sku", "product_sku"}},
	{Field: FieldCountry, Aliases: []string{"country_code", "country", "marketplace"}},
	{Field: FieldStatus, Aliases: []string{"status", "order_status"}},
	{Field: FieldOrderDate, Aliases: []string{"ordered_date", "order_date", "ordered date", "ordered"}},
	{Field: FieldShippedDate, Aliases: []string{"shipped_date", "shipped date", "shipped"}},
	{Field: FieldDeliveredDate, Aliases: []string{"delivered_date", "delivered date", "delivered"}},
	{Field: FieldQuantity, Aliases: []string{"quantity", "qty", "order_qty"}},
	{Field: FieldFulfillment, Aliases: []string{"fulfillment_channel", "fulfillment_type", "fulfillment", "fulfilment", "fulfillment_mode", "channel"}},
}

// MappingAliases covers the SKU -> unified code table.
var MappingAliases = []FieldAlias{
	{Field: FieldSKU, Aliases: []string{"partner_sku", "sku", "product_sku"}},
	{Field: FieldUnifiedCode, Aliases: []string{"unified_code", "unified code", "unified_sku", "code", "group_code"}},
}

// foldName normalizes a column name or alias for comparison. Casers carry
// state, so one is built per call.
func foldName(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// ResolveColumn returns the index of the column matching the highest-priority
// alias. When several columns fold to the same name the first one wins.
func ResolveColumn(columns []string, aliases []string) (int, bool) {
	index := columnIndex(columns)
	return lookup(index, aliases)
}

func columnIndex(columns []string) map[string]int {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		k := foldName(c)
		if k == "" {
			continue
		}
		if _, exists := index[k]; !exists {
			index[k] = i
		}
	}
	return index
}

func lookup(index map[string]int, aliases []string) (int, bool) {
	for _, a := range aliases {
		if i, ok := index[foldName(a)]; ok {
			return i, true
		}
	}
	return -1, false
}

// ColumnMap is the typed result of resolving every logical field once per table.
type ColumnMap map[Field]int

// Resolve maps each logical field to a column index. Unresolved fields are absent.
func Resolve(columns []string, aliases []FieldAlias) ColumnMap {
	index := columnIndex(columns)
	cm := make(ColumnMap, len(aliases))
	for _, fa := range aliases {
		if i, ok := lookup(index, fa.Aliases); ok {
			cm[fa.Field] = i
		}
	}
	return cm
}

// Has reports whether the field resolved to a column.
func (m ColumnMap) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// Names returns the actual column name per resolved field.
func (m ColumnMap) Names(columns []string) map[Field]string {
	out := make(map[Field]string, len(m))
	for f, i := range m {
		if i >= 0 && i < len(columns) {
			out[f] = columns[i]
		}
	}
	return out
}
