package sales

import "time"

// CanonicalRow is one sales line after resolution, coercion, and derivation.
// Pointer fields are nil when the source had no usable value.
type CanonicalRow struct {
	SKU                string     `json:"sku"`
	UnifiedCode        *string    `json:"unified_code"`
	Country            *string    `json:"country"`
	Status             *string    `json:"status,omitempty"`
	OrderDate          *time.Time `json:"order_date"`
	ShippedDate        *time.Time `json:"shipped_date,omitempty"`
	DeliveredDate      *time.Time `json:"delivered_date,omitempty"`
	FulfillmentChannel string     `json:"fulfillment_channel"`
	Quantity           float64    `json:"quantity"`
	InvoicePrice       *float64   `json:"invoice_price"`
	BasePrice          *float64   `json:"base_price"`
	Discount           *float64   `json:"discount"`
	DiscountPct        *float64   `json:"discount_pct"`
}

// Text returns a string-valued field. ok is false for nil values and for
// fields that are not textual.
func (r *CanonicalRow) Text(f Field) (string, bool) {
	switch f {
	case FieldSKU:
		return r.SKU, true
	case FieldFulfillment:
		return r.FulfillmentChannel, true
	case FieldUnifiedCode:
		return deref(r.UnifiedCode)
	case FieldCountry:
		return deref(r.Country)
	case FieldStatus:
		return deref(r.Status)
	case FieldOrderDate:
		if r.OrderDate == nil {
			return "", false
		}
		return r.OrderDate.Format(DateLayout), true
	}
	return "", false
}

// Number returns a numeric field. ok is false for nil values and for fields
// that are not numeric.
func (r *CanonicalRow) Number(f Field) (float64, bool) {
	switch f {
	case FieldQuantity:
		return r.Quantity, true
	case FieldInvoicePrice:
		return deref(r.InvoicePrice)
	case FieldBasePrice:
		return deref(r.BasePrice)
	case FieldDiscount:
		return deref(r.Discount)
	case FieldDiscountPct:
		return deref(r.DiscountPct)
	}
	return 0, false
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Normalized is the output of Normalize: canonical rows plus the column map
// that produced them.
type Normalized struct {
	Columns ColumnMap
	Names   map[Field]string
	Rows    []CanonicalRow
}

// Normalize resolves, coerces, and derives every row of t. It never fails:
// absent columns yield nil or default values, unparseable cells yield nil.
func Normalize(t Table, aliases []FieldAlias) Normalized {
	cm := Resolve(t.Columns, aliases)
	rows := make([]CanonicalRow, len(t.Rows))
	for i := range t.Rows {
		r := CanonicalRow{
			SKU:                UnknownSKU,
			Quantity:           DefaultQuantity,
			FulfillmentChannel: ChannelUnknown,
			InvoicePrice:       numberAt(t, i, cm, FieldInvoicePrice),
			BasePrice:          numberAt(t, i, cm, FieldBasePrice),
			Country:            textAt(t, i, cm, FieldCountry),
			Status:             textAt(t, i, cm, FieldStatus),
			OrderDate:          dateAt(t, i, cm, FieldOrderDate),
			ShippedDate:        dateAt(t, i, cm, FieldShippedDate),
			DeliveredDate:      dateAt(t, i, cm, FieldDeliveredDate),
		}
		if sku := textAt(t, i, cm, FieldSKU); sku != nil {
			r.SKU = *sku
		}
		if q := numberAt(t, i, cm, FieldQuantity); q != nil {
			r.Quantity = *q
		}
		if ch := textAt(t, i, cm, FieldFulfillment); ch != nil {
			r.FulfillmentChannel = CanonicalChannel(*ch)
		}
		r.Discount = Discount(r.BasePrice, r.InvoicePrice)
		r.DiscountPct = DiscountPct(r.Discount, r.BasePrice)
		rows[i] = r
	}
	return Normalized{Columns: cm, Names: cm.Names(t.Columns), Rows: rows}
}
