package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/vinodismyname/mcpsales/internal/sales"
)

// --- Input / Output Schemas (typed for discovery) ---

// LoadDatasetInput names the sales source and an optional SKU mapping source.
// When every field is empty the server's configured defaults are used.
type LoadDatasetInput struct {
	Path         string `json:"path,omitempty" validate:"omitempty,source_ext" jsonschema_description:"Allowed path to a sales export (.xlsx, .xlsm, .csv)"`
	URL          string `json:"url,omitempty" validate:"omitempty,http_url" jsonschema_description:"Public spreadsheet link or CSV URL; edit links are rewritten to CSV export"`
	Sheet        string `json:"sheet,omitempty" jsonschema_description:"Worksheet name for workbooks; first sheet when omitted"`
	MappingPath  string `json:"mapping_path,omitempty" validate:"omitempty,source_ext" jsonschema_description:"Allowed path to a SKU to unified-code mapping table"`
	MappingURL   string `json:"mapping_url,omitempty" validate:"omitempty,http_url" jsonschema_description:"Public URL of the mapping table"`
	MappingSheet string `json:"mapping_sheet,omitempty" jsonschema_description:"Worksheet name in the mapping workbook"`
}

// LoadDatasetOutput documents the handle and what was detected in the source.
type LoadDatasetOutput struct {
	DatasetID       string                 `json:"dataset_id" jsonschema_description:"Server-assigned dataset handle ID"`
	Origin          string                 `json:"origin"`
	MappingOrigin   string                 `json:"mapping_origin,omitempty"`
	Format          string                 `json:"format"`
	Rows            int                    `json:"rows"`
	Columns         map[sales.Field]string `json:"columns" jsonschema_description:"Canonical field to source column name"`
	MissingFields   []sales.Field          `json:"missing_fields,omitempty"`
	MappingApplied  bool                   `json:"mapping_applied"`
	UnmappedRows    int                    `json:"unmapped_rows"`
	Warnings        []string               `json:"warnings,omitempty"`
	Reused          bool                   `json:"reused" jsonschema_description:"True when identical content was already loaded"`
	ExpiresAt       string                 `json:"expires_at"`
	MaxPayloadBytes int                    `json:"maxPayloadBytes" jsonschema_description:"Effective payload size limit in bytes"`
	PageRowLimit    int                    `json:"pageRowLimit" jsonschema_description:"Default row limit for list_rows"`
}

// DatasetInput addresses one loaded dataset.
type DatasetInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
}

// CloseDatasetOutput reports whether the handle was released.
type CloseDatasetOutput struct {
	Success bool `json:"success" jsonschema_description:"True when the handle was closed"`
}

// DescribeDatasetOutput summarizes a dataset without returning rows.
type DescribeDatasetOutput struct {
	DatasetID      string                 `json:"dataset_id"`
	Origin         string                 `json:"origin"`
	MappingOrigin  string                 `json:"mapping_origin,omitempty"`
	Format         string                 `json:"format"`
	Columns        map[sales.Field]string `json:"columns"`
	MissingFields  []sales.Field          `json:"missing_fields,omitempty"`
	MappingApplied bool                   `json:"mapping_applied"`
	Summary        sales.Summary          `json:"summary"`
	Options        sales.FilterOptions    `json:"options" jsonschema_description:"Filter choices: SKUs and countries (All first) and the order date span"`
	OptionsCapped  bool                   `json:"options_capped"`
	LoadedAt       string                 `json:"loaded_at"`
	ExpiresAt      string                 `json:"expires_at"`
}

// FilterInput is the caller-facing filter shared by report and row tools.
// Empty or "All" selectors apply no constraint.
type FilterInput struct {
	SKU             string  `json:"sku,omitempty" jsonschema_description:"Exact SKU or All"`
	Country         string  `json:"country,omitempty" jsonschema_description:"Exact country code or All"`
	DateFrom        string  `json:"date_from,omitempty" validate:"omitempty,isodate" jsonschema_description:"Inclusive first order date (YYYY-MM-DD)"`
	DateTo          string  `json:"date_to,omitempty" validate:"omitempty,isodate" jsonschema_description:"Inclusive last order date (YYYY-MM-DD)"`
	MinInvoicePrice float64 `json:"min_invoice_price,omitempty" jsonschema_description:"Minimum invoice price; zero or below disables the threshold"`
}

// far bounds stand in for an open side of a date range.
var (
	openStart = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	openEnd   = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Spec converts the input into a sales.FilterSpec. A single date bound leaves
// the other side open.
func (f FilterInput) Spec() (sales.FilterSpec, error) {
	spec := sales.FilterSpec{
		SKU:             strings.TrimSpace(f.SKU),
		Country:         strings.TrimSpace(f.Country),
		MinInvoicePrice: f.MinInvoicePrice,
	}
	from, to := strings.TrimSpace(f.DateFrom), strings.TrimSpace(f.DateTo)
	if from == "" && to == "" {
		return spec, nil
	}
	dr := sales.DateRange{Start: openStart, End: openEnd}
	if from != "" {
		t, err := time.Parse(sales.DateLayout, from)
		if err != nil {
			return sales.FilterSpec{}, fmt.Errorf("date_from: %w", err)
		}
		dr.Start = t
	}
	if to != "" {
		t, err := time.Parse(sales.DateLayout, to)
		if err != nil {
			return sales.FilterSpec{}, fmt.Errorf("date_to: %w", err)
		}
		dr.End = t
	}
	spec.DateRange = &dr
	return spec, nil
}

// SalesReportInput selects grouping, ordering, and the filter for a report.
type SalesReportInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	FilterInput
	GroupBy string `json:"group_by,omitempty" validate:"omitempty,group_key" jsonschema_description:"sku, unified_code, fulfillment_channel, or day"`
	SortBy  string `json:"sort_by,omitempty" validate:"omitempty,sort_metric" jsonschema_description:"revenue, orders, avg_price, or avg_discount_pct (descending)"`
	TopN    int    `json:"top_n,omitempty" validate:"omitempty,min=1,max=500" jsonschema_description:"Max groups and recommendations to return"`
}

// SalesReportOutput is the aggregated, classified view of the filtered rows.
type SalesReportOutput struct {
	DatasetID       string                 `json:"dataset_id"`
	GroupBy         sales.GroupKey         `json:"group_by"`
	SortBy          sales.SortMetric       `json:"sort_by"`
	Filter          string                 `json:"filter" jsonschema_description:"Canonical form of the applied filter"`
	Overall         sales.Summary          `json:"overall"`
	Filtered        sales.Summary          `json:"filtered"`
	Groups          []sales.AggregateGroup `json:"groups"`
	Recommendations []sales.Recommendation `json:"recommendations"`
	Concentration   sales.Concentration    `json:"concentration"`
	MappingApplied  bool                   `json:"mapping_applied"`
	UnmappedRows    int                    `json:"unmapped_rows"`
	Cached          bool                   `json:"cached"`
}

// DiscountReportInput selects the filter and the size of the discount views.
type DiscountReportInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	FilterInput
	Top  int `json:"top,omitempty" validate:"omitempty,min=1,max=200" jsonschema_description:"Rows with the steepest discounts to return"`
	Bins int `json:"bins,omitempty" validate:"omitempty,min=1,max=200" jsonschema_description:"Histogram bin count (default 30)"`
}

// DiscountReportOutput lists the deepest discounts and their distribution.
type DiscountReportOutput struct {
	DatasetID    string               `json:"dataset_id"`
	Filter       string               `json:"filter"`
	Rows         int                  `json:"rows"`
	TopDiscounts []sales.CanonicalRow `json:"top_discounts"`
	Histogram    []sales.Bin          `json:"histogram"`
}

// ListRowsInput pages through filtered canonical rows. cursor takes precedence
// over dataset_id and the filter fields.
type ListRowsInput struct {
	DatasetID string `json:"dataset_id,omitempty" validate:"required_without=Cursor" jsonschema_description:"Dataset handle ID (omit when resuming with cursor)"`
	FilterInput
	Limit  int    `json:"limit,omitempty" validate:"omitempty,min=1,max=1000" jsonschema_description:"Max rows per page"`
	Cursor string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous page"`
}

// PageMeta captures paging/truncation metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Offset     int    `json:"offset"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ListRowsOutput is one page of canonical rows.
type ListRowsOutput struct {
	DatasetID string               `json:"dataset_id"`
	Rows      []sales.CanonicalRow `json:"rows"`
	Meta      PageMeta             `json:"meta"`
}

// ExportRowsInput writes the filtered rows to a file inside the allow-list.
type ExportRowsInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	FilterInput
	Path      string `json:"path" validate:"required,export_ext" jsonschema_description:"Target path ending in .csv or .xlsx inside an allowed directory"`
	Overwrite bool   `json:"overwrite,omitempty" jsonschema_description:"Replace an existing file"`
}

// ExportRowsOutput reports what was written.
type ExportRowsOutput struct {
	Path  string `json:"path"`
	Rows  int    `json:"rows"`
	Bytes int64  `json:"bytes"`
}
