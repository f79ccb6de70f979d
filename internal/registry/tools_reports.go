package registry

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vinodismyname/mcpsales/config"
	"github.com/vinodismyname/mcpsales/internal/datasets"
	"github.com/vinodismyname/mcpsales/internal/sales"
	"github.com/vinodismyname/mcpsales/pkg/mcperr"
	"github.com/vinodismyname/mcpsales/pkg/validation"
)

const defaultTopDiscounts = 20

func (h *handlers) salesReport(ctx context.Context, _ mcp.CallToolRequest, in SalesReportInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	d, errRes := h.dataset(in.DatasetID)
	if errRes != nil {
		return errRes, nil
	}
	spec, err := in.Spec()
	if err != nil {
		return mcperr.Wrapf(mcperr.Validation, "%v", err), nil
	}
	groupBy, err := sales.ParseGroupKey(in.GroupBy)
	if err != nil {
		return toolError(err, mcperr.Validation), nil
	}
	sortBy, err := sales.ParseSortMetric(in.SortBy)
	if err != nil {
		return toolError(err, mcperr.Validation), nil
	}
	topN := in.TopN
	if topN <= 0 {
		topN = config.DefaultTopN
	}
	if err := ctx.Err(); err != nil {
		return toolError(err, mcperr.AnalysisFailed), nil
	}

	query := fmt.Sprintf("report|%s|group=%s|sort=%s|top=%d", spec.Key(), groupBy, sortBy, topN)
	res, hit, err := h.reports.GetOrCompute(datasets.Key(d.Fingerprint, query), func() (sales.Result, error) {
		r, err := sales.Analyze(d.Data, d.MappingApplied, spec, groupBy, sortBy, topN)
		// Rows are served by list_rows; keep memo entries small.
		r.Rows = nil
		return r, err
	})
	h.Metrics.CacheLookup(hit)
	if err != nil {
		return toolError(err, mcperr.AnalysisFailed), nil
	}

	out := SalesReportOutput{
		DatasetID:       d.ID,
		GroupBy:         groupBy,
		SortBy:          sortBy,
		Filter:          spec.Key(),
		Overall:         res.Overall,
		Filtered:        res.Filtered,
		Groups:          res.Groups,
		Recommendations: res.Recommendations,
		Concentration:   res.Concentration,
		MappingApplied:  res.MappingApplied,
		UnmappedRows:    res.UnmappedRows,
		Cached:          hit,
	}
	if !h.fits(out) {
		return mcperr.Wrapf(mcperr.PayloadTooLarge, "report with top_n=%d exceeds %d bytes", topN, h.Limits.MaxPayloadBytes), nil
	}
	summary := fmt.Sprintf("group_by=%s sort_by=%s groups=%d filtered_rows=%d revenue=%.2f band=%s cached=%v", groupBy, sortBy, len(out.Groups), out.Filtered.Rows, out.Filtered.Revenue, out.Concentration.Band, hit)
	return mcp.NewToolResultStructured(out, summary), nil
}

func (h *handlers) discountReport(_ context.Context, _ mcp.CallToolRequest, in DiscountReportInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	d, errRes := h.dataset(in.DatasetID)
	if errRes != nil {
		return errRes, nil
	}
	spec, err := in.Spec()
	if err != nil {
		return mcperr.Wrapf(mcperr.Validation, "%v", err), nil
	}
	top := in.Top
	if top <= 0 {
		top = defaultTopDiscounts
	}

	rows := h.filtered(d, spec)
	hist := sales.DiscountHistogram(rows, in.Bins)
	if hist == nil {
		hist = []sales.Bin{}
	}
	out := DiscountReportOutput{
		DatasetID:    d.ID,
		Filter:       spec.Key(),
		Rows:         len(rows),
		TopDiscounts: sales.TopDiscounts(rows, top),
		Histogram:    hist,
	}
	if !h.fits(out) {
		return mcperr.Wrapf(mcperr.PayloadTooLarge, "discount report with top=%d exceeds %d bytes", top, h.Limits.MaxPayloadBytes), nil
	}
	summary := fmt.Sprintf("rows=%d top=%d bins=%d", out.Rows, len(out.TopDiscounts), len(out.Histogram))
	return mcp.NewToolResultStructured(out, summary), nil
}

// filtered returns the rows of d matching spec, memoized per content and filter.
func (h *handlers) filtered(d *datasets.Dataset, spec sales.FilterSpec) []sales.CanonicalRow {
	rows, hit, _ := h.pages.GetOrCompute(datasets.Key(d.Fingerprint, "rows|"+spec.Key()), func() ([]sales.CanonicalRow, error) {
		return sales.Filter(d.Data.Rows, spec.Predicates()...), nil
	})
	h.Metrics.CacheLookup(hit)
	return rows
}
