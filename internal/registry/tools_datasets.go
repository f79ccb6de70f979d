package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/mcpsales/config"
	"github.com/vinodismyname/mcpsales/internal/datasets"
	"github.com/vinodismyname/mcpsales/internal/ingest"
	"github.com/vinodismyname/mcpsales/internal/runtime"
	"github.com/vinodismyname/mcpsales/internal/sales"
	"github.com/vinodismyname/mcpsales/internal/security"
	"github.com/vinodismyname/mcpsales/internal/telemetry"
	"github.com/vinodismyname/mcpsales/pkg/mcperr"
	"github.com/vinodismyname/mcpsales/pkg/validation"
)

const (
	maxWarnings     = 20
	maxOptionValues = 200
)

// Deps bundles the services the sales tools run against.
type Deps struct {
	Limits   runtime.Limits
	Sources  config.Sources
	Loader   *ingest.Loader
	Datasets *datasets.Manager
	Security *security.Manager
	Metrics  *telemetry.Metrics
	Logger   zerolog.Logger
}

type handlers struct {
	Deps
	reports *datasets.Cache[sales.Result]
	pages   *datasets.Cache[[]sales.CanonicalRow]
}

func newHandlers(d Deps) *handlers {
	return &handlers{
		Deps:    d,
		reports: datasets.NewCache[sales.Result](config.DefaultReportCacheTTL, config.DefaultReportCacheEntries, nil),
		pages:   datasets.NewCache[[]sales.CanonicalRow](config.DefaultReportCacheTTL, config.DefaultReportCacheEntries, nil),
	}
}

// RegisterSalesTools wires every sales tool onto the server and records its
// definition in reg.
func RegisterSalesTools(s *server.MCPServer, reg *Registry, deps Deps) {
	h := newHandlers(deps)

	load := mcp.NewTool(
		"load_dataset",
		mcp.WithDescription("Load a sales export (local .xlsx/.xlsm/.csv inside the allowed directories, or a public spreadsheet link) and optionally a SKU to unified-code mapping table. Columns are matched by known aliases; prices are parsed leniently; discount and discount_pct are derived. Returns a dataset handle plus detected columns and warnings. With no arguments the server's configured default sources are used. Identical content returns the existing handle. Errors include PERMISSION_DENIED, UNSUPPORTED_FORMAT, FILE_TOO_LARGE, FETCH_FAILED, INVALID_SHEET, and BUSY_RESOURCE."),
		mcp.WithInputSchema[LoadDatasetInput](),
		mcp.WithOutputSchema[LoadDatasetOutput](),
	)
	s.AddTool(load, mcp.NewTypedToolHandler(h.loadDataset))
	reg.Register(load)

	closeTool := mcp.NewTool(
		"close_dataset",
		mcp.WithDescription("Release a dataset handle and its capacity slot."),
		mcp.WithInputSchema[DatasetInput](),
		mcp.WithOutputSchema[CloseDatasetOutput](),
	)
	s.AddTool(closeTool, mcp.NewTypedToolHandler(h.closeDataset))
	reg.Register(closeTool)

	describe := mcp.NewTool(
		"describe_dataset",
		mcp.WithDescription("Summarize a loaded dataset without returning rows: resolved columns, missing fields, overall totals, and filter options (SKUs, countries, order date span). Use it to choose filters before sales_report or list_rows."),
		mcp.WithInputSchema[DatasetInput](),
		mcp.WithOutputSchema[DescribeDatasetOutput](),
	)
	s.AddTool(describe, mcp.NewTypedToolHandler(h.describeDataset))
	reg.Register(describe)

	report := mcp.NewTool(
		"sales_report",
		mcp.WithDescription("Filter rows (sku, country, inclusive date range, minimum invoice price), group them by sku, unified_code, fulfillment_channel, or day, and return orders, revenue, mean price, and mean discount per group sorted descending by the chosen metric. Each group is labeled discount-dependent (mean discount above 25% with at least 5 orders), low-data (under 5 orders and under 500 revenue), or stable/good. Also returns overall and filtered totals and revenue concentration (Top-N share, HHI, band). Results are memoized for five minutes."),
		mcp.WithInputSchema[SalesReportInput](),
		mcp.WithOutputSchema[SalesReportOutput](),
	)
	s.AddTool(report, mcp.NewTypedToolHandler(h.salesReport))
	reg.Register(report)

	discounts := mcp.NewTool(
		"discount_report",
		mcp.WithDescription("Return the filtered rows with the steepest discounts (rows with a base price, discount_pct descending) and an equal-width histogram of discount percentages."),
		mcp.WithInputSchema[DiscountReportInput](),
		mcp.WithOutputSchema[DiscountReportOutput](),
	)
	s.AddTool(discounts, mcp.NewTypedToolHandler(h.discountReport))
	reg.Register(discounts)

	rows := mcp.NewTool(
		"list_rows",
		mcp.WithDescription("Page through filtered canonical rows. Pass the returned nextCursor to continue; the cursor carries the dataset and filter so later calls may omit them. Pages shrink automatically to respect the payload limit."),
		mcp.WithInputSchema[ListRowsInput](),
		mcp.WithOutputSchema[ListRowsOutput](),
	)
	s.AddTool(rows, mcp.NewTypedToolHandler(h.listRows))
	reg.Register(rows)

	export := mcp.NewTool(
		"export_rows",
		mcp.WithDescription("Write the filtered canonical rows to a .csv or .xlsx file inside an allowed directory. Disabled unless SALESDASH_ENABLE_EXPORTS is set."),
		mcp.WithInputSchema[ExportRowsInput](),
		mcp.WithOutputSchema[ExportRowsOutput](),
	)
	s.AddTool(export, mcp.NewTypedToolHandler(h.exportRows))
	reg.RegisterWriter(export)
}

func (h *handlers) loadDataset(ctx context.Context, _ mcp.CallToolRequest, in LoadDatasetInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}

	salesSrc := ingest.Source{Path: strings.TrimSpace(in.Path), URL: strings.TrimSpace(in.URL), Sheet: in.Sheet}
	if salesSrc.IsZero() {
		salesSrc = ingest.Source{Path: h.Sources.DefaultFile, URL: h.Sources.SheetCSVURL, Sheet: in.Sheet}
	}
	mappingSrc := ingest.Source{Path: strings.TrimSpace(in.MappingPath), URL: strings.TrimSpace(in.MappingURL), Sheet: in.MappingSheet}
	if mappingSrc.IsZero() {
		mappingSrc.Path = h.Sources.MappingFile
	}

	loaded, mapping, err := h.Loader.LoadPair(ctx, salesSrc, mappingSrc)
	if err != nil {
		return toolError(err, mcperr.LoadFailed), nil
	}

	warnings := loaded.Warnings
	fingerprint := loaded.Fingerprint
	var mappingTable *sales.Table
	mappingOrigin := ""
	switch {
	case mapping != nil:
		fingerprint = combineFingerprints(fingerprint, mapping.Fingerprint)
		mappingTable = &mapping.Table
		mappingOrigin = mapping.Origin
	case !mappingSrc.IsZero():
		warnings = append(warnings, ingest.Warning{Message: "mapping source unavailable; continuing without it"})
	}

	if d, ok := h.Datasets.FindByFingerprint(fingerprint); ok {
		return h.loadResult(d, true), nil
	}

	n, applied := sales.Prepare(loaded.Table, mappingTable)
	if mapping != nil && !applied {
		warnings = append(warnings, ingest.Warning{Message: "mapping table lacks sku or unified code columns; continuing without it"})
	}
	d := &datasets.Dataset{
		Origin:         loaded.Origin,
		MappingOrigin:  mappingOrigin,
		Format:         loaded.Format,
		Fingerprint:    fingerprint,
		Data:           n,
		MappingApplied: applied,
		Warnings:       warnings,
	}
	if _, err := h.Datasets.Adopt(ctx, d); err != nil {
		return toolError(err, mcperr.LoadFailed), nil
	}
	h.Metrics.DatasetLoaded(string(d.Format), len(n.Rows))
	h.Logger.Info().
		Str("dataset_id", d.ID).
		Str("origin", d.Origin).
		Str("format", string(d.Format)).
		Int("rows", len(n.Rows)).
		Bool("mapping_applied", applied).
		Int("warnings", len(warnings)).
		Msg("dataset loaded")

	return h.loadResult(d, false), nil
}

func (h *handlers) loadResult(d *datasets.Dataset, reused bool) *mcp.CallToolResult {
	out := LoadDatasetOutput{
		DatasetID:       d.ID,
		Origin:          d.Origin,
		MappingOrigin:   d.MappingOrigin,
		Format:          string(d.Format),
		Rows:            len(d.Data.Rows),
		Columns:         d.Data.Names,
		MissingFields:   missingFields(d.Data.Columns),
		MappingApplied:  d.MappingApplied,
		UnmappedRows:    unmappedRows(d),
		Warnings:        warningText(d.Warnings),
		Reused:          reused,
		ExpiresAt:       d.ExpiresAt().UTC().Format(time.RFC3339),
		MaxPayloadBytes: h.Limits.MaxPayloadBytes,
		PageRowLimit:    h.Limits.PageRowLimit,
	}
	summary := fmt.Sprintf("dataset_id=%s rows=%d format=%s mapping_applied=%v reused=%v warnings=%d", out.DatasetID, out.Rows, out.Format, out.MappingApplied, out.Reused, len(d.Warnings))
	return mcp.NewToolResultStructured(out, summary)
}

func (h *handlers) closeDataset(ctx context.Context, _ mcp.CallToolRequest, in DatasetInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	if err := h.Datasets.CloseHandle(ctx, strings.TrimSpace(in.DatasetID)); err != nil {
		return toolError(err, mcperr.InvalidHandle), nil
	}
	h.Logger.Info().Str("dataset_id", in.DatasetID).Msg("dataset closed")
	return mcp.NewToolResultStructured(CloseDatasetOutput{Success: true}, "closed "+in.DatasetID), nil
}

func (h *handlers) describeDataset(_ context.Context, _ mcp.CallToolRequest, in DatasetInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	d, errRes := h.dataset(in.DatasetID)
	if errRes != nil {
		return errRes, nil
	}

	opts := sales.Options(d.Data.Rows)
	capped := false
	if len(opts.SKUs) > maxOptionValues {
		opts.SKUs = opts.SKUs[:maxOptionValues]
		capped = true
	}
	if len(opts.Countries) > maxOptionValues {
		opts.Countries = opts.Countries[:maxOptionValues]
		capped = true
	}
	out := DescribeDatasetOutput{
		DatasetID:      d.ID,
		Origin:         d.Origin,
		MappingOrigin:  d.MappingOrigin,
		Format:         string(d.Format),
		Columns:        d.Data.Names,
		MissingFields:  missingFields(d.Data.Columns),
		MappingApplied: d.MappingApplied,
		Summary:        sales.Summarize(d.Data.Rows),
		Options:        opts,
		OptionsCapped:  capped,
		LoadedAt:       d.LoadedAt.UTC().Format(time.RFC3339),
		ExpiresAt:      d.ExpiresAt().UTC().Format(time.RFC3339),
	}
	summary := fmt.Sprintf("rows=%d revenue=%.2f skus=%d columns=%d missing=%v", out.Summary.Rows, out.Summary.Revenue, out.Summary.DistinctSKUs, len(out.Columns), out.MissingFields)
	return mcp.NewToolResultStructured(out, summary), nil
}

// dataset resolves a handle, refreshing its idle TTL.
func (h *handlers) dataset(id string) (*datasets.Dataset, *mcp.CallToolResult) {
	d, ok := h.Datasets.Get(strings.TrimSpace(id))
	if !ok {
		return nil, toolError(datasets.ErrHandleNotFound, mcperr.InvalidHandle)
	}
	return d, nil
}

// fits reports whether v serializes within the payload limit.
func (h *handlers) fits(v any) bool {
	if h.Limits.MaxPayloadBytes <= 0 {
		return true
	}
	b, err := json.Marshal(v)
	return err == nil && len(b) <= h.Limits.MaxPayloadBytes
}

func missingFields(cm sales.ColumnMap) []sales.Field {
	var out []sales.Field
	for _, a := range sales.DefaultAliases {
		if !cm.Has(a.Field) {
			out = append(out, a.Field)
		}
	}
	return out
}

func unmappedRows(d *datasets.Dataset) int {
	if !d.MappingApplied {
		return 0
	}
	n := 0
	for i := range d.Data.Rows {
		if d.Data.Rows[i].UnifiedCode == nil {
			n++
		}
	}
	return n
}

func warningText(ws []ingest.Warning) []string {
	out := make([]string, 0, min(len(ws), maxWarnings+1))
	for i, w := range ws {
		if i == maxWarnings {
			out = append(out, fmt.Sprintf("... and %d more", len(ws)-maxWarnings))
			break
		}
		if w.Row > 0 {
			out = append(out, fmt.Sprintf("row %d: %s", w.Row, w.Message))
			continue
		}
		out = append(out, w.Message)
	}
	return out
}

func combineFingerprints(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
