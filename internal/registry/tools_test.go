package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/mcpsales/config"
	"github.com/vinodismyname/mcpsales/internal/datasets"
	"github.com/vinodismyname/mcpsales/internal/export"
	"github.com/vinodismyname/mcpsales/internal/ingest"
	"github.com/vinodismyname/mcpsales/internal/runtime"
	"github.com/vinodismyname/mcpsales/internal/sales"
	"github.com/vinodismyname/mcpsales/internal/security"
	"github.com/vinodismyname/mcpsales/pkg/pagination"
	"github.com/xuri/excelize/v2"
)

const salesCSV = `Partner_SKU,Country_Code,Ordered Date,Invoice Price,Base Price,Fulfillment,Qty
A,SA,2024-01-01,90,100,FBN,1
A,SA,2024-01-02,80,100,FBN,1
A,AE,2024-01-03,70,100,fbp,1
A,SA,2024-01-04,60,100,FBN,1
A,SA,2024-01-05,50,100,FBN,1
A,SA,2024-01-06,40,100,FBN,1
B,SA,2024-01-02,100,100,retail,2
C,EG,2024-01-03,300,300,FBN,1
`

const mappingCSV = `sku,unified_code
A,U1
B,U1
`

type fixture struct {
	h       *handlers
	root    string
	sales   string
	mapping string
}

func newFixture(t *testing.T, exports bool) fixture {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	salesPath := filepath.Join(root, "orders.csv")
	mappingPath := filepath.Join(root, "mapping.csv")
	require.NoError(t, os.WriteFile(salesPath, []byte(salesCSV), 0o644))
	require.NoError(t, os.WriteFile(mappingPath, []byte(mappingCSV), 0o644))

	sec, err := security.NewManager([]string{root}, nil)
	require.NoError(t, err)
	limits := runtime.NewLimits(4, 4)
	ctrl := runtime.NewController(limits)
	logger := zerolog.Nop()
	mgr := datasets.NewManager(time.Minute, time.Minute, ctrl, nil)
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })

	h := newHandlers(Deps{
		Limits:   limits,
		Sources:  config.Sources{AllowedDirs: []string{root}, ExportsEnabled: exports},
		Loader:   ingest.NewLoader(sec, limits, logger),
		Datasets: mgr,
		Security: sec,
		Logger:   logger,
	})
	return fixture{h: h, root: root, sales: salesPath, mapping: mappingPath}
}

func firstText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func structured[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError, firstText(t, res))
	out, ok := res.StructuredContent.(T)
	require.True(t, ok, "unexpected structured content %T", res.StructuredContent)
	return out
}

func (f fixture) load(t *testing.T) LoadDatasetOutput {
	t.Helper()
	res, err := f.h.loadDataset(context.Background(), mcp.CallToolRequest{}, LoadDatasetInput{Path: f.sales, MappingPath: f.mapping})
	require.NoError(t, err)
	return structured[LoadDatasetOutput](t, res)
}

func TestLoadDataset(t *testing.T) {
	f := newFixture(t, false)
	out := f.load(t)
	require.NotEmpty(t, out.DatasetID)
	require.Equal(t, 8, out.Rows)
	require.Equal(t, "csv", out.Format)
	require.True(t, out.MappingApplied)
	require.Equal(t, 1, out.UnmappedRows)
	require.False(t, out.Reused)
	require.Equal(t, "Partner_SKU", out.Columns[sales.FieldSKU])
	require.Contains(t, out.MissingFields, sales.FieldStatus)
	require.NotContains(t, out.MissingFields, sales.FieldQuantity)

	again := f.load(t)
	require.True(t, again.Reused)
	require.Equal(t, out.DatasetID, again.DatasetID)
	require.Equal(t, 1, f.h.Datasets.Count())
}

func TestLoadDatasetSheetsAreDistinct(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	wb := excelize.NewFile()
	header := []any{"Partner_SKU", "Invoice Price", "Base Price"}
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &header))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]any{"A", 90, 100}))
	_, err := wb.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow("Other", "A1", &header))
	require.NoError(t, wb.SetSheetRow("Other", "A2", &[]any{"B", 50, 100}))
	require.NoError(t, wb.SetSheetRow("Other", "A3", &[]any{"C", 70, 70}))
	path := filepath.Join(f.root, "orders.xlsx")
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	loadSheet := func(sheet string) LoadDatasetOutput {
		res, err := f.h.loadDataset(ctx, mcp.CallToolRequest{}, LoadDatasetInput{Path: path, Sheet: sheet})
		require.NoError(t, err)
		return structured[LoadDatasetOutput](t, res)
	}

	first := loadSheet("Sheet1")
	other := loadSheet("Other")
	require.NotEqual(t, first.DatasetID, other.DatasetID)
	require.False(t, other.Reused)
	require.Equal(t, 1, first.Rows)
	require.Equal(t, 2, other.Rows)

	again := loadSheet("Other")
	require.True(t, again.Reused)
	require.Equal(t, other.DatasetID, again.DatasetID)

	for id, want := range map[string]int{first.DatasetID: 1, other.DatasetID: 2} {
		res, err := f.h.salesReport(ctx, mcp.CallToolRequest{}, SalesReportInput{DatasetID: id})
		require.NoError(t, err)
		require.Equal(t, want, structured[SalesReportOutput](t, res).Overall.Rows)
	}
}

func TestLoadDatasetErrors(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	outside, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	p := filepath.Join(outside, "orders.csv")
	require.NoError(t, os.WriteFile(p, []byte(salesCSV), 0o644))
	res, err := f.h.loadDataset(ctx, mcp.CallToolRequest{}, LoadDatasetInput{Path: p})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.True(t, strings.HasPrefix(firstText(t, res), "PERMISSION_DENIED"))

	res, err = f.h.loadDataset(ctx, mcp.CallToolRequest{}, LoadDatasetInput{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "VALIDATION"))

	res, err = f.h.loadDataset(ctx, mcp.CallToolRequest{}, LoadDatasetInput{Path: filepath.Join(f.root, "orders.json")})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "VALIDATION"))
}

func TestLoadDatasetMissingMappingDegrades(t *testing.T) {
	f := newFixture(t, false)
	res, err := f.h.loadDataset(context.Background(), mcp.CallToolRequest{}, LoadDatasetInput{Path: f.sales, MappingPath: filepath.Join(f.root, "absent.csv")})
	require.NoError(t, err)
	out := structured[LoadDatasetOutput](t, res)
	require.False(t, out.MappingApplied)
	require.Contains(t, out.Warnings, "mapping source unavailable; continuing without it")
}

func TestSalesReport(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t).DatasetID
	ctx := context.Background()

	res, err := f.h.salesReport(ctx, mcp.CallToolRequest{}, SalesReportInput{DatasetID: id})
	require.NoError(t, err)
	out := structured[SalesReportOutput](t, res)
	require.Equal(t, sales.GroupSKU, out.GroupBy)
	require.Equal(t, sales.SortRevenue, out.SortBy)
	require.False(t, out.Cached)
	require.Len(t, out.Groups, 3)
	require.Equal(t, []string{"A", "C", "B"}, []string{out.Groups[0].Key, out.Groups[1].Key, out.Groups[2].Key})
	require.Equal(t, 6, out.Groups[0].Orders)
	require.InDelta(t, 390, out.Groups[0].Revenue, 1e-9)
	require.Equal(t, sales.LabelDiscountDependent, out.Recommendations[0].Label)
	require.Equal(t, sales.LabelLowData, out.Recommendations[1].Label)
	require.Equal(t, 8, out.Overall.Rows)
	require.Equal(t, 1, out.UnmappedRows)

	res, err = f.h.salesReport(ctx, mcp.CallToolRequest{}, SalesReportInput{DatasetID: id})
	require.NoError(t, err)
	require.True(t, structured[SalesReportOutput](t, res).Cached)

	res, err = f.h.salesReport(ctx, mcp.CallToolRequest{}, SalesReportInput{DatasetID: id, GroupBy: "unified_code", TopN: 1})
	require.NoError(t, err)
	byCode := structured[SalesReportOutput](t, res)
	require.Len(t, byCode.Groups, 1)
	require.Equal(t, "U1", byCode.Groups[0].Key)
	require.InDelta(t, 490, byCode.Groups[0].Revenue, 1e-9)

	res, err = f.h.salesReport(ctx, mcp.CallToolRequest{}, SalesReportInput{
		DatasetID:   id,
		FilterInput: FilterInput{Country: "SA", DateTo: "2024-01-03"},
	})
	require.NoError(t, err)
	filtered := structured[SalesReportOutput](t, res)
	require.Equal(t, 3, filtered.Filtered.Rows)
	require.Equal(t, 8, filtered.Overall.Rows)
}

func TestSalesReportErrors(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t).DatasetID
	ctx := context.Background()

	res, err := f.h.salesReport(ctx, mcp.CallToolRequest{}, SalesReportInput{DatasetID: "nope"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "INVALID_HANDLE"))

	res, err = f.h.salesReport(ctx, mcp.CallToolRequest{}, SalesReportInput{DatasetID: id, GroupBy: "week"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "VALIDATION: group_by"))

	res, err = f.h.salesReport(ctx, mcp.CallToolRequest{}, SalesReportInput{DatasetID: id, FilterInput: FilterInput{DateFrom: "01/02/2024"}})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "VALIDATION: date_from"))
}

func TestDescribeAndCloseDataset(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t).DatasetID
	ctx := context.Background()

	res, err := f.h.describeDataset(ctx, mcp.CallToolRequest{}, DatasetInput{DatasetID: id})
	require.NoError(t, err)
	out := structured[DescribeDatasetOutput](t, res)
	require.Equal(t, []string{sales.All, "A", "B", "C"}, out.Options.SKUs)
	require.Equal(t, []string{sales.All, "AE", "EG", "SA"}, out.Options.Countries)
	require.Equal(t, 8, out.Summary.Rows)
	require.Equal(t, 3, out.Summary.DistinctSKUs)
	require.False(t, out.OptionsCapped)

	res, err = f.h.closeDataset(ctx, mcp.CallToolRequest{}, DatasetInput{DatasetID: id})
	require.NoError(t, err)
	require.True(t, structured[CloseDatasetOutput](t, res).Success)

	res, err = f.h.closeDataset(ctx, mcp.CallToolRequest{}, DatasetInput{DatasetID: id})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "INVALID_HANDLE"))
}

func TestDiscountReport(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t).DatasetID

	res, err := f.h.discountReport(context.Background(), mcp.CallToolRequest{}, DiscountReportInput{DatasetID: id, Top: 2})
	require.NoError(t, err)
	out := structured[DiscountReportOutput](t, res)
	require.Equal(t, 8, out.Rows)
	require.Len(t, out.TopDiscounts, 2)
	require.InDelta(t, 60, *out.TopDiscounts[0].DiscountPct, 1e-9)
	require.InDelta(t, 50, *out.TopDiscounts[1].DiscountPct, 1e-9)
	require.Len(t, out.Histogram, sales.DefaultHistogramBins)
	total := 0
	for _, b := range out.Histogram {
		total += b.Count
	}
	require.Equal(t, 8, total)

	res, err = f.h.discountReport(context.Background(), mcp.CallToolRequest{}, DiscountReportInput{DatasetID: id, FilterInput: FilterInput{SKU: "missing"}})
	require.NoError(t, err)
	empty := structured[DiscountReportOutput](t, res)
	require.Zero(t, empty.Rows)
	require.Empty(t, empty.Histogram)
	require.NotNil(t, empty.Histogram)
}

func TestListRowsPagination(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t).DatasetID
	ctx := context.Background()

	res, err := f.h.listRows(ctx, mcp.CallToolRequest{}, ListRowsInput{DatasetID: id, Limit: 3})
	require.NoError(t, err)
	page := structured[ListRowsOutput](t, res)
	require.Len(t, page.Rows, 3)
	require.Equal(t, 8, page.Meta.Total)
	require.True(t, page.Meta.Truncated)
	require.NotEmpty(t, page.Meta.NextCursor)

	var seen []sales.CanonicalRow
	seen = append(seen, page.Rows...)
	for page.Meta.NextCursor != "" {
		res, err = f.h.listRows(ctx, mcp.CallToolRequest{}, ListRowsInput{Cursor: page.Meta.NextCursor})
		require.NoError(t, err)
		page = structured[ListRowsOutput](t, res)
		seen = append(seen, page.Rows...)
	}
	require.Len(t, seen, 8)
	require.Equal(t, 6, page.Meta.Offset)
	require.False(t, page.Meta.Truncated)

	res, err = f.h.listRows(ctx, mcp.CallToolRequest{}, ListRowsInput{DatasetID: id, Limit: 2, FilterInput: FilterInput{SKU: "A", MinInvoicePrice: 60}})
	require.NoError(t, err)
	page = structured[ListRowsOutput](t, res)
	require.Equal(t, 4, page.Meta.Total)
	res, err = f.h.listRows(ctx, mcp.CallToolRequest{}, ListRowsInput{Cursor: page.Meta.NextCursor})
	require.NoError(t, err)
	page = structured[ListRowsOutput](t, res)
	require.Len(t, page.Rows, 2)
	for _, r := range page.Rows {
		require.Equal(t, "A", r.SKU)
		require.GreaterOrEqual(t, *r.InvoicePrice, 60.0)
	}
}

func TestListRowsCursorErrors(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t).DatasetID
	ctx := context.Background()

	tampered, err := pagination.EncodeCursor(pagination.Cursor{Did: id, Fh: "0000000000000000", Off: 0, Ps: 2, Sk: "A"})
	require.NoError(t, err)
	res, err := f.h.listRows(ctx, mcp.CallToolRequest{}, ListRowsInput{Cursor: tampered})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "CURSOR_INVALID"))

	spec, err := FilterInput{}.Spec()
	require.NoError(t, err)
	beyond, err := pagination.EncodeCursor(pagination.Cursor{Did: id, Fh: pagination.HashKey(spec.Key()), Off: 99, Ps: 2})
	require.NoError(t, err)
	res, err = f.h.listRows(ctx, mcp.CallToolRequest{}, ListRowsInput{Cursor: beyond})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "CURSOR_INVALID"))

	res, err = f.h.listRows(ctx, mcp.CallToolRequest{}, ListRowsInput{})
	require.NoError(t, err)
	require.Equal(t, "VALIDATION: dataset_id is required (or supply cursor)", strings.SplitN(firstText(t, res), " | ", 2)[0])
}

func TestListRowsRespectsPayloadLimit(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t).DatasetID
	f.h.Limits.MaxPayloadBytes = 1200

	res, err := f.h.listRows(context.Background(), mcp.CallToolRequest{}, ListRowsInput{DatasetID: id, Limit: 8})
	require.NoError(t, err)
	page := structured[ListRowsOutput](t, res)
	require.Less(t, len(page.Rows), 8)
	require.True(t, page.Meta.Truncated)
	require.NotEmpty(t, page.Meta.NextCursor)
}

func TestListRowsSingleRowOverPayloadLimit(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t).DatasetID
	f.h.Limits.MaxPayloadBytes = 64

	res, err := f.h.listRows(context.Background(), mcp.CallToolRequest{}, ListRowsInput{DatasetID: id, Limit: 8})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.True(t, strings.HasPrefix(firstText(t, res), "PAYLOAD_TOO_LARGE"))
}

func TestExportRows(t *testing.T) {
	f := newFixture(t, true)
	id := f.load(t).DatasetID
	ctx := context.Background()
	target := filepath.Join(f.root, "export.csv")

	res, err := f.h.exportRows(ctx, mcp.CallToolRequest{}, ExportRowsInput{DatasetID: id, Path: target, FilterInput: FilterInput{Country: "SA"}})
	require.NoError(t, err)
	out := structured[ExportRowsOutput](t, res)
	require.Equal(t, 6, out.Rows)
	require.Positive(t, out.Bytes)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	tbl, _, err := ingest.ParseCSV(data)
	require.NoError(t, err)
	rows, err := export.Decode(tbl)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	for _, r := range rows {
		require.Equal(t, "SA", *r.Country)
	}

	res, err = f.h.exportRows(ctx, mcp.CallToolRequest{}, ExportRowsInput{DatasetID: id, Path: target})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "EXPORT_FAILED"))

	res, err = f.h.exportRows(ctx, mcp.CallToolRequest{}, ExportRowsInput{DatasetID: id, Path: target, Overwrite: true})
	require.NoError(t, err)
	require.Equal(t, 8, structured[ExportRowsOutput](t, res).Rows)
}

func TestExportRowsDisabled(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t).DatasetID
	res, err := f.h.exportRows(context.Background(), mcp.CallToolRequest{}, ExportRowsInput{DatasetID: id, Path: filepath.Join(f.root, "x.csv")})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(firstText(t, res), "PERMISSION_DENIED"))
	_, statErr := os.Stat(filepath.Join(f.root, "x.csv"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRegisterSalesTools(t *testing.T) {
	f := newFixture(t, false)
	srv := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(true))
	reg := New()
	RegisterSalesTools(srv, reg, f.h.Deps)

	tools, err := reg.Tools(context.Background())
	require.NoError(t, err)
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	require.Equal(t, []string{"close_dataset", "describe_dataset", "discount_report", "export_rows", "list_rows", "load_dataset", "sales_report"}, names)

	visible := NewExportToolFilter(config.Sources{}, reg).FilterTools(context.Background(), tools)
	require.Len(t, visible, len(tools)-1)
	for _, tool := range visible {
		require.NotEqual(t, "export_rows", tool.Name)
	}
	require.Len(t, NewExportToolFilter(config.Sources{ExportsEnabled: true}, reg).FilterTools(context.Background(), tools), len(tools))

	_, ok := reg.Get("sales_report")
	require.True(t, ok)
	require.Positive(t, reg.ModelContextSize("gpt-4"))
}
