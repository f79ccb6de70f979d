package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/mcpsales/pkg/pagination"
)

type probe struct {
	DatasetID string `json:"dataset_id" validate:"required"`
	Path      string `json:"path,omitempty" validate:"omitempty,source_ext"`
	Out       string `json:"out,omitempty" validate:"omitempty,export_ext"`
	DateFrom  string `json:"date_from,omitempty" validate:"omitempty,isodate"`
	GroupBy   string `json:"group_by,omitempty" validate:"omitempty,group_key"`
	SortBy    string `json:"sort_by,omitempty" validate:"omitempty,sort_metric"`
	Cursor    string `json:"cursor,omitempty" validate:"omitempty,cursor"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1,max=1000"`
}

func TestValidateStructAcceptsValid(t *testing.T) {
	tok, err := pagination.EncodeCursor(pagination.Cursor{Did: "ds", Fh: "ab", Ps: 10})
	require.NoError(t, err)
	require.Empty(t, ValidateStruct(probe{
		DatasetID: "ds",
		Path:      "/data/orders.CSV",
		Out:       "/data/out.xlsx",
		DateFrom:  "2024-02-29",
		GroupBy:   "fulfillment_channel",
		SortBy:    "avg_discount_pct",
		Cursor:    tok,
		Limit:     50,
	}))
}

func TestValidateStructMessages(t *testing.T) {
	cases := []struct {
		in   probe
		want string
	}{
		{probe{}, "VALIDATION: dataset_id is required"},
		{probe{DatasetID: "x", Path: "orders.txt"}, "VALIDATION: source must be a spreadsheet or CSV file (.xlsx, .xlsm, .csv)"},
		{probe{DatasetID: "x", Out: "out.xlsm"}, "VALIDATION: export path must end in .csv or .xlsx"},
		{probe{DatasetID: "x", DateFrom: "31/01/2024"}, "VALIDATION: date_from must be a date like 2024-01-31"},
		{probe{DatasetID: "x", GroupBy: "week"}, "VALIDATION: group_by must be one of sku, unified_code, fulfillment_channel, day"},
		{probe{DatasetID: "x", SortBy: "units"}, "VALIDATION: sort_by must be one of revenue, orders, avg_price, avg_discount_pct"},
		{probe{DatasetID: "x", Cursor: "!!!"}, "CURSOR_INVALID: failed to decode cursor; restart pagination from the first page"},
		{probe{DatasetID: "x", Limit: 5000}, "VALIDATION: limit must satisfy max=1000"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ValidateStruct(tc.in))
	}
}

func TestValidatorSingleton(t *testing.T) {
	require.Same(t, Validator(), Validator())
}
