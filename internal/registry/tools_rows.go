package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vinodismyname/mcpsales/internal/export"
	"github.com/vinodismyname/mcpsales/pkg/mcperr"
	"github.com/vinodismyname/mcpsales/pkg/pagination"
	"github.com/vinodismyname/mcpsales/pkg/validation"
)

func (h *handlers) listRows(_ context.Context, _ mcp.CallToolRequest, in ListRowsInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}

	id := in.DatasetID
	filter := in.FilterInput
	offset := 0
	limit := in.Limit
	if limit <= 0 {
		limit = h.Limits.PageRowLimit
	}
	var cur *pagination.Cursor
	if strings.TrimSpace(in.Cursor) != "" {
		c, err := pagination.DecodeCursor(in.Cursor)
		if err != nil {
			return mcperr.Wrapf(mcperr.CursorInvalid, "%v", err), nil
		}
		cur = c
		id = c.Did
		filter = FilterInput{SKU: c.Sk, Country: c.Ct, DateFrom: c.Df, DateTo: c.Dt, MinInvoicePrice: c.Mn}
		offset = c.Off
		limit = c.Ps
	}

	spec, err := filter.Spec()
	if err != nil {
		if cur != nil {
			return mcperr.Wrapf(mcperr.CursorInvalid, "%v", err), nil
		}
		return mcperr.Wrapf(mcperr.Validation, "%v", err), nil
	}
	fh := pagination.HashKey(spec.Key())
	if cur != nil && cur.Fh != fh {
		return mcperr.New(mcperr.CursorInvalid, "cursor filter does not match its parameters"), nil
	}

	d, errRes := h.dataset(id)
	if errRes != nil {
		return errRes, nil
	}
	rows := h.filtered(d, spec)
	total := len(rows)
	if offset > total {
		return mcperr.Wrapf(mcperr.CursorInvalid, "offset %d beyond %d rows", offset, total), nil
	}

	page := rows[offset:min(offset+limit, total)]
	out := ListRowsOutput{DatasetID: d.ID, Rows: page}
	// Halve the page until it serializes within the payload limit.
	for len(out.Rows) > 1 && !h.fits(out) {
		out.Rows = out.Rows[:len(out.Rows)/2]
	}
	if len(out.Rows) == 1 && !h.fits(out) {
		return mcperr.Wrapf(mcperr.PayloadTooLarge, "a single row at offset %d exceeds %d bytes", offset, h.Limits.MaxPayloadBytes), nil
	}

	next := pagination.NextOffset(offset, len(out.Rows))
	out.Meta = PageMeta{Total: total, Offset: offset, Returned: len(out.Rows), Truncated: next < total}
	if out.Meta.Truncated {
		tok, err := pagination.EncodeCursor(pagination.Cursor{
			Did: d.ID,
			Fh:  fh,
			Off: next,
			Ps:  limit,
			Sk:  spec.SKU,
			Ct:  spec.Country,
			Df:  strings.TrimSpace(filter.DateFrom),
			Dt:  strings.TrimSpace(filter.DateTo),
			Mn:  spec.MinInvoicePrice,
		})
		if err != nil {
			return mcperr.Wrapf(mcperr.CursorBuildFailed, "%v", err), nil
		}
		out.Meta.NextCursor = tok
	}

	summary := fmt.Sprintf("offset=%d returned=%d total=%d truncated=%v", offset, out.Meta.Returned, total, out.Meta.Truncated)
	return mcp.NewToolResultStructured(out, summary), nil
}

func (h *handlers) exportRows(_ context.Context, _ mcp.CallToolRequest, in ExportRowsInput) (*mcp.CallToolResult, error) {
	if !h.Sources.ExportsEnabled {
		return mcperr.New(mcperr.PermissionDenied, "exports are disabled; set SALESDASH_ENABLE_EXPORTS=true"), nil
	}
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
	target, err := h.Security.ValidateWritePath(in.Path, in.Overwrite)
	if err != nil {
		return toolError(err, mcperr.ExportFailed), nil
	}

	rows := h.filtered(d, spec)
	n, err := export.Save(target, rows)
	if err != nil {
		h.Logger.Error().Err(err).Str("path", target).Msg("export failed")
		return toolError(err, mcperr.ExportFailed), nil
	}
	h.Logger.Info().Str("dataset_id", d.ID).Str("path", target).Int("rows", len(rows)).Int64("bytes", n).Msg("rows exported")

	out := ExportRowsOutput{Path: target, Rows: len(rows), Bytes: n}
	return mcp.NewToolResultStructured(out, fmt.Sprintf("wrote %d rows to %s", out.Rows, out.Path)), nil
}
