package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vinodismyname/mcpsales/internal/datasets"
	"github.com/vinodismyname/mcpsales/internal/ingest"
	"github.com/vinodismyname/mcpsales/internal/runtime"
	"github.com/vinodismyname/mcpsales/internal/sales"
	"github.com/vinodismyname/mcpsales/internal/security"
	"github.com/vinodismyname/mcpsales/pkg/mcperr"
)

// toolError maps a boundary error onto a catalog code. Errors with no specific
// mapping are reported under fallback with their text.
func toolError(err error, fallback mcperr.Code) *mcp.CallToolResult {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return mcperr.New(mcperr.Timeout, "")
	case errors.Is(err, context.Canceled):
		return mcperr.New(mcperr.Timeout, "request canceled")
	case errors.Is(err, datasets.ErrHandleNotFound):
		return mcperr.New(mcperr.InvalidHandle, "")
	case errors.Is(err, runtime.ErrDatasetCapacity):
		return mcperr.New(mcperr.BusyResource, "open dataset limit reached")
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.New(mcperr.PermissionDenied, "path is outside the allowed directories")
	case errors.Is(err, security.ErrUnsupportedExtension), errors.Is(err, ingest.ErrUnsupportedFormat):
		return mcperr.New(mcperr.UnsupportedFormat, "")
	case errors.Is(err, security.ErrNotFound):
		return mcperr.New(fallback, "file or directory not found")
	case errors.Is(err, security.ErrExists):
		return mcperr.New(mcperr.ExportFailed, "file already exists; set overwrite to replace it")
	case errors.Is(err, ingest.ErrSheetNotFound):
		return mcperr.Wrapf(mcperr.InvalidSheet, "%s", strings.TrimPrefix(err.Error(), "ingest: "))
	case errors.Is(err, ingest.ErrTooLarge):
		return mcperr.Wrapf(mcperr.FileTooLarge, "%v", err)
	case errors.Is(err, ingest.ErrTooManyRows):
		return mcperr.Wrapf(mcperr.LimitExceeded, "%v", err)
	case errors.Is(err, ingest.ErrFetch):
		return mcperr.Wrapf(mcperr.FetchFailed, "%v", err)
	case errors.Is(err, ingest.ErrNoSource):
		return mcperr.New(mcperr.Validation, "path or url is required (no default source configured)")
	case errors.Is(err, sales.ErrInvalidGroupKey), errors.Is(err, sales.ErrInvalidSortMetric):
		return mcperr.Wrapf(mcperr.Validation, "%v", err)
	}
	return mcperr.Wrapf(fallback, "%v", err)
}
