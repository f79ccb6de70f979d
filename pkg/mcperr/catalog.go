package mcperr

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code is the stable prefix of every tool error message.
type Code string

const (
	Validation        Code = "VALIDATION"
	InvalidHandle     Code = "INVALID_HANDLE"
	InvalidSheet      Code = "INVALID_SHEET"
	CursorInvalid     Code = "CURSOR_INVALID"
	CursorBuildFailed Code = "CURSOR_BUILD_FAILED"

	BusyResource    Code = "BUSY_RESOURCE"
	Timeout         Code = "TIMEOUT"
	LimitExceeded   Code = "LIMIT_EXCEEDED"
	PayloadTooLarge Code = "PAYLOAD_TOO_LARGE"
	FileTooLarge    Code = "FILE_TOO_LARGE"

	LoadFailed   Code = "LOAD_FAILED"
	FetchFailed  Code = "FETCH_FAILED"
	ExportFailed Code = "EXPORT_FAILED"

	AnalysisFailed Code = "ANALYSIS_FAILED"

	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
)

type guidance struct {
	fallback string
	retry    bool
	next     []string
}

var catalog = map[Code]guidance{
	Validation:        {"invalid inputs", true, []string{"Correct the inputs per schema and retry"}},
	InvalidHandle:     {"dataset handle not found or expired", true, []string{"Reload the source with load_dataset and retry"}},
	InvalidSheet:      {"sheet not found", true, []string{"Omit sheet to read the first sheet", "Check case and spacing"}},
	CursorInvalid:     {"cursor is invalid for current context", true, []string{"Restart pagination from the first page"}},
	CursorBuildFailed: {"failed to encode next page cursor", true, []string{"Retry with a smaller limit"}},

	BusyResource:    {"server is busy", true, []string{"Retry after a short delay", "Close unused datasets with close_dataset"}},
	Timeout:         {"operation exceeded configured time limit", true, []string{"Narrow filters or lower top_n"}},
	LimitExceeded:   {"operation exceeded configured limits", false, []string{"Split the source into smaller files"}},
	PayloadTooLarge: {"response exceeds configured size", true, []string{"Lower limit or top_n"}},
	FileTooLarge:    {"file exceeds configured size", false, []string{"Use a smaller export or raise SALESDASH_MAX_FILE_BYTES"}},

	LoadFailed:   {"failed to load sales source", true, []string{"Verify path, permissions, and format"}},
	FetchFailed:  {"failed to fetch remote sheet", true, []string{"Check that the sheet is published as CSV", "Retry after a short delay"}},
	ExportFailed: {"failed to write export", false, []string{"Choose a path inside an allowed directory", "Set overwrite to replace an existing file"}},

	AnalysisFailed: {"analysis failed", true, []string{"Inspect columns with describe_dataset"}},

	UnsupportedFormat: {"unsupported source format", false, []string{"Convert to .xlsx or .csv and retry"}},
	PermissionDenied:  {"access denied", false, []string{"Choose a path inside SALESDASH_ALLOWED_DIRS"}},
}

// Known reports whether c has catalog guidance.
func (c Code) Known() bool {
	_, ok := catalog[c]
	return ok
}

// Retryable reports whether the same call may succeed later without changes
// to the source.
func (c Code) Retryable() bool { return catalog[c].retry }

// NextSteps lists remediation hints for c.
func (c Code) NextSteps() []string { return catalog[c].next }

// Format renders "CODE: detail | nextSteps: a; b". An empty detail falls back
// to the catalog message. Unknown codes get no guidance tail.
func Format(c Code, detail string) string {
	detail = strings.TrimSpace(detail)
	g, ok := catalog[c]
	if detail == "" {
		detail = g.fallback
	}
	var b strings.Builder
	b.WriteString(string(c))
	if detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	if ok && len(g.next) > 0 {
		b.WriteString(" | nextSteps: ")
		b.WriteString(strings.Join(g.next, "; "))
	}
	return b.String()
}

// Parse splits "CODE: detail". Text without a code prefix is treated as a
// validation detail.
func Parse(text string) (Code, string) {
	text = strings.TrimSpace(text)
	head, tail, found := strings.Cut(text, ":")
	head = strings.TrimSpace(head)
	if text == "" || head == "" || strings.ContainsAny(head, " \t") {
		return Validation, text
	}
	if !found {
		return Code(head), ""
	}
	return Code(head), strings.TrimSpace(tail)
}

// FromText turns a "CODE: detail" message, such as a validator error, into a
// tool error result.
func FromText(text string) *mcp.CallToolResult {
	return New(Parse(text))
}

// New returns a tool error result for c.
func New(c Code, detail string) *mcp.CallToolResult {
	return mcp.NewToolResultError(Format(c, detail))
}

// Wrapf is New with a formatted detail.
func Wrapf(c Code, format string, args ...any) *mcp.CallToolResult {
	return New(c, fmt.Sprintf(format, args...))
}
