package registry

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vinodismyname/mcpsales/config"
)

// ExportToolFilter hides file-writing tools from discovery unless exports are
// enabled with SALESDASH_ENABLE_EXPORTS.
type ExportToolFilter struct {
	allowExports bool
	reg          *Registry
}

// NewExportToolFilter builds a filter over the writers recorded in reg.
func NewExportToolFilter(src config.Sources, reg *Registry) *ExportToolFilter {
	return &ExportToolFilter{allowExports: src.ExportsEnabled, reg: reg}
}

// FilterTools implements server tool filtering semantics.
func (f *ExportToolFilter) FilterTools(_ context.Context, tools []mcp.Tool) []mcp.Tool {
	if f.allowExports {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if f.reg.Writes(t.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}
