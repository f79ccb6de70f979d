package registry

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/llms"
)

type entry struct {
	tool   mcp.Tool
	writes bool
}

// Registry records the tools exposed by the server and which of them write to
// the filesystem.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register records a read-only tool.
func (r *Registry) Register(tool mcp.Tool) { r.add(tool, false) }

// RegisterWriter records a tool that creates or replaces files.
func (r *Registry) RegisterWriter(tool mcp.Tool) { r.add(tool, true) }

func (r *Registry) add(tool mcp.Tool, writes bool) {
	r.mu.Lock()
	r.entries[tool.Name] = entry{tool: tool, writes: writes}
	r.mu.Unlock()
}

// Get returns a tool by name when present.
func (r *Registry) Get(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.tool, ok
}

// Writes reports whether the named tool was registered as a writer.
func (r *Registry) Writes(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name].writes
}

// Tools returns every registered definition ordered by name.
func (r *Registry) Tools(context.Context) ([]mcp.Tool, error) {
	r.mu.RLock()
	tools := make([]mcp.Tool, 0, len(r.entries))
	for _, e := range r.entries {
		tools = append(tools, e.tool)
	}
	r.mu.RUnlock()

	slices.SortFunc(tools, func(a, b mcp.Tool) int { return cmp.Compare(a.Name, b.Name) })
	return tools, nil
}

// ModelContextSize reports the context window of the named client model.
// Unknown names get the library's default window.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}
