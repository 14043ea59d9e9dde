// Package tools implements the Tool capability (spec.md §4.2, §6): concrete
// collaborators the Loop calls but never instantiates. resolve_tools_for_config
// (an external composition-root concern, not part of this package) maps
// Config.Sources entries to a Registry built from these concrete tools.
package tools

import (
	"context"
	"fmt"

	"github.com/aperturelabs/deepquery/internal/research"
)

// Tool is the capability interface spec.md §4.2 describes: given a query
// and a source-target tag, produce SearchResults. Execute may fail with a
// transient error or return an empty slice; both are observable and
// non-fatal to the parent phase (the Loop wraps every call in a per-query
// error boundary, see internal/loop).
type Tool interface {
	Name() string
	Execute(ctx context.Context, query, sourceTarget string, limit int) ([]research.SearchResult, error)
}

// Registry holds the Tools a Loop was constructed with. Adapted from the
// teacher's map-backed internal/tools/registry.go, with an added ordered
// name slice so unmatched source_target dispatch is deterministic by
// construction order (spec.md §4.6 "Key policies and tie-breaks").
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewEmptyRegistry creates a registry with no tools registered.
func NewEmptyRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewRegistry creates a registry pre-populated with the default web search
// and fetch tools, matching the teacher's internal/tools.NewRegistry.
func NewRegistry(braveAPIKey string) *Registry {
	r := NewEmptyRegistry()
	r.Register(NewSearchTool(braveAPIKey))
	r.Register(NewFetchTool())
	return r
}

// Register adds a tool, preserving first-registration order for dispatch
// tie-breaking.
func (r *Registry) Register(tool Tool) {
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns a tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// First returns the first-registered tool, the fallback target when a
// SubQuery's source_target matches no registered Tool.Name (spec.md §4.6).
func (r *Registry) First() (Tool, bool) {
	if len(r.order) == 0 {
		return nil, false
	}
	return r.tools[r.order[0]], true
}

// Resolve picks the Tool whose Name matches sourceTarget exactly, falling
// back to First() when nothing matches.
func (r *Registry) Resolve(sourceTarget string) (Tool, error) {
	if t, ok := r.tools[sourceTarget]; ok {
		return t, nil
	}
	if t, ok := r.First(); ok {
		return t, nil
	}
	return nil, fmt.Errorf("tools: no tools registered")
}

// ToolNames returns tool names in registration order.
func (r *Registry) ToolNames() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
