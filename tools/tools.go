// Package tools defines the capabilities the model may invoke during an
// orchestration run, and the registry that describes them to the provider.
package tools

import (
	"context"
	"encoding/json"

	"github.com/skillpath/agent/llm"
)

// Result is the outcome of one tool invocation. A failed execution is data,
// not an error: the model is asked to reason over the failure text.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Format renders the result for the conversation transcript.
func (r Result) Format() string {
	encoded, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"unencodable tool result"}`
	}
	return string(encoded)
}

type Tool interface {
	Name() string
	Description() string
	// Parameters describes the argument schema as a JSON schema object.
	Parameters() map[string]any
	// Execute parses rawArgs at the boundary and runs the tool. Malformed
	// arguments degrade to the tool's empty argument variant.
	Execute(ctx context.Context, rawArgs string) Result
}

// Registry is an ordered, named collection of tools.
type Registry struct {
	ordered []Tool
	byName  map[string]Tool
}

func NewRegistry(available ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(available))}
	for _, tool := range available {
		if _, exists := r.byName[tool.Name()]; exists {
			continue
		}
		r.ordered = append(r.ordered, tool)
		r.byName[tool.Name()] = tool
	}
	return r
}

func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.ordered))
	for _, tool := range r.ordered {
		specs = append(specs, llm.ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return specs
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.byName[name]
	return tool, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, tool := range r.ordered {
		names = append(names, tool.Name())
	}
	return names
}

// Subset returns a registry restricted to the named tools, preserving order.
func (r *Registry) Subset(names ...string) *Registry {
	keep := make(map[string]struct{}, len(names))
	for _, name := range names {
		keep[name] = struct{}{}
	}

	subset := make([]Tool, 0, len(names))
	for _, tool := range r.ordered {
		if _, ok := keep[tool.Name()]; ok {
			subset = append(subset, tool)
		}
	}
	return NewRegistry(subset...)
}
