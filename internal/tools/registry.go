// Package tools holds the per-agent tool registries the model may call
// during a completion loop.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/barbarosson/advisory/internal/llm"
)

// Handler executes one tool call on behalf of a tenant.
type Handler func(ctx context.Context, tenantID string, args json.RawMessage) (any, error)

// Definition is one entry in an agent's tool table.
type Definition struct {
	Name        string
	Description string
	// Parameters is the JSON schema advertised to the model.
	Parameters map[string]any
	// Write marks tools that mutate state; they pass through the policy
	// engine before executing.
	Write   bool
	Handler Handler
}

// Registry is an immutable tool table built once at startup. There is no
// way to add or replace tools after construction.
type Registry struct {
	defs   []Definition
	byName map[string]*Definition
	specs  []llm.Tool
}

// NewRegistry builds a registry from a fixed set of definitions.
// Duplicate or unnamed tools are construction errors.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		defs:   defs,
		byName: make(map[string]*Definition, len(defs)),
	}
	for i := range defs {
		d := &defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if d.Handler == nil {
			return nil, fmt.Errorf("tool %s has no handler", d.Name)
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("duplicate tool %s", d.Name)
		}
		r.byName[d.Name] = d
		r.specs = append(r.specs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return r, nil
}

// MustNewRegistry builds a registry or panics. Tool tables are static
// configuration, so a bad table is a programming error.
func MustNewRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Specs returns the tool definitions advertised with every model call.
func (r *Registry) Specs() []llm.Tool {
	return r.specs
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Execute runs one tool call and always returns a JSON payload. Handler
// failures and unknown names are serialized as {"error": message} so the
// model can react in text instead of the request failing.
func (r *Registry) Execute(ctx context.Context, tenantID, name string, args json.RawMessage) json.RawMessage {
	d, ok := r.byName[name]
	if !ok {
		return errorPayload(fmt.Sprintf("unknown function %q", name))
	}

	result, err := d.Handler(ctx, tenantID, args)
	if err != nil {
		return errorPayload(err.Error())
	}

	out, err := json.Marshal(result)
	if err != nil {
		return errorPayload(fmt.Sprintf("failed to encode result: %v", err))
	}
	return out
}

func errorPayload(msg string) json.RawMessage {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return out
}
