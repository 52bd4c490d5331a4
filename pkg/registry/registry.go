package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/aris/pkg/domain"
)

// ToolFunction defines the signature for a tool implementation.
// It receives a context and a map of arguments, and returns a result or error.
type ToolFunction func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs the definition shown to the generator with its implementation.
type Tool struct {
	Definition domain.ToolDefinition
	Fn         ToolFunction
}

type entry struct {
	tool   Tool
	params Params
}

// Registry is an immutable name to tool mapping.
type Registry struct {
	tools map[string]entry
	names []string
}

// New builds a registry. Names must be unique and parameter declarations
// must parse.
func New(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]entry, len(tools))}
	for _, t := range tools {
		name := t.Definition.Name
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if t.Fn == nil {
			return nil, fmt.Errorf("tool %s: nil function", name)
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("tool %s registered twice", name)
		}
		params, err := ParseParams(t.Definition.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		r.tools[name] = entry{tool: t, params: params}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// MustNew is New for static tool sets; it panics on error.
func MustNew(tools ...Tool) *Registry {
	r, err := New(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Empty returns a registry without tools.
func Empty() *Registry {
	return &Registry{tools: map[string]entry{}}
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return Tool{}, false
	}
	e, ok := r.tools[name]
	return e.tool, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tools)
}

// Names returns tool names in lexical order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Definitions returns the definitions of every tool, ordered by name.
func (r *Registry) Definitions() []domain.ToolDefinition {
	if r == nil {
		return nil
	}
	defs := make([]domain.ToolDefinition, 0, len(r.names))
	for _, name := range r.names {
		defs = append(defs, r.tools[name].tool.Definition)
	}
	return defs
}

// Validate checks args against the declared parameters of the named tool.
func (r *Registry) Validate(name string, args map[string]any) error {
	e, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	return e.params.Validate(args)
}

// Execute looks up a tool by name, validates its arguments and executes it.
// Returns an error wrapping domain.ErrToolNotFound if the tool is unknown.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	if err := e.params.Validate(args); err != nil {
		return nil, err
	}
	return e.tool.Fn(ctx, args)
}

func (r *Registry) lookup(name string) (entry, bool) {
	if r == nil {
		return entry{}, false
	}
	e, ok := r.tools[name]
	return e, ok
}
