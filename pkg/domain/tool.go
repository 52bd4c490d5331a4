package domain

import "maps"

// ToolCall is a request, attached to an AssistantMessage, to invoke a named tool.
type ToolCall struct {
	ID   string         `json:"id" mapstructure:"id"`
	Name string         `json:"name" mapstructure:"name"`
	Args map[string]any `json:"args,omitempty" mapstructure:"args"`
}

// ToolDefinition describes a registered tool to the generator.
type ToolDefinition struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Clone returns a deep copy of the call.
func (c ToolCall) Clone() ToolCall {
	out := c
	if c.Args != nil {
		out.Args = make(map[string]any, len(c.Args))
		maps.Copy(out.Args, c.Args)
	}
	return out
}
