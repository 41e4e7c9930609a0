package models

import "encoding/json"

// ParameterType enumerates the JSON-Schema types a tool parameter may declare.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeInteger ParameterType = "integer"
	TypeNumber  ParameterType = "number"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
)

// ToolParameter describes a single parameter of a tool in vendor-neutral form.
// The fields map one-to-one onto the JSON-Schema keywords the gateway supports.
type ToolParameter struct {
	Name        string                   `json:"name"`
	Type        ParameterType            `json:"type"`
	Description string                   `json:"description"`
	Required    bool                     `json:"required,omitempty"`
	Default     any                      `json:"default,omitempty"`
	Enum        []any                    `json:"enum,omitempty"`
	Minimum     *float64                 `json:"minimum,omitempty"`
	Maximum     *float64                 `json:"maximum,omitempty"`
	Pattern     string                   `json:"pattern,omitempty"`
	Properties  map[string]ToolParameter `json:"properties,omitempty"`
	Items       *ToolParameter           `json:"items,omitempty"`
}

// ToolDefinition is the canonical, vendor-neutral description of a tool.
// Adapters translate it into each provider's wire shape; the MCP surface
// exposes it directly via InputSchema.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
	Examples    []string        `json:"examples,omitempty"`
	Category    string          `json:"category,omitempty"`
	Version     string          `json:"version,omitempty"`
}

// InputSchema renders the parameter list as a JSON-Schema object fragment of
// the form {"type":"object","properties":{...},"required":[...]}.
func (t ToolDefinition) InputSchema() map[string]any {
	properties := make(map[string]any, len(t.Parameters))
	required := make([]string, 0, len(t.Parameters))

	for _, p := range t.Parameters {
		properties[p.Name] = p.schema()
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// InputSchemaJSON is InputSchema serialized, for callers that want a raw document.
func (t ToolDefinition) InputSchemaJSON() json.RawMessage {
	data, err := json.Marshal(t.InputSchema())
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
	}
	return data
}

func (p ToolParameter) schema() map[string]any {
	s := map[string]any{
		"type":        string(p.Type),
		"description": p.Description,
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	if p.Minimum != nil {
		s["minimum"] = *p.Minimum
	}
	if p.Maximum != nil {
		s["maximum"] = *p.Maximum
	}
	if p.Pattern != "" {
		s["pattern"] = p.Pattern
	}
	if p.Default != nil {
		s["default"] = p.Default
	}
	if p.Type == TypeArray && p.Items != nil {
		s["items"] = p.Items.schema()
	}
	if p.Type == TypeObject && len(p.Properties) > 0 {
		props := make(map[string]any, len(p.Properties))
		for name, nested := range p.Properties {
			props[name] = nested.schema()
		}
		s["properties"] = props
	}
	return s
}

// CompletedToolCall is a fully assembled tool invocation reconstructed from
// one or more streamed fragments. Name is never empty; Arguments is serialized
// JSON or the empty string.
type CompletedToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Float64Ptr is a convenience for constraint and schema literals.
func Float64Ptr(v float64) *float64 { return &v }
