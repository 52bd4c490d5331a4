package registry

// JSONSchema describes the parameters as a JSON Schema object, the form
// function-calling model APIs expect.
func (ps Params) JSONSchema() map[string]any {
	props := make(map[string]any, len(ps))
	required := make([]string, 0, len(ps))
	for _, p := range ps {
		props[p.Name] = typeSchema(p.Type)
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func typeSchema(t Type) map[string]any {
	switch t := t.(type) {
	case stringType:
		return map[string]any{"type": "string"}
	case intType:
		return map[string]any{"type": "integer"}
	case floatType:
		return map[string]any{"type": "number"}
	case boolType:
		return map[string]any{"type": "boolean"}
	case sliceType:
		return map[string]any{"type": "array", "items": typeSchema(t.elem)}
	default:
		return map[string]any{}
	}
}

// SchemaOf parses a parameter declaration and returns its JSON Schema.
func SchemaOf(decl map[string]string) (map[string]any, error) {
	ps, err := ParseParams(decl)
	if err != nil {
		return nil, err
	}
	return ps.JSONSchema(), nil
}
