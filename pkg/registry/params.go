package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Type validates a single argument value.
type Type interface {
	// Name returns the declaration string of the type (e.g. "string", "[int]").
	Name() string
	Validate(value any) error
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

type intType struct{}

func (intType) Name() string { return "int" }

func (intType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return nil
	case float64:
		// JSON numbers decode as float64
		if v == float64(int64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

type floatType struct{}

func (floatType) Name() string { return "float" }

func (floatType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64:
		return nil
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
}

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (boolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

type anyType struct{}

func (anyType) Name() string             { return "any" }
func (anyType) Validate(value any) error { return nil }

type sliceType struct {
	elem Type
}

func (t sliceType) Name() string {
	return "[" + t.elem.Name() + "]"
}

func (t sliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected list, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// ParseType converts a type string into a Type.
func ParseType(s string) (Type, error) {
	if len(s) > 2 && s[0] == '[' && s[len(s)-1] == ']' {
		elem, err := ParseType(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return sliceType{elem: elem}, nil
	}
	switch s {
	case "string":
		return stringType{}, nil
	case "int":
		return intType{}, nil
	case "float", "number":
		return floatType{}, nil
	case "bool", "boolean":
		return boolType{}, nil
	case "any", "":
		return anyType{}, nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", s)
	}
}

// Param is one declared tool parameter.
type Param struct {
	Name     string
	Type     Type
	Optional bool
}

// Params is the parsed parameter list of a tool, ordered by name.
type Params []Param

// ParseParams parses a declaration such as {"query": "string", "limit": "int?"}.
func ParseParams(decl map[string]string) (Params, error) {
	out := make(Params, 0, len(decl))
	for name, typ := range decl {
		optional := strings.HasSuffix(typ, "?")
		t, err := ParseType(strings.TrimSuffix(typ, "?"))
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		out = append(out, Param{Name: name, Type: t, Optional: optional})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Validate checks args against the declaration. Undeclared arguments are
// allowed. Failures are reported together, in parameter order.
func (ps Params) Validate(args map[string]any) error {
	var errs []error
	for _, p := range ps {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if !p.Optional {
				errs = append(errs, &ArgError{Key: p.Name, Reason: "required"})
			}
			continue
		}
		if err := p.Type.Validate(v); err != nil {
			errs = append(errs, &ArgError{Key: p.Name, Reason: err.Error(), Value: v})
		}
	}
	if len(errs) > 0 {
		return &ArgsError{Errors: errs}
	}
	return nil
}
