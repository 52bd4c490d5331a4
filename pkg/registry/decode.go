package registry

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs decodes a tool argument map into a typed struct. Field names
// come from `mapstructure` tags; numeric JSON values are converted to the
// target field type.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(args); err != nil {
		return out, fmt.Errorf("decode arguments: %w", err)
	}
	return out, nil
}
