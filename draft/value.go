package draft

import (
	"fmt"
	"slices"

	"github.com/tbxark/stepform/types"
)

func zeroValue(kind types.FieldKind) any {
	switch kind {
	case types.KindList:
		return []string{}
	case types.KindFile:
		return types.FileRef{}
	default:
		return ""
	}
}

// Normalize coerces a raw value into the canonical representation for kind.
// nil resets the field to its empty value.
func Normalize(kind types.FieldKind, value any) (any, error) {
	if value == nil {
		return zeroValue(kind), nil
	}
	switch kind {
	case types.KindList:
		switch v := value.(type) {
		case []string:
			return append([]string{}, v...), nil
		case []any:
			out := make([]string, 0, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("list item %d: expected string, got %T", i, item)
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			return []string{v}, nil
		}
	case types.KindFile:
		switch v := value.(type) {
		case types.FileRef:
			return v, nil
		case *types.FileRef:
			return *v, nil
		case string:
			return types.FileRef{URL: v}, nil
		}
	default:
		switch v := value.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		}
	}
	return nil, fmt.Errorf("unsupported value %T for %s field", value, kind)
}

func cloneValue(v any) any {
	if list, ok := v.([]string); ok {
		return slices.Clone(list)
	}
	return v
}
