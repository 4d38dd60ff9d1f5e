package validate

import (
	"errors"
	"fmt"

	"github.com/tbxark/stepform/draft"
	"github.com/tbxark/stepform/types"
)

// Func is a caller supplied business rule evaluated after the built-in checks.
// It must be pure.
type Func func(snapshot draft.Snapshot) types.FieldErrors

// FieldSpec declares one field owned by a step.
type FieldSpec struct {
	Key      string
	Label    string
	Kind     types.FieldKind
	Required bool
	// Format constrains non-empty values (each item for list fields).
	Format *Format
	// Message overrides the default format error.
	Message string
}

// StepDefinition is an immutable descriptor created at configuration time.
type StepDefinition struct {
	Index     int
	Label     string
	Fields    []FieldSpec
	Validator Func
}

func (d StepDefinition) Keys() []string {
	keys := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

func (d StepDefinition) Owns(key string) bool {
	for _, f := range d.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

var (
	ErrNoSteps      = errors.New("wizard has no steps")
	ErrDuplicateKey = errors.New("field key owned by more than one step")
	ErrBadIndex     = errors.New("step index does not match its position")
)

// CheckTable enforces the configuration time invariants of a step table and
// returns the kind of every declared field.
func CheckTable(steps []StepDefinition) (map[string]types.FieldKind, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	kinds := make(map[string]types.FieldKind)
	owner := make(map[string]int)
	for i, step := range steps {
		if step.Index != i {
			return nil, fmt.Errorf("%w: step %q has index %d at position %d", ErrBadIndex, step.Label, step.Index, i)
		}
		for _, f := range step.Fields {
			if f.Key == "" {
				return nil, fmt.Errorf("step %q: field with empty key", step.Label)
			}
			if prev, dup := owner[f.Key]; dup {
				return nil, fmt.Errorf("%w: %q in steps %d and %d", ErrDuplicateKey, f.Key, prev, i)
			}
			owner[f.Key] = i
			kind := f.Kind
			if kind == "" {
				kind = types.KindText
			}
			switch kind {
			case types.KindText, types.KindList, types.KindFile:
			default:
				return nil, fmt.Errorf("step %q: field %q has unknown kind %q", step.Label, f.Key, kind)
			}
			kinds[f.Key] = kind
		}
	}
	return kinds, nil
}
