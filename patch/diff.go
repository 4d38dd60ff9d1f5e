package patch

import (
	"maps"
	"reflect"
	"slices"
)

// Diff returns the operations turning before into after, ordered by key.
func Diff(before, after map[string]any) []Operation {
	ops := make([]Operation, 0)
	for _, key := range slices.Sorted(maps.Keys(after)) {
		value := after[key]
		old, exists := before[key]
		switch {
		case !exists:
			ops = append(ops, Operation{Op: OperationAdd, Path: Pointer(key), Value: value})
		case !reflect.DeepEqual(old, value):
			ops = append(ops, Operation{Op: OperationReplace, Path: Pointer(key), Value: value})
		}
	}
	for _, key := range slices.Sorted(maps.Keys(before)) {
		if _, exists := after[key]; !exists {
			ops = append(ops, Operation{Op: OperationRemove, Path: Pointer(key)})
		}
	}
	return ops
}

// Changed collects the field values touched by ops from the patched document.
// Removed fields map to nil.
func Changed(ops []Operation, patched map[string]any) map[string]any {
	out := make(map[string]any)
	for _, op := range ops {
		key, ok := FieldKey(op.Path)
		if !ok {
			continue
		}
		value, exists := patched[key]
		if !exists {
			value = nil
		}
		out[key] = value
	}
	return out
}
