// Package reconcile merges a server draft into an in-progress local draft.
//
// The precedence rule is fixed: a server value is adopted only for fields the
// user has never touched in this session. Touched fields are a fixed point of
// Merge regardless of when the server response arrives.
package reconcile

import (
	"maps"
	"slices"

	"github.com/tbxark/stepform/draft"
)

// Result is the outcome of a merge.
type Result struct {
	// Fields holds the merged value of every field known to the draft.
	Fields map[string]any
	// Adopted lists the keys taken from the server, sorted.
	Adopted []string
	// Kept lists server keys ignored because the user had touched them.
	Kept []string
	// Unknown lists server keys no step declares.
	Unknown []string
	// Rejected lists server keys whose value does not fit the field kind.
	Rejected []string
}

// Merge is pure: it reads server and current and returns a new value set.
func Merge(server map[string]any, current draft.Snapshot) Result {
	res := Result{Fields: current.Values()}
	for _, key := range slices.Sorted(maps.Keys(server)) {
		if _, known := res.Fields[key]; !known {
			res.Unknown = append(res.Unknown, key)
			continue
		}
		if current.Touched(key) {
			res.Kept = append(res.Kept, key)
			continue
		}
		normalized, err := draft.Normalize(current.Kind(key), server[key])
		if err != nil {
			res.Rejected = append(res.Rejected, key)
			continue
		}
		res.Fields[key] = normalized
		res.Adopted = append(res.Adopted, key)
	}
	return res
}
