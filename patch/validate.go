package patch

import (
	"fmt"
	"strings"
)

// ValidateOperations checks every operation kind and path. An empty allow-list
// accepts any path.
func ValidateOperations(ops []Operation, allowedPaths map[string]bool) error {
	for i, op := range ops {
		switch op.Op {
		case OperationAdd, OperationReplace, OperationRemove:
		default:
			return fmt.Errorf("operation %d: unsupported op %q", i, op.Op)
		}
		if err := validatePathAllowed(op.Path, allowedPaths); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

func validatePathAllowed(path string, allowedPaths map[string]bool) error {
	if len(allowedPaths) == 0 {
		return nil
	}
	if allowedPaths[path] {
		return nil
	}
	if isPathMatchedByWildcard(path, allowedPaths) {
		return nil
	}
	return fmt.Errorf("path %q is not in the allowed paths set", path)
}

// isPathMatchedByWildcard lets "/tags/0" match an allowed "/tags/-".
func isPathMatchedByWildcard(path string, allowedPaths map[string]bool) bool {
	segments := strings.Split(path, "/")
	if len(segments) != 3 || segments[0] != "" {
		return false
	}
	segments[2] = "-"
	return allowedPaths[strings.Join(segments, "/")]
}
