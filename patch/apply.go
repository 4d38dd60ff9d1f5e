package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Apply returns a copy of doc with ops applied. doc is left untouched.
func Apply(doc map[string]any, ops []Operation) (map[string]any, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	currentJSON, err := sonic.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	var result map[string]any
	if len(ops) == 0 {
		if err := sonic.Unmarshal(currentJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to copy fields: %w", err)
		}
		return result, nil
	}

	ops = FixOperation(currentJSON, ops)
	patchJSON, err := sonic.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch operations: %w", err)
	}
	p, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}
	modifiedJSON, err := p.Apply(currentJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}
	if err := sonic.Unmarshal(modifiedJSON, &result); err != nil {
		return nil, fmt.Errorf("patch produced a non-object document: %w", err)
	}
	return result, nil
}

// FixOperation turns replaces of absent paths into adds and drops removes of
// absent paths, which models emit routinely.
func FixOperation(currentJSON []byte, ops []Operation) []Operation {
	var doc any
	if err := sonic.Unmarshal(currentJSON, &doc); err != nil {
		return ops
	}

	fixed := make([]Operation, 0, len(ops))
	for _, op := range ops {
		switch op.Op {
		case OperationReplace:
			if !pathExists(doc, op.Path) {
				op.Op = OperationAdd
			}
			fixed = append(fixed, op)
		case OperationRemove:
			if pathExists(doc, op.Path) {
				fixed = append(fixed, op)
			}
		default:
			fixed = append(fixed, op)
		}
	}
	return fixed
}

func pathExists(doc any, path string) bool {
	if path == "" {
		return true
	}
	rest, ok := strings.CutPrefix(path, "/")
	if !ok {
		return false
	}
	cur := doc
	for _, token := range strings.Split(rest, "/") {
		token = unescape(token)
		switch node := cur.(type) {
		case map[string]any:
			value, ok := node[token]
			if !ok {
				return false
			}
			cur = value
		case []any:
			index, err := strconv.Atoi(token)
			if err != nil || index < 0 || index >= len(node) {
				return false
			}
			cur = node[index]
		default:
			return false
		}
	}
	return true
}
