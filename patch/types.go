// Package patch applies RFC 6902 operations to a flat field document, the
// JSON object keyed by field key that a wizard draft serialises to.
package patch

const (
	OperationAdd     = "add"
	OperationReplace = "replace"
	OperationRemove  = "remove"
)

type Operation struct {
	Op    string `json:"op" jsonschema:"required,enum=add,enum=replace,enum=remove,description=RFC6902 operation"`
	Path  string `json:"path" jsonschema:"required,description=JSON pointer of the field such as /title or /tags/-"`
	Value any    `json:"value,omitempty" jsonschema:"description=New value; a string or an array of strings"`
}

// UpdateArgs is the payload of an LLM tool call producing operations.
type UpdateArgs struct {
	Ops []Operation `json:"ops" jsonschema:"required,description=Operations to apply; empty when nothing should change"`
}
