// Package assist fills the fields of the active wizard step from free text
// using a tool-calling chat model.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/cloudwego/eino/components/model"

	"github.com/tbxark/stepform/patch"
	"github.com/tbxark/stepform/structured"
	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/validate"
	"github.com/tbxark/stepform/wizard"
)

const (
	updateFieldsToolName        = "update_fields"
	updateFieldsToolDescription = "Generate RFC6902 JSON Patch operations that update the current step's fields from user input. Only include operations for information explicitly provided by the user."
)

// ErrNoEditableFields is returned for steps that only own file fields or none.
var ErrNoEditableFields = errors.New("step has no fields that can be filled from text")

type Filler struct {
	chain  *structured.Chain[*fillRequest, patch.UpdateArgs]
	logger *slog.Logger
}

type Option func(*Filler)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Filler) {
		f.logger = logger
	}
}

func NewFiller(chatModel model.ToolCallingChatModel, opts ...Option) (*Filler, error) {
	chain, err := structured.NewChain[*fillRequest, patch.UpdateArgs](
		chatModel,
		buildFillPrompt,
		updateFieldsToolName,
		updateFieldsToolDescription,
	)
	if err != nil {
		return nil, err
	}
	f := &Filler{chain: chain, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Result reports what a Fill changed. Ops are the operations the model
// produced; Applied is their net effect on the step's fields, so writes that
// leave a value as it was do not appear. Changed holds the values passed to
// Session.SetMany.
type Result struct {
	Ops     []patch.Operation
	Applied []patch.Operation
	Changed map[string]any
}

// Fill asks the model for patch operations over the active step's text and
// list fields, applies them and records the changed values as user edits.
// File fields are never touched.
func (f *Filler) Fill(ctx context.Context, session *wizard.Session, input string) (Result, error) {
	state := session.State()
	if state.Phase != types.PhaseEditing {
		return Result{}, fmt.Errorf("%w: %s", wizard.ErrNotEditing, state)
	}
	step := session.Steps()[state.Step]
	fields := editableFields(step)
	if len(fields) == 0 {
		return Result{}, ErrNoEditableFields
	}

	keys := make([]string, 0, len(fields))
	lists := map[string]bool{}
	for _, field := range fields {
		keys = append(keys, field.Key)
		lists[field.Key] = field.Kind == types.KindList
	}
	snapshot := session.Snapshot()
	current := snapshot.Values(keys...)
	allowedPaths := patch.Pointers(keys, lists)

	args, err := f.chain.Invoke(ctx, &fillRequest{
		Input:        input,
		Step:         step,
		Fields:       fields,
		Current:      current,
		Missing:      validate.Validate(step, snapshot),
		AllowedPaths: allowedPaths,
	})
	if err != nil {
		return Result{}, fmt.Errorf("LLM call failed: %w", err)
	}
	if len(args.Ops) == 0 {
		f.logger.Debug("Nothing to fill", "step", step.Label)
		return Result{}, nil
	}

	allowed := make(map[string]bool, len(allowedPaths))
	for _, path := range allowedPaths {
		allowed[path] = true
	}
	if err := patch.ValidateOperations(args.Ops, allowed); err != nil {
		return Result{}, fmt.Errorf("generated patches failed validation: %w", err)
	}
	patched, err := patch.Apply(current, args.Ops)
	if err != nil {
		return Result{}, err
	}
	after := maps.Clone(current)
	for key, value := range patch.Changed(args.Ops, patched) {
		if value == nil {
			delete(after, key)
			continue
		}
		after[key] = coerce(lists[key], value)
	}
	applied := patch.Diff(current, after)
	if len(applied) == 0 {
		f.logger.Debug("Fill left fields unchanged", "step", step.Label, "ops", len(args.Ops))
		return Result{Ops: args.Ops, Applied: applied}, nil
	}
	changed := patch.Changed(applied, after)
	if err := session.SetMany(changed); err != nil {
		return Result{}, fmt.Errorf("record filled fields: %w", err)
	}
	paths := make([]string, 0, len(applied))
	for _, op := range applied {
		paths = append(paths, op.Op+" "+op.Path)
	}
	f.logger.Info("Fields filled", "step", step.Label, "fields", slices.Sorted(maps.Keys(changed)), "ops", paths)
	return Result{Ops: args.Ops, Applied: applied, Changed: changed}, nil
}

func editableFields(step validate.StepDefinition) []validate.FieldSpec {
	out := make([]validate.FieldSpec, 0, len(step.Fields))
	for _, field := range step.Fields {
		if field.Kind == types.KindFile {
			continue
		}
		out = append(out, field)
	}
	return out
}

// coerce turns model output such as numbers into the strings the draft stores.
func coerce(list bool, value any) any {
	if value == nil {
		return nil
	}
	if !list {
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprint(value)
	}
	items, ok := value.([]any)
	if !ok {
		return []string{fmt.Sprint(value)}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprint(item))
	}
	return out
}
