package validate

import (
	"strings"

	"github.com/tbxark/stepform/draft"
	"github.com/tbxark/stepform/types"
)

const MessageRequired = "required"

// Validate checks every field of step against snapshot and returns the full
// error set for the step. It never looks at fields the step does not own, and
// it has no side effects.
func Validate(step StepDefinition, snapshot draft.Snapshot) types.FieldErrors {
	errs := types.FieldErrors{}
	for _, f := range step.Fields {
		if msg := checkField(f, snapshot); msg != "" {
			errs[f.Key] = msg
		}
	}
	if step.Validator != nil {
		for key, msg := range step.Validator(snapshot) {
			if _, taken := errs[key]; taken || !step.Owns(key) || msg == "" {
				continue
			}
			errs[key] = msg
		}
	}
	return errs
}

func checkField(f FieldSpec, snapshot draft.Snapshot) string {
	switch kind(f) {
	case types.KindList:
		items := snapshot.List(f.Key)
		nonEmpty := 0
		for _, item := range items {
			if strings.TrimSpace(item) == "" {
				continue
			}
			nonEmpty++
			if f.Format != nil && !f.Format.Check(strings.TrimSpace(item)) {
				return formatMessage(f)
			}
		}
		if f.Required && nonEmpty == 0 {
			return MessageRequired
		}
	case types.KindFile:
		ref := snapshot.File(f.Key)
		if f.Required && ref.IsZero() {
			return MessageRequired
		}
		if f.Format != nil && ref.URL != "" && !ref.Staged() && !f.Format.Check(ref.URL) {
			return formatMessage(f)
		}
	default:
		value := strings.TrimSpace(snapshot.Text(f.Key))
		if value == "" {
			if f.Required {
				return MessageRequired
			}
			return ""
		}
		if f.Format != nil && !f.Format.Check(value) {
			return formatMessage(f)
		}
	}
	return ""
}

func kind(f FieldSpec) types.FieldKind {
	if f.Kind == "" {
		return types.KindText
	}
	return f.Kind
}

func formatMessage(f FieldSpec) string {
	if f.Message != "" {
		return f.Message
	}
	return f.Format.Message
}
