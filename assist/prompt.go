package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/validate"
)

type fillRequest struct {
	Input        string
	Step         validate.StepDefinition
	Fields       []validate.FieldSpec
	Current      map[string]any
	Missing      types.FieldErrors
	AllowedPaths []string
}

func buildFillPrompt(_ context.Context, req *fillRequest) ([]*schema.Message, error) {
	stateJSON, err := sonic.MarshalString(req.Current)
	if err != nil {
		return nil, fmt.Errorf("marshal step fields: %w", err)
	}
	systemPrompt := fmt.Sprintf("You are a form assistant. Analyze user input and call %s to generate RFC6902 JSON Patch operations. Rules: only use explicit user info; use replace for updates and add for new values; list fields hold arrays of strings and accept appends at /key/-; only use allowed paths; if nothing to extract, return empty operations.", updateFieldsToolName)

	sections := []string{
		fmt.Sprintf("# Step\n%s", req.Step.Label),
		fmt.Sprintf("# Fields JSON:\n%s", stateJSON),
		fmt.Sprintf("# Allowed paths:\n%s", formatAllowedPaths(req.AllowedPaths)),
		formatFieldsSection(req.Fields),
	}
	if s := formatMissingSection(req.Fields, req.Missing); s != "" {
		sections = append(sections, s)
	}
	sections = append(sections, fmt.Sprintf("# User input:\n%s", req.Input))

	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(strings.Join(sections, "\n\n")),
	}, nil
}

func formatAllowedPaths(paths []string) string {
	var sb strings.Builder
	for _, path := range paths {
		sb.WriteString("- ")
		sb.WriteString(path)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatFieldsSection(fields []validate.FieldSpec) string {
	var sb strings.Builder
	sb.WriteString("# Field guidance:\n")
	for _, f := range fields {
		label := f.Label
		if label == "" {
			label = f.Key
		}
		fmt.Fprintf(&sb, "- %s [/%s]", label, f.Key)
		if f.Kind == types.KindList {
			sb.WriteString(" list")
		}
		if f.Required {
			sb.WriteString(" required")
		}
		if f.Format != nil {
			fmt.Fprintf(&sb, ": %s", f.Format.Message)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatMissingSection(fields []validate.FieldSpec, missing types.FieldErrors) string {
	if len(missing) == 0 {
		return ""
	}
	var lines []string
	for _, f := range fields {
		if msg, ok := missing[f.Key]; ok {
			lines = append(lines, fmt.Sprintf("- /%s: %s", f.Key, msg))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "# Fields still invalid:\n" + strings.Join(lines, "\n")
}
