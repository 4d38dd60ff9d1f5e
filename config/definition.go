// Package config loads wizard definitions and the CLI configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/validate"
)

// Definition is the YAML form of a wizard.
type Definition struct {
	Name  string           `yaml:"name"`
	Steps []StepDefinition `yaml:"steps"`
}

type StepDefinition struct {
	Label  string            `yaml:"label"`
	Fields []FieldDefinition `yaml:"fields"`
}

type FieldDefinition struct {
	Key      string `yaml:"key"`
	Label    string `yaml:"label"`
	Kind     string `yaml:"kind"`
	Required bool   `yaml:"required"`
	Format   string `yaml:"format"`
	Message  string `yaml:"message"`
}

func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse wizard definition: %w", err)
	}
	return &def, nil
}

func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wizard definition: %w", err)
	}
	return ParseDefinition(data)
}

// BuildOption customises how a Definition becomes a step table.
type BuildOption func(*buildOptions)

type buildOptions struct {
	formats    validate.Formats
	validators map[string]validate.Func
}

// WithFormats replaces the format registry used to resolve `format:` names.
func WithFormats(formats validate.Formats) BuildOption {
	return func(o *buildOptions) {
		o.formats = formats
	}
}

// WithValidator attaches a business rule to the step with the given label.
func WithValidator(label string, fn validate.Func) BuildOption {
	return func(o *buildOptions) {
		o.validators[label] = fn
	}
}

// Build resolves formats, attaches validators and checks the resulting table.
func (d *Definition) Build(opts ...BuildOption) ([]validate.StepDefinition, error) {
	o := &buildOptions{
		formats:    validate.DefaultFormats(),
		validators: map[string]validate.Func{},
	}
	for _, opt := range opts {
		opt(o)
	}

	steps := make([]validate.StepDefinition, 0, len(d.Steps))
	labels := map[string]bool{}
	for i, s := range d.Steps {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			return nil, fmt.Errorf("step %d: label is required", i)
		}
		labels[label] = true
		step := validate.StepDefinition{
			Index:     i,
			Label:     label,
			Validator: o.validators[label],
		}
		for _, f := range s.Fields {
			format, err := o.formats.Lookup(f.Format)
			if err != nil {
				return nil, fmt.Errorf("step %q field %q: %w", label, f.Key, err)
			}
			step.Fields = append(step.Fields, validate.FieldSpec{
				Key:      strings.TrimSpace(f.Key),
				Label:    f.Label,
				Kind:     types.FieldKind(strings.ToLower(strings.TrimSpace(f.Kind))),
				Required: f.Required,
				Format:   format,
				Message:  f.Message,
			})
		}
		steps = append(steps, step)
	}
	for label := range o.validators {
		if !labels[label] {
			return nil, fmt.Errorf("validator attached to unknown step %q", label)
		}
	}
	if _, err := validate.CheckTable(steps); err != nil {
		return nil, err
	}
	return steps, nil
}
