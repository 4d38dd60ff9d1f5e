package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tbxark/stepform/draft"
	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/validate"
)

func TestBuildDefinition(t *testing.T) {
	def, err := LoadDefinition(filepath.Join("testdata", "portfolio.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "portfolio" {
		t.Errorf("name = %q", def.Name)
	}
	rule := func(s draft.Snapshot) types.FieldErrors {
		if s.Text("bio") == "lorem" {
			return types.FieldErrors{"bio": "write something real"}
		}
		return nil
	}
	steps, err := def.Build(WithValidator("bio", rule))
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(steps))
	}
	if diff := cmp.Diff([]string{"website", "logo", "tags"}, steps[1].Keys()); diff != "" {
		t.Errorf("links keys (-want +got):\n%s", diff)
	}
	links := steps[1].Fields
	if links[0].Format != validate.URL || links[2].Format != validate.Slug {
		t.Errorf("formats not resolved: %+v", links)
	}
	if links[1].Kind != types.KindFile || links[2].Kind != types.KindList {
		t.Errorf("kinds = %q, %q", links[1].Kind, links[2].Kind)
	}
	if steps[0].Validator == nil || steps[1].Validator != nil {
		t.Error("validator should be attached to the bio step only")
	}
	if !steps[0].Fields[0].Required || steps[2].Index != 2 {
		t.Errorf("unexpected table: %+v", steps)
	}
}

func TestBuildDefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		opts []BuildOption
		want error
	}{
		{
			name: "duplicate key",
			yaml: "steps:\n  - label: a\n    fields: [{key: x}]\n  - label: b\n    fields: [{key: x}]\n",
			want: validate.ErrDuplicateKey,
		},
		{
			name: "no steps",
			yaml: "name: empty\n",
			want: validate.ErrNoSteps,
		},
		{
			name: "unknown format",
			yaml: "steps:\n  - label: a\n    fields: [{key: x, format: phone}]\n",
		},
		{
			name: "missing label",
			yaml: "steps:\n  - fields: [{key: x}]\n",
		},
		{
			name: "unknown kind",
			yaml: "steps:\n  - label: a\n    fields: [{key: x, kind: date}]\n",
		},
		{
			name: "validator for unknown step",
			yaml: "steps:\n  - label: a\n",
			opts: []BuildOption{WithValidator("b", func(draft.Snapshot) types.FieldErrors { return nil })},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := ParseDefinition([]byte(tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			_, err = def.Build(tt.opts...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCustomFormats(t *testing.T) {
	formats := validate.DefaultFormats()
	formats.Register(&validate.Format{Name: "Phone", Message: "digits only", Check: func(v string) bool { return v != "" }})
	def, err := ParseDefinition([]byte("steps:\n  - label: a\n    fields: [{key: x, format: phone}]\n"))
	if err != nil {
		t.Fatal(err)
	}
	steps, err := def.Build(WithFormats(formats))
	if err != nil {
		t.Fatal(err)
	}
	if got := steps[0].Fields[0].Format.Name; got != "Phone" {
		t.Errorf("format = %q", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testLoader(home, dir string, env map[string]string) *Loader {
	return &Loader{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		home:   home,
		dir:    dir,
		getenv: func(k string) string { return env[k] },
	}
}

func TestLoaderLayers(t *testing.T) {
	home, dir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(home, UserConfigDir, "config.yaml"), "log_level: debug\nllm:\n  model: small\n")
	writeFile(t, filepath.Join(dir, AppConfigFile), "database: project.db\ndraft_key: alice\n")

	app, err := testLoader(home, dir, map[string]string{"STEPFORM_LLM_API_KEY": "sk-test"}).Load("")
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultApp()
	want.Database = "project.db"
	want.DraftKey = "alice"
	want.LogLevel = "debug"
	want.LLM.Model = "small"
	want.LLM.APIKey = "sk-test"
	if diff := cmp.Diff(want, app); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if !app.LLM.Enabled() {
		t.Error("llm should be enabled")
	}
}

func TestLoaderExplicitAndInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "definition: other.yaml\n")
	app, err := testLoader("", "", nil).Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if app.Definition != "other.yaml" || app.LLM.Enabled() {
		t.Errorf("unexpected config: %+v", app)
	}

	if _, err := testLoader("", "", nil).Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing explicit config should fail")
	}

	writeFile(t, path, "log_level: loud\n")
	if _, err := testLoader("", "", nil).Load(path); err == nil {
		t.Error("invalid log level should fail")
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" WARN ")
	if err != nil || level != slog.LevelWarn {
		t.Errorf("ParseLevel = %v, %v", level, err)
	}
}
