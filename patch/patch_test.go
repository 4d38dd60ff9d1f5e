package patch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestApply(t *testing.T) {
	doc := map[string]any{"title": "Engineer", "tags": []string{"go"}}
	ops := []Operation{
		{Op: OperationReplace, Path: "/bio", Value: "Writes Go"},
		{Op: OperationAdd, Path: "/tags/-", Value: "sql"},
		{Op: OperationRemove, Path: "/website"},
		{Op: OperationReplace, Path: "/title", Value: "Staff engineer"},
	}
	got, err := Apply(doc, ops)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"title": "Staff engineer", "bio": "Writes Go", "tags": []any{"go", "sql"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}
	if doc["title"] != "Engineer" {
		t.Error("Apply modified its input")
	}
}

func TestApplyInvalid(t *testing.T) {
	_, err := Apply(map[string]any{"tags": []string{}}, []Operation{{Op: OperationAdd, Path: "/tags/5", Value: "x"}})
	if err == nil {
		t.Error("out of range index should fail")
	}
}

func TestFixOperation(t *testing.T) {
	ops := FixOperation([]byte(`{"a":"1"}`), []Operation{
		{Op: OperationReplace, Path: "/a", Value: "2"},
		{Op: OperationReplace, Path: "/b", Value: "3"},
		{Op: OperationRemove, Path: "/c"},
	})
	want := []Operation{
		{Op: OperationReplace, Path: "/a", Value: "2"},
		{Op: OperationAdd, Path: "/b", Value: "3"},
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("FixOperation mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateOperations(t *testing.T) {
	allowed := map[string]bool{}
	for _, p := range Pointers([]string{"title", "tags", "a/b"}, map[string]bool{"tags": true}) {
		allowed[p] = true
	}
	tests := []struct {
		name    string
		op      Operation
		wantErr bool
	}{
		{"field", Operation{Op: OperationReplace, Path: "/title"}, false},
		{"escaped key", Operation{Op: OperationAdd, Path: "/a~1b"}, false},
		{"append", Operation{Op: OperationAdd, Path: "/tags/-"}, false},
		{"index", Operation{Op: OperationRemove, Path: "/tags/0"}, false},
		{"other step", Operation{Op: OperationReplace, Path: "/website"}, true},
		{"index on text", Operation{Op: OperationAdd, Path: "/title/0"}, true},
		{"move", Operation{Op: "move", Path: "/title"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOperations([]Operation{tt.op}, allowed)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if err := ValidateOperations([]Operation{{Op: OperationAdd, Path: "/anything"}}, nil); err != nil {
		t.Errorf("empty allow-list should accept any path: %v", err)
	}
}

func TestDiffAndChanged(t *testing.T) {
	before := map[string]any{"title": "a", "bio": "b", "tags": []any{"go"}}
	after := map[string]any{"title": "a", "tags": []any{"go", "sql"}, "website": "https://a.dev"}
	ops := Diff(before, after)
	want := []Operation{
		{Op: OperationReplace, Path: "/tags", Value: []any{"go", "sql"}},
		{Op: OperationAdd, Path: "/website", Value: "https://a.dev"},
		{Op: OperationRemove, Path: "/bio"},
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", diff)
	}
	changed := Changed(ops, after)
	wantChanged := map[string]any{"tags": []any{"go", "sql"}, "website": "https://a.dev", "bio": nil}
	if diff := cmp.Diff(wantChanged, changed); diff != "" {
		t.Errorf("Changed mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldKey(t *testing.T) {
	for path, want := range map[string]string{"/title": "title", "/tags/-": "tags", "/a~1b": "a/b"} {
		if got, ok := FieldKey(path); !ok || got != want {
			t.Errorf("FieldKey(%q) = %q, %v", path, got, ok)
		}
	}
	if _, ok := FieldKey("title"); ok {
		t.Error("relative path should not resolve")
	}
}
