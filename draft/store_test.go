package draft

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tbxark/stepform/types"
)

var testKinds = map[string]types.FieldKind{
	"title": types.KindText,
	"tags":  types.KindList,
	"logo":  types.KindFile,
}

func TestStoreStartsEmpty(t *testing.T) {
	s := NewStore(testKinds)
	want := map[string]any{"title": "", "tags": []string{}, "logo": types.FileRef{}}
	if diff := cmp.Diff(want, s.Snapshot().Values()); diff != "" {
		t.Errorf("initial values mismatch (-want +got):\n%s", diff)
	}
}

func TestSetMarksTouchedAndNotifies(t *testing.T) {
	var edited []string
	s := NewStore(testKinds, WithOnSet(func(key string) { edited = append(edited, key) }))
	if err := s.SetMany(map[string]any{"title": "x", "tags": []any{"a", "b"}}); err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Touched("title") || !snap.Touched("tags") || snap.Touched("logo") {
		t.Errorf("touched flags wrong: title=%v tags=%v logo=%v", snap.Touched("title"), snap.Touched("tags"), snap.Touched("logo"))
	}
	if diff := cmp.Diff([]string{"tags", "title"}, edited); diff != "" {
		t.Errorf("hook calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, snap.List("tags")); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestSetUnknownKeyIsAtomic(t *testing.T) {
	s := NewStore(testKinds)
	err := s.SetMany(map[string]any{"title": "x", "missing": "y"})
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}
	if got := s.Snapshot().Text("title"); got != "" {
		t.Errorf("title = %q, want untouched", got)
	}
	if err := s.Set("tags", 3); err == nil {
		t.Error("int for a list field should fail")
	}
}

func TestAdoptRespectsTouched(t *testing.T) {
	s := NewStore(testKinds)
	if ok, err := s.Adopt("title", "server"); !ok || err != nil {
		t.Fatalf("Adopt untouched = (%v, %v)", ok, err)
	}
	if s.Snapshot().Touched("title") {
		t.Error("Adopt must not mark the field touched")
	}
	_ = s.Set("title", "mine")
	if ok, _ := s.Adopt("title", "server again"); ok {
		t.Error("Adopt overwrote a touched field")
	}
	if got, _ := s.Get("title"); got != "mine" {
		t.Errorf("title = %v", got)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewStore(testKinds)
	_ = s.Set("tags", []string{"a"})
	snap := s.Snapshot()
	_ = s.Set("tags", []string{"b", "c"})
	list := snap.List("tags")
	list[0] = "mutated"
	if diff := cmp.Diff([]string{"a"}, snap.List("tags")); diff != "" {
		t.Errorf("snapshot changed (-want +got):\n%s", diff)
	}
}

func TestWireValues(t *testing.T) {
	s := NewStore(testKinds)
	_ = s.Set("title", "t")
	_ = s.Replace("logo", "https://cdn/x.png")
	if diff := cmp.Diff(map[string]any{"title": "t", "logo": "https://cdn/x.png"}, s.Snapshot().Wire("title", "logo")); diff != "" {
		t.Errorf("wire mismatch (-want +got):\n%s", diff)
	}
	_ = s.Set("logo", types.FileRef{URL: "https://cdn/x.png", Preview: "blob:1"})
	if _, ok := s.Snapshot().Wire("logo")["logo"]; ok {
		t.Error("staged file should not be sent as a value")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		kind    types.FieldKind
		in      any
		want    any
		wantErr bool
	}{
		{types.KindText, "a", "a", false},
		{types.KindText, nil, "", false},
		{types.KindText, 1, nil, true},
		{types.KindList, "solo", []string{"solo"}, false},
		{types.KindList, []any{"a", 2}, nil, true},
		{types.KindFile, "https://x", types.FileRef{URL: "https://x"}, false},
		{types.KindFile, &types.FileRef{Preview: "p"}, types.FileRef{Preview: "p"}, false},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.kind, tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Normalize(%s, %#v) err = %v", tt.kind, tt.in, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Normalize(%s, %#v) mismatch (-want +got):\n%s", tt.kind, tt.in, diff)
		}
	}
}
