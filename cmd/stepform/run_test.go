package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tbxark/stepform/command"
	"github.com/tbxark/stepform/gateway/memory"
	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/validate"
	"github.com/tbxark/stepform/wizard"
)

func newDriver(t *testing.T, gw wizard.Gateway) (*driver, *bytes.Buffer) {
	t.Helper()
	steps := []validate.StepDefinition{
		{Index: 0, Label: "bio", Fields: []validate.FieldSpec{{Key: "title", Required: true}}},
		{Index: 1, Label: "links", Fields: []validate.FieldSpec{
			{Key: "tags", Kind: types.KindList},
			{Key: "logo", Kind: types.KindFile},
		}},
	}
	s, err := wizard.NewSession(steps, gw, wizard.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Dispose)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	return &driver{session: s, parser: command.NewLocalParser(), out: &out}, &out
}

func TestDriverLoop(t *testing.T) {
	gw := memory.New("")
	d, out := newDriver(t, gw)
	logo := filepath.Join(t.TempDir(), "logo.png")
	if err := os.WriteFile(logo, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	input := strings.Join([]string{
		"next",
		"title=Engineer",
		"next",
		"tags = go, sql ,",
		"upload logo " + logo,
		"review",
		"next",
	}, "\n") + "\n"
	if err := d.loop(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatal(err)
	}

	if !gw.Finalized(context.Background()) {
		t.Fatalf("wizard should be submitted, output:\n%s", out.String())
	}
	snap := d.session.Snapshot()
	if diff := cmp.Diff([]string{"go", "sql"}, snap.List("tags")); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if snap.File("logo").URL == "" || gw.Blobs() != 1 {
		t.Errorf("logo not uploaded: %+v", snap.File("logo"))
	}
	for _, want := range []string{"1 field(s) need attention", "step 1 saved", "submitted", "Engineer"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output misses %q:\n%s", want, out.String())
		}
	}
}

func TestDriverNavigation(t *testing.T) {
	d, out := newDriver(t, memory.New(""))
	ctx := context.Background()

	done, err := d.handle(ctx, "back")
	if err != nil || done {
		t.Fatalf("back on first step: %v, %v", done, err)
	}
	if !strings.Contains(out.String(), "already on the first step") {
		t.Errorf("missing cancel hint:\n%s", out.String())
	}
	if _, err := d.handle(ctx, "jump 2"); err == nil {
		t.Error("jumping to an unsaved step should fail")
	}
	if _, err := d.handle(ctx, "something vague"); err != nil {
		t.Errorf("free text without a model should only warn: %v", err)
	}
	if _, err := d.handle(ctx, "nope=1"); err == nil {
		t.Error("unknown field should fail")
	}
	done, err = d.handle(ctx, "cancel")
	if err != nil || !done {
		t.Errorf("cancel: %v, %v", done, err)
	}
}
