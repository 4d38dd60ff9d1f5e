package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tbxark/stepform/gateway"
	"github.com/tbxark/stepform/gateway/memory"
	"github.com/tbxark/stepform/types"
)

var _ UploadOpener = (*memory.Gateway)(nil)

func newServer(t *testing.T) (*memory.Gateway, *Client) {
	t.Helper()
	backend := memory.New("https://files.test")
	srv := httptest.NewServer(NewHandler(backend, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)
	return backend, NewClient(srv.URL+"/", WithHTTPClient(srv.Client()))
}

func TestFetchDraftNotFound(t *testing.T) {
	_, c := newServer(t)
	if _, err := c.FetchDraft(context.Background()); !errors.Is(err, types.ErrDraftNotFound) {
		t.Fatalf("err = %v, want ErrDraftNotFound", err)
	}
}

func TestSaveStepJSON(t *testing.T) {
	backend, c := newServer(t)
	ctx := gateway.WithDraftKey(context.Background(), "dana")
	res, err := c.SaveStep(ctx, &types.SaveStepRequest{
		Step:   0,
		Fields: map[string]any{"title": "Engineer", "tags": []string{"go", "http"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.UploadedURLs) != 0 {
		t.Errorf("unexpected uploads: %v", res.UploadedURLs)
	}
	d, err := backend.FetchDraft(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := &types.Draft{
		Fields:     map[string]any{"title": "Engineer", "tags": []any{"go", "http"}},
		SavedSteps: []int{0},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
	if _, err := backend.FetchDraft(context.Background()); !errors.Is(err, types.ErrDraftNotFound) {
		t.Errorf("draft key header was not honoured, err = %v", err)
	}
}

func TestSaveStepMultipart(t *testing.T) {
	backend, c := newServer(t)
	ctx := context.Background()
	res, err := c.SaveStep(ctx, &types.SaveStepRequest{
		Step: 1,
		Fields: map[string]any{
			"website": "https://a.dev",
			"tags":    []string{"go", "sql"},
			"empty":   []string{},
		},
		Uploads: []types.StagedFile{{Key: "logo", File: types.File{Name: "logo.png", ContentType: "image/png", Data: []byte("png")}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	url := res.UploadedURLs["logo"]
	if url != "https://files.test/"+gateway.ContentID([]byte("png")) {
		t.Fatalf("uploaded url = %q", url)
	}
	file, ok := backend.Open(ctx, url)
	if !ok {
		t.Fatal("upload not stored")
	}
	if diff := cmp.Diff(types.File{Name: "logo.png", ContentType: "image/png", Data: []byte("png")}, file); diff != "" {
		t.Errorf("file mismatch (-want +got):\n%s", diff)
	}

	d, err := c.FetchDraft(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := &types.Draft{
		Fields: map[string]any{
			"website": "https://a.dev",
			"tags":    []any{"go", "sql"},
			"empty":   []any{},
			"logo":    url,
		},
		SavedSteps: []int{1},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
}

func TestListItemsSurviveBothEncodings(t *testing.T) {
	fields := map[string]any{"tags": []string{"a", ""}, "empty": []string{}}
	want := map[string]any{"tags": []any{"a", ""}, "empty": []any{}}
	cases := []struct {
		name    string
		uploads []types.StagedFile
	}{
		{"json", nil},
		{"multipart", []types.StagedFile{{Key: "logo", File: types.File{Name: "l.png", Data: []byte("l")}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, c := newServer(t)
			ctx := context.Background()
			if _, err := c.SaveStep(ctx, &types.SaveStepRequest{Step: 1, Fields: fields, Uploads: tc.uploads}); err != nil {
				t.Fatal(err)
			}
			d, err := c.FetchDraft(ctx)
			if err != nil {
				t.Fatal(err)
			}
			got := map[string]any{"tags": d.Fields["tags"], "empty": d.Fields["empty"]}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("list fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUploadedURLIsFetchable(t *testing.T) {
	var h http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	h = NewHandler(memory.New(srv.URL+"/uploads"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	res, err := c.SaveStep(context.Background(), &types.SaveStepRequest{
		Step:    1,
		Fields:  map[string]any{},
		Uploads: []types.StagedFile{{Key: "logo", File: types.File{Name: "logo.png", ContentType: "image/png", Data: []byte("png-bytes")}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Get(res.UploadedURLs["logo"])
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", res.UploadedURLs["logo"], resp.StatusCode)
	}
	if string(body) != "png-bytes" {
		t.Errorf("body = %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}

	missing, err := srv.Client().Get(srv.URL + "/uploads/" + gateway.ContentID([]byte("nope")))
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing upload status = %d, want 404", missing.StatusCode)
	}
}

func TestFinalize(t *testing.T) {
	backend, c := newServer(t)
	ctx := gateway.WithDraftKey(context.Background(), "erin")
	if err := c.Finalize(ctx, map[string]any{"title": "Done"}); err != nil {
		t.Fatal(err)
	}
	if !backend.Finalized(ctx) {
		t.Error("draft should be finalized")
	}
}

func TestHandlerRejectsBadStep(t *testing.T) {
	h := NewHandler(memory.New(""), slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := httptest.NewRequest(http.MethodPut, "/steps/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/steps/0", nil)
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := (&StatusError{Code: http.StatusBadGateway, Message: "upstream"}).Error()
	if err != "gateway responded 502: upstream" {
		t.Errorf("Error() = %q", err)
	}
}
