// Package memory is an in-process persistence gateway, used by tests and by
// callers that keep drafts for the lifetime of the process.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/tbxark/stepform/gateway"
	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/wizard"
)

var _ wizard.Gateway = (*Gateway)(nil)

type record struct {
	Fields    map[string]any
	Saved     map[int]bool
	Finalized bool
}

type blob struct {
	File types.File
}

// Gateway keeps one draft per draft key (see gateway.WithDraftKey). Uploads
// are content addressed and shared between drafts.
type Gateway struct {
	mu      sync.Mutex
	drafts  Store[*record]
	blobs   *MapCache[blob]
	baseURL string
}

func New(baseURL string) *Gateway {
	if baseURL == "" {
		baseURL = "mem://uploads"
	}
	return &Gateway{
		drafts:  NewStore[*record](NewMapCache[*record](), "draft", gateway.DraftKeyOrDefault),
		blobs:   NewMapCache[blob](),
		baseURL: baseURL,
	}
}

func (g *Gateway) FetchDraft(ctx context.Context) (*types.Draft, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok, err := g.drafts.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.ErrDraftNotFound
	}
	out := &types.Draft{Fields: maps.Clone(rec.Fields)}
	for step := range rec.Saved {
		out.SavedSteps = append(out.SavedSteps, step)
	}
	slices.Sort(out.SavedSteps)
	return out, nil
}

func (g *Gateway) SaveStep(ctx context.Context, req *types.SaveStepRequest) (*types.SaveStepResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	res := &types.SaveStepResult{UploadedURLs: map[string]string{}}
	for _, u := range req.Uploads {
		url, err := g.storeBlob(ctx, u.File)
		if err != nil {
			return nil, fmt.Errorf("store upload %q: %w", u.Key, err)
		}
		res.UploadedURLs[u.Key] = url
		rec.Fields[u.Key] = url
	}
	for key, value := range req.Fields {
		rec.Fields[key] = value
	}
	rec.Saved[req.Step] = true
	if err := g.drafts.Set(ctx, rec); err != nil {
		return nil, err
	}
	return res, nil
}

func (g *Gateway) Finalize(ctx context.Context, fields map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, err := g.load(ctx)
	if err != nil {
		return err
	}
	maps.Copy(rec.Fields, fields)
	rec.Finalized = true
	return g.drafts.Set(ctx, rec)
}

// Finalized reports whether the draft routed by ctx has been finalized.
func (g *Gateway) Finalized(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok, _ := g.drafts.Get(ctx)
	return ok && rec.Finalized
}

// Blobs returns the number of stored uploads.
func (g *Gateway) Blobs() int {
	return g.blobs.Len()
}

// Open returns the upload stored behind url.
func (g *Gateway) Open(ctx context.Context, url string) (types.File, bool) {
	id, ok := strings.CutPrefix(url, g.baseURL+"/")
	if !ok {
		return types.File{}, false
	}
	f, found, _ := g.OpenUpload(ctx, id)
	return f, found
}

// OpenUpload returns the stored upload with the given content id.
func (g *Gateway) OpenUpload(ctx context.Context, id string) (types.File, bool, error) {
	b, found, err := g.blobs.Get(ctx, id)
	if err != nil {
		return types.File{}, false, fmt.Errorf("get upload %q: %w", id, err)
	}
	return b.File, found, nil
}

func (g *Gateway) load(ctx context.Context) (*record, error) {
	rec, ok, err := g.drafts.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &record{Fields: map[string]any{}, Saved: map[int]bool{}}, nil
	}
	return rec, nil
}

func (g *Gateway) storeBlob(ctx context.Context, file types.File) (string, error) {
	id := gateway.ContentID(file.Data)
	if _, exists, err := g.blobs.Get(ctx, id); err != nil {
		return "", err
	} else if !exists {
		if err := g.blobs.Set(ctx, id, blob{File: file}); err != nil {
			return "", err
		}
	}
	return g.baseURL + "/" + id, nil
}
