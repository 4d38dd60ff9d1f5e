package memory

import (
	"context"
	"sync"
)

type Cache[S any] interface {
	Set(ctx context.Context, key string, val S) error
	Get(ctx context.Context, key string) (S, bool, error)
	Del(ctx context.Context, key string) error
}

type MapCache[S any] struct {
	mu sync.RWMutex
	m  map[string]S
}

func NewMapCache[S any]() *MapCache[S] {
	return &MapCache[S]{m: map[string]S{}}
}

func (m *MapCache[S]) Set(ctx context.Context, key string, val S) error {
	m.mu.Lock()
	m.m[key] = val
	m.mu.Unlock()
	return nil
}

func (m *MapCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	m.mu.RLock()
	val, ok := m.m[key]
	m.mu.RUnlock()
	return val, ok, nil
}

func (m *MapCache[S]) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.m, key)
	m.mu.Unlock()
	return nil
}

func (m *MapCache[S]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// Store namespaces a cache and derives the entry key from the context.
type Store[S any] struct {
	core      Cache[S]
	namespace string
	keyFn     func(ctx context.Context) string
}

func NewStore[S any](core Cache[S], namespace string, keyFn func(ctx context.Context) string) Store[S] {
	return Store[S]{core: core, namespace: namespace, keyFn: keyFn}
}

func (c Store[S]) key(ctx context.Context) string {
	return c.namespace + ":" + c.keyFn(ctx)
}

func (c Store[S]) Set(ctx context.Context, val S) error {
	return c.core.Set(ctx, c.key(ctx), val)
}

func (c Store[S]) Get(ctx context.Context) (S, bool, error) {
	return c.core.Get(ctx, c.key(ctx))
}

func (c Store[S]) Del(ctx context.Context) error {
	return c.core.Del(ctx, c.key(ctx))
}
