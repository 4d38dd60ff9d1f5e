package upload

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/tbxark/stepform/types"
)

var (
	ErrNotFileField = errors.New("field does not accept files")
	ErrNoPending    = errors.New("no pending upload for field")
)

// Task is one locally selected file waiting to be persisted.
type Task struct {
	Key     string
	Preview string
	File    types.File
	// PreviousURL is the persisted value the task replaced.
	PreviousURL string
}

// Binder keeps the draft placeholder of a field in step with its task.
type Binder interface {
	// Placeholder is called after staging with the new preview handle.
	Placeholder(key, preview, previousURL string) error
	// Persisted is called by Resolve before the preview is released.
	Persisted(key, url string) error
	// Restore is called by Discard with the URL the task replaced.
	Restore(key, previousURL string) error
}

// Manager stages at most one pending upload per field. Every preview handle
// it acquires is released exactly once: by Resolve, by a superseding Stage,
// by Discard or by ReleaseAll.
type Manager struct {
	mu        sync.Mutex
	allocator PreviewAllocator
	binder    Binder
	accepts   func(key string) bool
	pending   map[string]*Task
}

func NewManager(allocator PreviewAllocator, binder Binder, accepts func(key string) bool) *Manager {
	if allocator == nil {
		allocator = NewHandleAllocator()
	}
	return &Manager{
		allocator: allocator,
		binder:    binder,
		accepts:   accepts,
		pending:   make(map[string]*Task),
	}
}

// Stage records file for key and returns its preview handle. A previous
// pending task for the same key is dropped and its preview released.
func (m *Manager) Stage(key string, file types.File, currentURL string) (string, error) {
	if m.accepts != nil && !m.accepts(key) {
		return "", fmt.Errorf("%w: %q", ErrNotFileField, key)
	}
	preview, err := m.allocator.Acquire(file)
	if err != nil {
		return "", fmt.Errorf("acquire preview: %w", err)
	}

	m.mu.Lock()
	old := m.pending[key]
	previous := currentURL
	if old != nil {
		previous = old.PreviousURL
	}
	m.pending[key] = &Task{Key: key, Preview: preview, File: file, PreviousURL: previous}
	m.mu.Unlock()

	if m.binder != nil {
		if err := m.binder.Placeholder(key, preview, previous); err != nil {
			m.mu.Lock()
			if t := m.pending[key]; t != nil && t.Preview == preview {
				if old != nil {
					m.pending[key] = old
				} else {
					delete(m.pending, key)
				}
			}
			m.mu.Unlock()
			m.allocator.Release(preview)
			return "", err
		}
	}
	if old != nil {
		m.allocator.Release(old.Preview)
	}
	return preview, nil
}

// Resolve swaps the draft value to url and then releases the preview. On a
// binder failure the task stays pending.
func (m *Manager) Resolve(key, url string) error {
	m.mu.Lock()
	task, ok := m.pending[key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoPending, key)
	}
	if m.binder != nil {
		if err := m.binder.Persisted(key, url); err != nil {
			return err
		}
	}
	m.mu.Lock()
	current := m.pending[key] == task
	if current {
		delete(m.pending, key)
	}
	m.mu.Unlock()
	// a superseding Stage has already released this preview
	if current {
		m.allocator.Release(task.Preview)
	}
	return nil
}

// ResolveIf resolves key only when its pending task still carries preview.
// It reports false when the task was superseded or discarded meanwhile.
func (m *Manager) ResolveIf(key, preview, url string) (bool, error) {
	m.mu.Lock()
	task, ok := m.pending[key]
	current := ok && task.Preview == preview
	m.mu.Unlock()
	if !current {
		return false, nil
	}
	return true, m.Resolve(key, url)
}

// Rebase records url as the stored value for key after a save persisted a
// task that was superseded meanwhile. A pending task keeps url as the value a
// later Discard restores; with nothing pending the draft takes url directly.
func (m *Manager) Rebase(key, url string) error {
	m.mu.Lock()
	task, ok := m.pending[key]
	if ok {
		task.PreviousURL = url
	}
	m.mu.Unlock()
	if ok || m.binder == nil {
		return nil
	}
	return m.binder.Persisted(key, url)
}

// Discard drops the pending task for key and restores the replaced URL.
func (m *Manager) Discard(key string) error {
	m.mu.Lock()
	task, ok := m.pending[key]
	if ok {
		delete(m.pending, key)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoPending, key)
	}
	var err error
	if m.binder != nil {
		err = m.binder.Restore(key, task.PreviousURL)
	}
	m.allocator.Release(task.Preview)
	return err
}

// Pending returns copies of the pending tasks for keys, ordered by key.
func (m *Manager) Pending(keys ...string) []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(keys) == 0 {
		keys = slices.Collect(maps.Keys(m.pending))
	}
	slices.Sort(keys)
	out := make([]Task, 0, len(keys))
	for _, key := range keys {
		if t, ok := m.pending[key]; ok {
			out = append(out, *t)
		}
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// ReleaseAll drops every pending task without touching the draft.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	tasks := m.pending
	m.pending = make(map[string]*Task)
	m.mu.Unlock()
	for _, t := range tasks {
		m.allocator.Release(t.Preview)
	}
}
