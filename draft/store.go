package draft

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/tbxark/stepform/types"
)

var ErrUnknownField = errors.New("unknown field")

// Entry is one field of the draft. Touched is set once the user has edited it
// and is never cleared for the lifetime of the store.
type Entry struct {
	Value   any
	Touched bool
}

// Store holds the current value of every declared field, independent of the
// active step. It is the single mutable source of truth of a session.
type Store struct {
	mu      sync.RWMutex
	kinds   map[string]types.FieldKind
	entries map[string]Entry
	onSet   func(key string)
}

type Option func(*Store)

// WithOnSet registers a hook called after every user edit, outside the lock.
func WithOnSet(fn func(key string)) Option {
	return func(s *Store) {
		s.onSet = fn
	}
}

func NewStore(kinds map[string]types.FieldKind, opts ...Option) *Store {
	s := &Store{
		kinds:   maps.Clone(kinds),
		entries: make(map[string]Entry, len(kinds)),
	}
	for key, kind := range kinds {
		s.entries[key] = Entry{Value: zeroValue(kind)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return cloneValue(e.Value), true
}

// Set records a user edit and marks the field touched.
func (s *Store) Set(key string, value any) error {
	if err := s.SetMany(map[string]any{key: value}); err != nil {
		return err
	}
	return nil
}

// SetMany applies a partial update atomically: either every key is declared
// and all are written, or nothing changes.
func (s *Store) SetMany(partial map[string]any) error {
	normalized := make(map[string]any, len(partial))
	s.mu.Lock()
	for key, value := range partial {
		kind, ok := s.kinds[key]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		v, err := Normalize(kind, value)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("field %q: %w", key, err)
		}
		normalized[key] = v
	}
	for key, value := range normalized {
		s.entries[key] = Entry{Value: value, Touched: true}
	}
	hook := s.onSet
	s.mu.Unlock()

	if hook != nil {
		for _, key := range slices.Sorted(maps.Keys(normalized)) {
			hook(key)
		}
	}
	return nil
}

// Adopt writes a value without marking the field touched. It refuses to
// overwrite a touched field and reports whether the value was taken.
func (s *Store) Adopt(key string, value any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.kinds[key]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if s.entries[key].Touched {
		return false, nil
	}
	v, err := Normalize(kind, value)
	if err != nil {
		return false, fmt.Errorf("field %q: %w", key, err)
	}
	s.entries[key] = Entry{Value: v}
	return true, nil
}

// Replace overwrites a value keeping its touched flag. Used for system driven
// updates such as swapping an upload placeholder for its stored URL.
func (s *Store) Replace(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.kinds[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	v, err := Normalize(kind, value)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	e := s.entries[key]
	e.Value = v
	s.entries[key] = e
	return nil
}

func (s *Store) Kind(key string) (types.FieldKind, bool) {
	kind, ok := s.kinds[key]
	return kind, ok
}

// Snapshot returns a deep copy that later edits cannot affect.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make(map[string]Entry, len(s.entries))
	for key, e := range s.entries {
		entries[key] = Entry{Value: cloneValue(e.Value), Touched: e.Touched}
	}
	return Snapshot{entries: entries, kinds: s.kinds}
}
