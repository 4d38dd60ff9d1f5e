package draft

import (
	"maps"
	"slices"

	"github.com/tbxark/stepform/types"
)

// Snapshot is an immutable copy of the draft. Accessors return copies.
type Snapshot struct {
	entries map[string]Entry
	kinds   map[string]types.FieldKind
}

// NewSnapshot builds a snapshot from plain values, mostly for tests and
// validators invoked outside a session.
func NewSnapshot(kinds map[string]types.FieldKind, values map[string]any, touched ...string) (Snapshot, error) {
	s := NewStore(kinds)
	for key, value := range values {
		if _, err := s.Adopt(key, value); err != nil {
			return Snapshot{}, err
		}
	}
	if len(touched) > 0 {
		partial := make(map[string]any, len(touched))
		for _, key := range touched {
			v, _ := s.Get(key)
			partial[key] = v
		}
		if err := s.SetMany(partial); err != nil {
			return Snapshot{}, err
		}
	}
	return s.Snapshot(), nil
}

func (s Snapshot) Value(key string) (any, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return cloneValue(e.Value), true
}

func (s Snapshot) Text(key string) string {
	v, _ := s.entries[key].Value.(string)
	return v
}

func (s Snapshot) List(key string) []string {
	v, _ := s.entries[key].Value.([]string)
	return slices.Clone(v)
}

func (s Snapshot) File(key string) types.FileRef {
	v, _ := s.entries[key].Value.(types.FileRef)
	return v
}

func (s Snapshot) Touched(key string) bool {
	return s.entries[key].Touched
}

func (s Snapshot) Kind(key string) types.FieldKind {
	return s.kinds[key]
}

func (s Snapshot) Keys() []string {
	return slices.Sorted(maps.Keys(s.entries))
}

// Values returns plain values for the given keys, or for all keys when none
// are given.
func (s Snapshot) Values(keys ...string) map[string]any {
	if len(keys) == 0 {
		keys = s.Keys()
	}
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if e, ok := s.entries[key]; ok {
			out[key] = cloneValue(e.Value)
		}
	}
	return out
}

// Wire returns the values for keys as a gateway expects them: file fields
// carry their persisted URL and are omitted when only a local preview exists.
func (s Snapshot) Wire(keys ...string) map[string]any {
	values := s.Values(keys...)
	for key, value := range values {
		ref, ok := value.(types.FileRef)
		if !ok {
			continue
		}
		if ref.URL == "" || ref.Staged() {
			delete(values, key)
			continue
		}
		values[key] = ref.URL
	}
	return values
}
