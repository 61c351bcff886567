package plugin

import (
	"reflect"
	"sort"
	"sync"

	"github.com/aretw0/cosmarium/pkg/core"
)

type sharedEntry struct {
	value   any
	typ     reflect.Type
	version uint64
}

// SharedState is a string keyed store where every value remembers the
// type it was stored with. Individual operations are atomic; sequences of
// them are not.
type SharedState struct {
	mu      sync.RWMutex
	entries map[string]sharedEntry
	clock   uint64
}

// NewSharedState creates an empty store.
func NewSharedState() *SharedState {
	return &SharedState{entries: make(map[string]sharedEntry)}
}

// Set stores v under key with type T, replacing any previous value.
func Set[T any](s *SharedState, key string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock++
	s.entries[key] = sharedEntry{value: v, typ: reflect.TypeFor[T](), version: s.clock}
}

// Get returns the value stored under key. It fails with core.ErrNotFound
// when the key is absent and core.ErrTypeMismatch when it was stored with
// a type other than T.
func Get[T any](s *SharedState, key string) (T, error) {
	var zero T
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return zero, core.Wrap(core.KindPlugin, "shared state key "+key, core.ErrNotFound)
	}
	want := reflect.TypeFor[T]()
	if e.typ != want {
		return zero, core.Errorf(core.KindPlugin, "shared state key %q holds %s, requested %s: %w",
			key, e.typ, want, core.ErrTypeMismatch)
	}
	if e.value == nil {
		return zero, nil
	}
	return e.value.(T), nil
}

// Lookup is Get folding both failures into absence.
func Lookup[T any](s *SharedState, key string) (T, bool) {
	v, err := Get[T](s, key)
	return v, err == nil
}

// Contains reports whether key holds a value of any type.
func (s *SharedState) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// Remove deletes key and reports whether it existed.
func (s *SharedState) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// Keys returns the stored keys in lexical order.
func (s *SharedState) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (s *SharedState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Version returns a counter that changes every time key is set, or 0 when
// key is absent. Readers use it to skip work when nothing changed.
func (s *SharedState) Version(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].version
}

// TypeOf returns the type key was stored with, or nil.
func (s *SharedState) TypeOf(key string) reflect.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].typ
}
