package plugin

import (
	"sort"
	"sync"
)

// SourceBuiltin marks registry entries backed by a compiled-in factory.
const SourceBuiltin = "builtin"

// Entry is the registry record of a known plugin.
type Entry struct {
	Info   Info   `json:"info"`
	Source string `json:"source"` // SourceBuiltin or the manifest path
}

// Builtin reports whether the entry has a compiled-in implementation.
func (e Entry) Builtin() bool { return e.Source == SourceBuiltin }

// Registry holds metadata of every plugin the manager knows about, loaded
// or not.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds or replaces an entry. A manifest never replaces a builtin
// entry of the same name.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[e.Info.Name]; ok && cur.Builtin() && !e.Builtin() {
		return
	}
	r.entries[e.Info.Name] = e
}

func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns all entries ordered by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Info.Name < out[j].Info.Name })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
