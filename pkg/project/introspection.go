package project

import "github.com/aretw0/introspection"

// ManagerState is the observable state of a Manager.
type ManagerState struct {
	Initialized bool     `json:"initialized"`
	Active      string   `json:"active,omitempty"`
	Path        string   `json:"path,omitempty"`
	Dirty       bool     `json:"dirty"`
	Documents   int      `json:"documents"`
	Recent      []string `json:"recent"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := ManagerState{
		Initialized: m.initialized,
		Recent:      append([]string(nil), m.recent...),
	}
	if p := m.current; p != nil {
		st.Active = p.Name()
		st.Path = p.Path
		st.Dirty = p.Dirty()
		st.Documents = len(p.Documents)
	}
	return st
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "project_manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
