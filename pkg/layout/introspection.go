package layout

import "github.com/aretw0/introspection"

// ManagerState is the observable state of a Manager.
type ManagerState struct {
	Initialized bool     `json:"initialized"`
	Directory   string   `json:"directory,omitempty"`
	Current     string   `json:"current"`
	Panels      int      `json:"panels"`
	Visible     int      `json:"visible"`
	Saved       []string `json:"saved"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	saved := m.ListLayouts()

	m.mu.RLock()
	defer m.mu.RUnlock()
	st := ManagerState{
		Initialized: m.initialized,
		Directory:   m.dir,
		Current:     m.current.Name,
		Panels:      len(m.current.Panels),
		Saved:       saved,
	}
	for _, p := range m.current.Panels {
		if p.Visible {
			st.Visible++
		}
	}
	return st
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "layout_manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
