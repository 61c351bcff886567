package plugin

import "github.com/aretw0/introspection"

// PluginState is the observable state of one loaded plugin.
type PluginState struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
	Panel   bool   `json:"panel"`
}

// ManagerState is the observable state of a Manager.
type ManagerState struct {
	Initialized bool          `json:"initialized"`
	Known       int           `json:"known"`
	Loaded      []PluginState `json:"loaded"`
	SharedKeys  []string      `json:"shared_keys"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()

	st := ManagerState{
		Initialized: initialized,
		Known:       m.registry.Count(),
		SharedKeys:  m.shared.Keys(),
	}
	for _, lp := range m.snapshot() {
		info := lp.plugin.Info()
		_, isPanel := lp.plugin.(Panel)
		st.Loaded = append(st.Loaded, PluginState{
			Name:    lp.ctx.Name(),
			Version: info.Version,
			Type:    lp.plugin.Type().String(),
			Enabled: lp.plugin.Enabled(),
			Panel:   isPanel,
		})
	}
	return st
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "plugin_manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
