package core

import (
	"github.com/aretw0/introspection"
)

// ComponentState is one entry of an aggregated state snapshot.
type ComponentState struct {
	Type  string `json:"type"`
	State any    `json:"state,omitempty"`
}

// Snapshot collects the state of every introspectable component.
// Components that are not introspectable are reported by type only.
func Snapshot(components map[string]any) map[string]ComponentState {
	out := make(map[string]ComponentState, len(components))
	for name, c := range components {
		if c == nil {
			continue
		}
		cs := ComponentState{Type: "unknown"}
		if comp, ok := c.(introspection.Component); ok {
			cs.Type = comp.ComponentType()
		}
		if in, ok := c.(introspection.Introspectable); ok {
			cs.State = in.State()
		}
		out[name] = cs
	}
	return out
}
