package app

import (
	"github.com/aretw0/introspection"
	"github.com/google/uuid"

	"github.com/aretw0/cosmarium/pkg/core"
)

// State is the observable state of an Application and its components.
type State struct {
	Initialized    bool                           `json:"initialized"`
	Version        string                         `json:"version"`
	Frames         uint64                         `json:"frames"`
	ActiveDocument string                         `json:"active_document,omitempty"`
	Project        string                         `json:"project,omitempty"`
	Components     map[string]core.ComponentState `json:"components,omitempty"`
}

// State implements introspection.Introspectable.
func (a *Application) State() any {
	a.mu.Lock()
	st := State{
		Initialized: a.initialized,
		Version:     Version,
		Frames:      a.frames,
	}
	active := a.active
	a.mu.Unlock()

	if !st.Initialized {
		return st
	}
	if active != uuid.Nil {
		st.ActiveDocument = active.String()
	}
	if p, ok := a.projects.Current(); ok {
		st.Project = p.Path
	}
	st.Components = core.Snapshot(map[string]any{
		"events":    a.bus,
		"plugins":   a.plugins,
		"projects":  a.projects,
		"documents": a.documents,
		"layout":    a.layout,
		"tasks":     a.tasks,
	})
	return st
}

// ComponentType implements introspection.Component.
func (a *Application) ComponentType() string {
	return "application"
}

var _ introspection.Introspectable = (*Application)(nil)
var _ introspection.Component = (*Application)(nil)
