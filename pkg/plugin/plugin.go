// Package plugin defines the plugin API and the manager that loads,
// updates and unloads plugins.
package plugin

import (
	"slices"
	"sync/atomic"
)

// Info describes a plugin. It doubles as the schema of plugin.toml
// manifests.
type Info struct {
	Name           string   `toml:"name" json:"name"`
	Version        string   `toml:"version" json:"version"`
	Description    string   `toml:"description" json:"description"`
	Author         string   `toml:"author" json:"author"`
	Dependencies   []string `toml:"dependencies" json:"dependencies,omitempty"`
	MinCoreVersion string   `toml:"min_core_version" json:"min_core_version,omitempty"`
}

// NewInfo returns plugin metadata without dependencies.
func NewInfo(name, version, description, author string) Info {
	return Info{Name: name, Version: version, Description: description, Author: author}
}

// WithDependency returns a copy of i depending on dep.
func (i Info) WithDependency(dep string) Info {
	if slices.Contains(i.Dependencies, dep) {
		return i
	}
	i.Dependencies = append(slices.Clone(i.Dependencies), dep)
	return i
}

// WithMinCoreVersion returns a copy of i requiring at least version v of
// the host.
func (i Info) WithMinCoreVersion(v string) Info {
	i.MinCoreVersion = v
	return i
}

// Type is the functional category of a plugin.
type Type uint8

const (
	TypePanel Type = iota
	TypeEditor
	TypeExport
	TypeAI
	TypeAnalysis
	TypeImport
	TypeCollaboration
	TypeTheme
	TypeUtility
)

var typeNames = [...]string{
	TypePanel:         "Panel",
	TypeEditor:        "Editor",
	TypeExport:        "Export",
	TypeAI:            "AI Assistant",
	TypeAnalysis:      "Analysis",
	TypeImport:        "Import",
	TypeCollaboration: "Collaboration",
	TypeTheme:         "Theme",
	TypeUtility:       "Utility",
}

// Types returns every plugin type.
func Types() []Type {
	out := make([]Type, len(typeNames))
	for i := range typeNames {
		out[i] = Type(i)
	}
	return out
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Plugin is a unit of functionality driven by the Manager. Initialize is
// called once after construction, Update once per frame while enabled,
// and Shutdown once before the plugin is dropped.
type Plugin interface {
	Info() Info
	Type() Type
	Initialize(ctx *Context) error
	Update(ctx *Context) error
	Shutdown(ctx *Context) error
	Enabled() bool
	SetEnabled(enabled bool)
}

// Base provides the enable flag and no-op lifecycle hooks. Plugins embed
// it and override what they need. The zero value is enabled.
type Base struct {
	disabled atomic.Bool
}

func (b *Base) Enabled() bool { return !b.disabled.Load() }
func (b *Base) SetEnabled(enabled bool) { b.disabled.Store(!enabled) }
func (b *Base) Initialize(ctx *Context) error { return nil }
func (b *Base) Update(ctx *Context) error { return nil }
func (b *Base) Shutdown(ctx *Context) error { return nil }
func (b *Base) Type() Type { return TypeUtility }
