// Package layout keeps the arrangement of panels and window settings and
// persists named layouts as JSON files. Layout files may contain comments
// and trailing commas.
package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"

	"github.com/aretw0/cosmarium/pkg/core"
)

// DefaultName is the layout selected at startup and saved at shutdown.
const DefaultName = "default"

// WindowPosition is the top-left corner of the window on screen.
type WindowPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WindowSettings describes the main window.
type WindowSettings struct {
	Width       float64         `json:"width"`
	Height      float64         `json:"height"`
	Maximized   bool            `json:"maximized"`
	Position    *WindowPosition `json:"position,omitempty"`
	AlwaysOnTop bool            `json:"always_on_top"`
	Decorations bool            `json:"decorations"`
	Alpha       float64         `json:"alpha"`
}

// DefaultWindow returns the settings of a fresh window.
func DefaultWindow() WindowSettings {
	return WindowSettings{Width: 1200, Height: 800, Decorations: true, Alpha: 1.0}
}

// Layout is a named panel arrangement.
type Layout struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Panels      map[uuid.UUID]core.Panel   `json:"panels"`
	Window      WindowSettings             `json:"window_settings"`
	Properties  map[string]json.RawMessage `json:"properties"`
}

// New returns an empty layout.
func New(name string) *Layout {
	return &Layout{
		Name:       name,
		Panels:     make(map[uuid.UUID]core.Panel),
		Window:     DefaultWindow(),
		Properties: make(map[string]json.RawMessage),
	}
}

// Parse decodes a layout from JSON or JSONC.
func Parse(data []byte) (*Layout, error) {
	l := New("")
	if err := json.Unmarshal(jsonc.ToJSON(data), l); err != nil {
		return nil, core.Wrap(core.KindJSON, "failed to parse layout", err)
	}
	if l.Panels == nil {
		l.Panels = make(map[uuid.UUID]core.Panel)
	}
	if l.Properties == nil {
		l.Properties = make(map[string]json.RawMessage)
	}
	return l, nil
}

// ReadFile parses the layout file at path. A layout without a name takes
// the file stem.
func ReadFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Wrap(core.KindIO, fmt.Sprintf("failed to read %s", path), err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if l.Name == "" {
		base := filepath.Base(path)
		l.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return l, nil
}

func (l *Layout) AddPanel(p core.Panel) { l.Panels[p.ID] = p }

// RemovePanel reports whether the panel was present.
func (l *Layout) RemovePanel(id uuid.UUID) bool {
	if _, ok := l.Panels[id]; !ok {
		return false
	}
	delete(l.Panels, id)
	return true
}

// PanelsByPosition returns the panels docked at pos ordered by title.
func (l *Layout) PanelsByPosition(pos core.PanelPosition) []core.Panel {
	var out []core.Panel
	for _, p := range l.Panels {
		if p.Position == pos {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// SetProperty stores v as JSON under key.
func (l *Layout) SetProperty(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return core.Wrap(core.KindJSON, fmt.Sprintf("failed to encode property %q", key), err)
	}
	l.Properties[key] = data
	return nil
}

// Property decodes the property stored under key. It reports false when
// the key is absent or does not decode into T.
func Property[T any](l *Layout, key string) (T, bool) {
	var v T
	raw, ok := l.Properties[key]
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// Clone returns a deep copy.
func (l *Layout) Clone() Layout {
	c := *l
	c.Panels = make(map[uuid.UUID]core.Panel, len(l.Panels))
	for id, p := range l.Panels {
		p.Settings = append(json.RawMessage(nil), p.Settings...)
		c.Panels[id] = p
	}
	c.Properties = make(map[string]json.RawMessage, len(l.Properties))
	for k, v := range l.Properties {
		c.Properties[k] = append(json.RawMessage(nil), v...)
	}
	if l.Window.Position != nil {
		pos := *l.Window.Position
		c.Window.Position = &pos
	}
	return c
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return core.Validation("name", fmt.Sprintf("invalid layout name %q", name))
	}
	return nil
}
