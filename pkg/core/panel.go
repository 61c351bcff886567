package core

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PanelPosition is the docking area of a panel.
type PanelPosition string

const (
	PanelLeft     PanelPosition = "left"
	PanelRight    PanelPosition = "right"
	PanelTop      PanelPosition = "top"
	PanelBottom   PanelPosition = "bottom"
	PanelFloating PanelPosition = "floating"
	PanelCenter   PanelPosition = "center"
)

// SizeKind selects how a PanelSize is interpreted.
type SizeKind string

const (
	SizeAuto       SizeKind = "auto"
	SizeFixed      SizeKind = "fixed"
	SizeFlexible   SizeKind = "flexible"
	SizePercentage SizeKind = "percentage"
)

// PanelSize is a sizing policy. Width and Height are pixels for Fixed,
// minimums for Flexible and fractions in [0,1] for Percentage.
type PanelSize struct {
	Kind   SizeKind `json:"kind"`
	Width  float64  `json:"width,omitempty"`
	Height float64  `json:"height,omitempty"`
}

func AutoSize() PanelSize { return PanelSize{Kind: SizeAuto} }
func FixedSize(w, h float64) PanelSize { return PanelSize{Kind: SizeFixed, Width: w, Height: h} }
func FlexibleSize(minW, minH float64) PanelSize { return PanelSize{Kind: SizeFlexible, Width: minW, Height: minH} }
func PercentageSize(w, h float64) PanelSize { return PanelSize{Kind: SizePercentage, Width: w, Height: h} }

func (s PanelSize) String() string {
	if s.Kind == SizeAuto {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s(%gx%g)", s.Kind, s.Width, s.Height)
}

// Panel is the layout record of a dockable panel.
type Panel struct {
	ID       uuid.UUID       `json:"id"`
	Title    string          `json:"title"`
	Position PanelPosition   `json:"position"`
	Size     PanelSize       `json:"size"`
	Visible  bool            `json:"visible"`
	Closable bool            `json:"closable"`
	Plugin   string          `json:"plugin,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// PanelID derives a stable panel id from its title.
func PanelID(title string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(title))
}

// ContextMenuItem is an entry of a panel context menu.
type ContextMenuItem struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Separator bool   `json:"separator,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// MenuItem returns an enabled item.
func MenuItem(id, label string) ContextMenuItem {
	return ContextMenuItem{ID: id, Label: label, Enabled: true}
}

// Separator returns a separator item.
func Separator() ContextMenuItem {
	return ContextMenuItem{Separator: true}
}
