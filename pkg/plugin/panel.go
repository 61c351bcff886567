package plugin

import "github.com/aretw0/cosmarium/pkg/core"

// DefaultPanelIcon is shown when a panel does not provide one.
const DefaultPanelIcon = "🔌"

// Panel is the optional capability of plugins that render into a dockable
// area of the UI.
type Panel interface {
	Plugin
	Title() string
	Icon() string
	DefaultPosition() core.PanelPosition
	DefaultSize() core.PanelSize
	Closable() bool
	DefaultOpen() bool
	OnOpen(ctx *Context) error
	OnClose(ctx *Context) error
	ContextMenuItems() []core.ContextMenuItem
	HandleContextMenu(id string, ctx *Context) error
}

// PanelBase supplies the default panel behavior. Embedders still provide
// Title.
type PanelBase struct{}

func (PanelBase) Icon() string { return DefaultPanelIcon }
func (PanelBase) DefaultPosition() core.PanelPosition { return core.PanelRight }
func (PanelBase) DefaultSize() core.PanelSize { return core.FlexibleSize(200, 100) }
func (PanelBase) Closable() bool { return true }
func (PanelBase) DefaultOpen() bool { return false }
func (PanelBase) OnOpen(ctx *Context) error { return nil }
func (PanelBase) OnClose(ctx *Context) error { return nil }
func (PanelBase) ContextMenuItems() []core.ContextMenuItem { return nil }
func (PanelBase) HandleContextMenu(id string, ctx *Context) error {
	return nil
}

// PanelRecord builds the layout record for p.
func PanelRecord(p Panel) core.Panel {
	return core.Panel{
		ID:       core.PanelID(p.Title()),
		Title:    p.Title(),
		Position: p.DefaultPosition(),
		Size:     p.DefaultSize(),
		Visible:  p.DefaultOpen(),
		Closable: p.Closable(),
		Plugin:   p.Info().Name,
	}
}
