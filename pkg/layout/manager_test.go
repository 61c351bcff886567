package layout

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cosmarium/pkg/core"
)

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Emit(e core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(t core.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T, dir string) (*Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := NewManager(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithEmitter(rec),
		WithDirectory(dir),
	)
	require.NoError(t, m.Initialize(context.Background()))
	return m, rec
}

func outlinePanel() core.Panel {
	return core.Panel{
		ID:       core.PanelID("Outline"),
		Title:    "Outline",
		Position: core.PanelLeft,
		Size:     core.FixedSize(250, 400),
		Visible:  true,
		Closable: true,
		Plugin:   "outline",
	}
}

func TestInitializeWithoutStoredLayouts(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir())
	cur := m.Current()
	assert.Equal(t, DefaultName, cur.Name)
	assert.Empty(t, cur.Panels)
	assert.Equal(t, DefaultWindow(), cur.Window)
	assert.Empty(t, m.ListLayouts())
}

func TestPanelEvents(t *testing.T) {
	m, rec := newTestManager(t, t.TempDir())
	p := outlinePanel()

	m.AddPanel(p)
	assert.Equal(t, 1, rec.count(core.LayoutChanged))

	require.NoError(t, m.SetPanelVisible(p.ID, false))
	assert.Equal(t, 1, rec.count(core.PanelClosed))
	assert.Equal(t, 2, rec.count(core.LayoutChanged))

	// no change, no events
	require.NoError(t, m.SetPanelVisible(p.ID, false))
	assert.Equal(t, 2, rec.count(core.LayoutChanged))

	require.NoError(t, m.SetPanelVisible(p.ID, true))
	assert.Equal(t, 1, rec.count(core.PanelOpened))

	require.NoError(t, m.UpdatePanel(p.ID, func(p *core.Panel) { p.Position = core.PanelRight }))
	assert.Len(t, m.PanelsByPosition(core.PanelRight), 1)
	assert.Empty(t, m.PanelsByPosition(core.PanelLeft))

	assert.True(t, m.RemovePanel(p.ID))
	assert.False(t, m.RemovePanel(p.ID))
	_, ok := m.Panel(p.ID)
	assert.False(t, ok)

	err := m.SetPanelVisible(p.ID, true)
	assert.ErrorIs(t, err, core.ErrNotFound)
	err = m.UpdatePanel(p.ID, func(*core.Panel) {})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSaveAndLoadLayout(t *testing.T) {
	dir := t.TempDir()
	m, rec := newTestManager(t, dir)
	m.AddPanel(outlinePanel())
	require.NoError(t, m.SaveLayout("writing"))
	assert.FileExists(t, filepath.Join(dir, "writing.json"))

	m.RemovePanel(core.PanelID("Outline"))
	assert.Empty(t, m.Current().Panels)

	before := rec.count(core.LayoutChanged)
	require.NoError(t, m.LoadLayout("writing"))
	assert.Equal(t, before+1, rec.count(core.LayoutChanged))
	cur := m.Current()
	assert.Equal(t, "writing", cur.Name)
	assert.Equal(t, outlinePanel(), cur.Panels[core.PanelID("Outline")])

	// a fresh manager picks the file up
	other, _ := newTestManager(t, dir)
	assert.Equal(t, []string{"writing"}, other.ListLayouts())
}

func TestLoadLayoutWithComments(t *testing.T) {
	dir := t.TempDir()
	id := core.PanelID("Outline")
	data := `{
	// hand edited
	"description": "focus mode",
	"panels": {
		"` + id.String() + `": {
			"id": "` + id.String() + `",
			"title": "Outline",
			"position": "left",
			"visible": false, /* hidden while writing */
		},
	},
	"window_settings": {"width": 800, "height": 600, "decorations": true, "alpha": 1,},
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "focus.json"), []byte(data), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))

	m, _ := newTestManager(t, dir)
	assert.Equal(t, []string{"focus"}, m.ListLayouts())

	require.NoError(t, m.LoadLayout("focus"))
	cur := m.Current()
	assert.Equal(t, "focus", cur.Name)
	assert.Equal(t, "focus mode", cur.Description)
	assert.Equal(t, 800.0, cur.Window.Width)
	p, ok := m.Panel(id)
	require.True(t, ok)
	assert.False(t, p.Visible)
}

func TestLoadUnknownLayout(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir())
	err := m.LoadLayout("nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = m.LoadLayout("../escape")
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestDeleteLayout(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, dir)
	require.NoError(t, m.SaveLayout(DefaultName))
	require.NoError(t, m.SaveLayout("spare"))

	assert.Error(t, m.DeleteLayout(DefaultName))
	require.NoError(t, m.DeleteLayout("spare"))
	assert.NoFileExists(t, filepath.Join(dir, "spare.json"))
	assert.Equal(t, []string{DefaultName}, m.ListLayouts())

	assert.ErrorIs(t, m.DeleteLayout("spare"), core.ErrNotFound)
}

func TestEnsurePanelsKeepsUserChoices(t *testing.T) {
	m, rec := newTestManager(t, t.TempDir())
	hidden := outlinePanel()
	hidden.Visible = false
	m.AddPanel(hidden)

	atmosphere := core.Panel{ID: core.PanelID("Atmosphere"), Title: "Atmosphere", Position: core.PanelRight, Visible: true}
	added := m.EnsurePanels([]core.Panel{outlinePanel(), atmosphere})
	assert.Equal(t, 1, added)

	p, _ := m.Panel(hidden.ID)
	assert.False(t, p.Visible)
	_, ok := m.Panel(atmosphere.ID)
	assert.True(t, ok)

	changes := rec.count(core.LayoutChanged)
	assert.Zero(t, m.EnsurePanels([]core.Panel{atmosphere}))
	assert.Equal(t, changes, rec.count(core.LayoutChanged))
}

func TestShutdownSavesDefault(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, dir)
	m.AddPanel(outlinePanel())
	require.NoError(t, m.Shutdown(context.Background()))

	next, _ := newTestManager(t, dir)
	cur := next.Current()
	assert.Equal(t, DefaultName, cur.Name)
	assert.Contains(t, cur.Panels, core.PanelID("Outline"))
}

func TestLayoutProperties(t *testing.T) {
	l := New("props")
	require.NoError(t, l.SetProperty("split", 0.3))

	v, ok := Property[float64](l, "split")
	require.True(t, ok)
	assert.Equal(t, 0.3, v)

	_, ok = Property[string](l, "split")
	assert.False(t, ok)
	_, ok = Property[int](l, "missing")
	assert.False(t, ok)

	c := l.Clone()
	c.Properties["split"][0] = '9'
	v, _ = Property[float64](l, "split")
	assert.Equal(t, 0.3, v)
}
