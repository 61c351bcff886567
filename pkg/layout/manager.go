package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/aretw0/cosmarium/pkg/adapters/fs"
	"github.com/aretw0/cosmarium/pkg/core"
)

// Emitter receives layout and panel events.
type Emitter interface {
	Emit(e core.Event) error
}

// MetadataPanelID is set on panel events.
const MetadataPanelID = "panel_id"

type options struct {
	logger  *slog.Logger
	emitter Emitter
	dir     string
}

// Option configures a Manager.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithEmitter(e Emitter) Option {
	return func(o *options) {
		o.emitter = e
	}
}

// WithDirectory sets where layout files are stored. Without it layouts
// are kept in memory only.
func WithDirectory(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// Manager holds the current layout and the named layouts known on disk.
type Manager struct {
	logger  *slog.Logger
	emitter Emitter
	dir     string

	mu          sync.RWMutex
	initialized bool
	current     *Layout
	saved       map[string]*Layout
}

// NewManager returns a manager whose current layout is an empty default.
func NewManager(opts ...Option) *Manager {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:  logger.With("component", "layout_manager"),
		emitter: o.emitter,
		dir:     o.dir,
		current: New(DefaultName),
		saved:   make(map[string]*Layout),
	}
}

// Initialize reads every layout file in the directory and selects the
// default layout, keeping the built-in one when none is stored. Files
// that fail to parse are logged and skipped.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		m.logger.Warn("layout manager already initialized")
		return nil
	}

	if m.dir != "" {
		if err := os.MkdirAll(m.dir, 0755); err != nil {
			return core.Wrap(core.KindLayout, "failed to create layout directory", err)
		}
		names, err := doublestar.Glob(os.DirFS(m.dir), "*.json")
		if err != nil {
			return core.Wrap(core.KindLayout, "failed to list layouts", err)
		}
		for _, name := range names {
			l, err := ReadFile(filepath.Join(m.dir, name))
			if err != nil {
				m.logger.Warn("skipping layout file", "file", name, "error", err)
				continue
			}
			m.saved[l.Name] = l
		}
	}

	if l, ok := m.saved[DefaultName]; ok {
		c := l.Clone()
		m.current = &c
	} else {
		m.logger.Debug("no stored default layout, using built-in")
	}
	m.initialized = true
	return nil
}

// Current returns a copy of the current layout.
func (m *Manager) Current() Layout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Panel returns the panel record with the given id.
func (m *Manager) Panel(id uuid.UUID) (core.Panel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.current.Panels[id]
	return p, ok
}

// PanelsByPosition returns the current panels docked at pos.
func (m *Manager) PanelsByPosition(pos core.PanelPosition) []core.Panel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.PanelsByPosition(pos)
}

// AddPanel adds or replaces a panel record.
func (m *Manager) AddPanel(p core.Panel) {
	m.mu.Lock()
	m.current.AddPanel(p)
	m.mu.Unlock()
	m.changed()
}

// RemovePanel reports whether the panel existed.
func (m *Manager) RemovePanel(id uuid.UUID) bool {
	m.mu.Lock()
	removed := m.current.RemovePanel(id)
	m.mu.Unlock()
	if removed {
		m.changed()
	}
	return removed
}

// UpdatePanel applies fn to a panel record. The id cannot be changed.
func (m *Manager) UpdatePanel(id uuid.UUID, fn func(*core.Panel)) error {
	m.mu.Lock()
	p, ok := m.current.Panels[id]
	if !ok {
		m.mu.Unlock()
		return panelNotFound(id)
	}
	fn(&p)
	p.ID = id
	m.current.Panels[id] = p
	m.mu.Unlock()
	m.changed()
	return nil
}

// SetPanelVisible shows or hides a panel, emitting PanelOpened or
// PanelClosed when the visibility changes.
func (m *Manager) SetPanelVisible(id uuid.UUID, visible bool) error {
	m.mu.Lock()
	p, ok := m.current.Panels[id]
	if !ok {
		m.mu.Unlock()
		return panelNotFound(id)
	}
	if p.Visible == visible {
		m.mu.Unlock()
		return nil
	}
	p.Visible = visible
	m.current.Panels[id] = p
	m.mu.Unlock()

	t, verb := core.PanelClosed, "Closed panel: "
	if visible {
		t, verb = core.PanelOpened, "Opened panel: "
	}
	m.emit(core.NewEvent(t, verb+p.Title).WithMetadata(MetadataPanelID, id.String()))
	m.changed()
	return nil
}

// EnsurePanels adds the records whose id is not in the current layout and
// returns how many were added. Existing records keep the user's choices.
func (m *Manager) EnsurePanels(panels []core.Panel) int {
	m.mu.Lock()
	added := 0
	for _, p := range panels {
		if _, ok := m.current.Panels[p.ID]; ok {
			continue
		}
		m.current.AddPanel(p)
		added++
	}
	m.mu.Unlock()
	if added > 0 {
		m.changed()
	}
	return added
}

// SetWindow replaces the window settings.
func (m *Manager) SetWindow(w WindowSettings) {
	m.mu.Lock()
	m.current.Window = w
	m.mu.Unlock()
	m.changed()
}

// SaveLayout stores the current layout under name.
func (m *Manager) SaveLayout(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	m.mu.Lock()
	snap := m.current.Clone()
	snap.Name = name
	m.saved[name] = &snap
	m.mu.Unlock()

	if m.dir == "" {
		return nil
	}
	if err := fs.WriteJSON(m.path(name), snap); err != nil {
		return core.Wrap(core.KindLayout, fmt.Sprintf("failed to save layout %q", name), err)
	}
	m.logger.Debug("layout saved", "name", name)
	return nil
}

// LoadLayout makes the layout stored under name current. The file on
// disk wins over the copy read at startup.
func (m *Manager) LoadLayout(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	var loaded *Layout
	if m.dir != "" {
		l, err := ReadFile(m.path(name))
		switch {
		case err == nil:
			loaded = l
		case !errors.Is(err, os.ErrNotExist):
			return core.Wrap(core.KindLayout, fmt.Sprintf("failed to load layout %q", name), err)
		}
	}

	m.mu.Lock()
	if loaded == nil {
		l, ok := m.saved[name]
		if !ok {
			m.mu.Unlock()
			return core.Errorf(core.KindNotFound, "layout %q: %w", name, core.ErrNotFound)
		}
		loaded = l
	}
	c := loaded.Clone()
	m.current = &c
	m.saved[name] = loaded
	m.mu.Unlock()

	m.changed()
	return nil
}

// ListLayouts returns the saved layout names, sorted.
func (m *Manager) ListLayouts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.saved))
	for name := range m.saved {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeleteLayout removes a saved layout. The default layout cannot be
// deleted.
func (m *Manager) DeleteLayout(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if name == DefaultName {
		return core.Errorf(core.KindLayout, "the %s layout cannot be deleted", DefaultName)
	}

	m.mu.Lock()
	_, ok := m.saved[name]
	delete(m.saved, name)
	m.mu.Unlock()
	if !ok {
		return core.Errorf(core.KindNotFound, "layout %q: %w", name, core.ErrNotFound)
	}

	if m.dir != "" {
		if err := os.Remove(m.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return core.Wrap(core.KindLayout, fmt.Sprintf("failed to delete layout %q", name), err)
		}
	}
	return nil
}

// Update is the per-frame hook. Layout changes are event driven so there
// is nothing to do.
func (m *Manager) Update(ctx context.Context) error { return nil }

// Shutdown saves the current layout as the default one.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()
	if !initialized {
		return nil
	}

	err := m.SaveLayout(DefaultName)
	m.mu.Lock()
	m.initialized = false
	m.mu.Unlock()
	return err
}

func (m *Manager) path(name string) string { return filepath.Join(m.dir, name+".json") }

func (m *Manager) changed() {
	m.emit(core.NewEvent(core.LayoutChanged, "Layout configuration changed"))
}

func (m *Manager) emit(e core.Event) {
	if m.emitter == nil {
		return
	}
	if err := m.emitter.Emit(e); err != nil {
		m.logger.Warn("failed to emit event", "type", e.Type, "error", err)
	}
}

func panelNotFound(id uuid.UUID) error {
	return core.Errorf(core.KindNotFound, "panel %s: %w", id, core.ErrNotFound)
}
