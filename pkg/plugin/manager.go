package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/aretw0/cosmarium/pkg/core"
)

type loadedPlugin struct {
	plugin Plugin
	ctx    *Context
}

// Manager owns the plugin registry and the loaded plugin instances. Every
// loaded plugin gets its own Context; all contexts share one SharedState.
type Manager struct {
	logger      *slog.Logger
	emitter     Emitter
	shared      *SharedState
	directories []string
	factories   map[string]Factory
	coreVersion string
	settings    map[string]map[string]any
	registry    *Registry

	// opMu serializes load, unload and shutdown.
	opMu sync.Mutex

	mu          sync.RWMutex
	initialized bool
	loaded      map[string]*loadedPlugin
	order       []string
	projectPath string
}

// NewManager creates an uninitialized manager.
func NewManager(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	shared := o.shared
	if shared == nil {
		shared = NewSharedState()
	}
	return &Manager{
		logger:      logger.With("component", "plugin_manager"),
		emitter:     o.emitter,
		shared:      shared,
		directories: o.directories,
		factories:   o.factories,
		coreVersion: o.coreVersion,
		settings:    o.settings,
		registry:    NewRegistry(),
		loaded:      make(map[string]*loadedPlugin),
	}
}

// Initialize registers the built-in plugins and the manifests found in the
// plugin directories. Discovered plugins without a built-in factory are
// listed but cannot be loaded.
func (m *Manager) Initialize(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		m.logger.Warn("plugin manager already initialized")
		return nil
	}
	m.mu.Unlock()

	for name, f := range m.factories {
		info := f().Info()
		if info.Name == "" {
			info.Name = name
		}
		m.registry.Register(Entry{Info: info, Source: SourceBuiltin})
	}

	found, err := Discover(m.directories)
	if err != nil {
		m.logger.Warn("plugin discovery reported errors", "error", err)
	}
	for _, e := range found {
		m.registry.Register(e)
		m.logger.Debug("plugin manifest discovered", "name", e.Info.Name, "path", e.Source)
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	m.logger.Info("plugin manager initialized", "known", m.registry.Count())
	return nil
}

// Registry returns the plugin metadata registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Shared returns the shared state store of all plugin contexts.
func (m *Manager) Shared() *SharedState { return m.shared }

// Load constructs and initializes the named plugin, loading its
// dependencies first. Loading an already loaded plugin logs a warning.
func (m *Manager) Load(ctx context.Context, name string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()
	if !initialized {
		return core.Wrap(core.KindPlugin, "plugin manager", core.ErrNotInitialized)
	}
	if m.IsLoaded(name) {
		m.logger.Warn("plugin already loaded", "name", name)
		return nil
	}
	return m.load(ctx, name, nil)
}

func (m *Manager) load(ctx context.Context, name string, chain []string) error {
	if m.IsLoaded(name) {
		return nil
	}
	if slices.Contains(chain, name) {
		return core.Errorf(core.KindPlugin, "%s -> %s: %w",
			strings.Join(chain, " -> "), name, core.ErrCyclicDependency)
	}

	factory, ok := m.factories[name]
	if !ok {
		if m.registry.Has(name) {
			return core.Errorf(core.KindPlugin, "plugin %q has no built-in implementation", name)
		}
		return core.Errorf(core.KindPlugin, "unknown plugin %q: %w", name, core.ErrNotFound)
	}

	p := factory()
	info := p.Info()
	if err := m.checkCoreVersion(info); err != nil {
		return err
	}

	for _, dep := range info.Dependencies {
		if _, ok := m.factories[dep]; !ok && !m.IsLoaded(dep) {
			return core.Errorf(core.KindNotFound, "dependency %q of plugin %q: %w", dep, name, core.ErrNotFound)
		}
		if err := m.load(ctx, dep, append(chain, name)); err != nil {
			if errors.Is(err, core.ErrCyclicDependency) {
				return err
			}
			return core.Errorf(core.KindPlugin, "failed to load dependency %q of %q: %w", dep, name, err)
		}
	}

	m.mu.RLock()
	projectPath := m.projectPath
	m.mu.RUnlock()

	pctx := NewContext(context.WithoutCancel(ctx), ContextConfig{
		Name:        name,
		Shared:      m.shared,
		Emitter:     m.emitter,
		Logger:      m.logger,
		Settings:    m.settings[name],
		ProjectPath: projectPath,
	})

	if err := safeCall(func() error { return p.Initialize(pctx) }); err != nil {
		pctx.close()
		return core.Errorf(core.KindPlugin, "failed to initialize plugin %q: %w", name, err)
	}

	m.mu.Lock()
	m.loaded[name] = &loadedPlugin{plugin: p, ctx: pctx}
	m.order = append(m.order, name)
	m.mu.Unlock()

	m.logger.Info("plugin loaded", "name", name, "version", info.Version)
	m.emit(core.NewEvent(core.PluginLoaded, name))
	return nil
}

func (m *Manager) checkCoreVersion(info Info) error {
	if info.MinCoreVersion == "" || m.coreVersion == "" {
		return nil
	}
	required := canonicalVersion(info.MinCoreVersion)
	if !semver.IsValid(required) {
		return core.Validation("min_core_version",
			fmt.Sprintf("plugin %q declares invalid version %q", info.Name, info.MinCoreVersion))
	}
	if semver.Compare(canonicalVersion(m.coreVersion), required) < 0 {
		return core.Errorf(core.KindPlugin, "plugin %q requires core %s, running %s",
			info.Name, info.MinCoreVersion, m.coreVersion)
	}
	return nil
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// LoadEnabled loads every name in enabled that is not in disabled. All
// failures are logged and returned joined; successful loads are kept.
func (m *Manager) LoadEnabled(ctx context.Context, enabled, disabled []string) error {
	var errs []error
	for _, name := range enabled {
		if slices.Contains(disabled, name) {
			m.logger.Debug("plugin disabled by configuration", "name", name)
			continue
		}
		if m.IsLoaded(name) {
			continue
		}
		if err := m.Load(ctx, name); err != nil {
			m.logger.Error("failed to load plugin", "name", name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unload shuts the plugin down and drops it. Plugins that other loaded
// plugins depend on cannot be unloaded.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	lp, ok := m.loaded[name]
	var dependents []string
	for _, other := range m.order {
		if other == name {
			continue
		}
		if slices.Contains(m.loaded[other].plugin.Info().Dependencies, name) {
			dependents = append(dependents, other)
		}
	}
	m.mu.RUnlock()

	if !ok {
		return core.Errorf(core.KindPlugin, "plugin %q is not loaded: %w", name, core.ErrNotFound)
	}
	if len(dependents) > 0 {
		return core.Errorf(core.KindPlugin, "plugin %q is required by %s", name, strings.Join(dependents, ", "))
	}

	err := safeCall(func() error { return lp.plugin.Shutdown(lp.ctx) })
	lp.ctx.close()

	m.mu.Lock()
	delete(m.loaded, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
	m.mu.Unlock()

	m.logger.Info("plugin unloaded", "name", name)
	m.emit(core.NewEvent(core.PluginUnloaded, name))
	if err != nil {
		return core.Errorf(core.KindPlugin, "plugin %q shutdown failed: %w", name, err)
	}
	return nil
}

// Enable turns a loaded plugin on.
func (m *Manager) Enable(name string) error { return m.setEnabled(name, true) }

// Disable turns a loaded plugin off; it stays loaded but is skipped by
// Update.
func (m *Manager) Disable(name string) error { return m.setEnabled(name, false) }

func (m *Manager) setEnabled(name string, enabled bool) error {
	p, ok := m.Plugin(name)
	if !ok {
		return core.Errorf(core.KindPlugin, "plugin %q is not loaded: %w", name, core.ErrNotFound)
	}
	if p.Enabled() == enabled {
		return nil
	}
	p.SetEnabled(enabled)
	t := core.PluginDisabled
	if enabled {
		t = core.PluginEnabled
	}
	m.emit(core.NewEvent(t, name))
	return nil
}

// Update forwards the frame tick to every enabled plugin in load order.
// Failures are logged and never stop the frame.
func (m *Manager) Update(ctx context.Context) {
	for _, lp := range m.snapshot() {
		if !lp.plugin.Enabled() {
			continue
		}
		if err := safeCall(func() error { return lp.plugin.Update(lp.ctx) }); err != nil {
			m.logger.Error("plugin update failed", "name", lp.ctx.Name(), "error", err)
		}
	}
}

// Shutdown shuts every plugin down in reverse load order and clears the
// manager.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	loaded := m.snapshot()
	for i := len(loaded) - 1; i >= 0; i-- {
		lp := loaded[i]
		if err := safeCall(func() error { return lp.plugin.Shutdown(lp.ctx) }); err != nil {
			m.logger.Error("plugin shutdown failed", "name", lp.ctx.Name(), "error", err)
		}
		lp.ctx.close()
	}

	m.mu.Lock()
	m.loaded = make(map[string]*loadedPlugin)
	m.order = nil
	m.initialized = false
	m.mu.Unlock()
	m.logger.Info("plugin manager shut down", "plugins", len(loaded))
	return nil
}

func (m *Manager) snapshot() []*loadedPlugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*loadedPlugin, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.loaded[name])
	}
	return out
}

// IsLoaded reports whether name is loaded.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.loaded[name]
	return ok
}

// Loaded returns the loaded plugin names in load order.
func (m *Manager) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Count returns the number of loaded plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.loaded)
}

// Plugin returns a loaded plugin instance.
func (m *Manager) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lp, ok := m.loaded[name]
	if !ok {
		return nil, false
	}
	return lp.plugin, true
}

// Context returns the context of a loaded plugin.
func (m *Manager) Context(name string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lp, ok := m.loaded[name]
	if !ok {
		return nil, false
	}
	return lp.ctx, true
}

// Panels returns the loaded plugins with the panel capability, in load
// order.
func (m *Manager) Panels() []Panel {
	var out []Panel
	for _, lp := range m.snapshot() {
		if p, ok := lp.plugin.(Panel); ok {
			out = append(out, p)
		}
	}
	return out
}

// OpenPanel runs the panel's OnOpen hook and emits PanelOpened.
func (m *Manager) OpenPanel(name string) error {
	return m.panelHook(name, core.PanelOpened, func(p Panel, c *Context) error { return p.OnOpen(c) })
}

// ClosePanel runs the panel's OnClose hook and emits PanelClosed.
func (m *Manager) ClosePanel(name string) error {
	return m.panelHook(name, core.PanelClosed, func(p Panel, c *Context) error {
		if !p.Closable() {
			return core.Errorf(core.KindPlugin, "panel %q cannot be closed", p.Title())
		}
		return p.OnClose(c)
	})
}

// HandleContextMenu forwards a context menu selection to a panel plugin.
func (m *Manager) HandleContextMenu(name, itemID string) error {
	return m.panelHook(name, 0, func(p Panel, c *Context) error { return p.HandleContextMenu(itemID, c) })
}

func (m *Manager) panelHook(name string, t core.EventType, fn func(Panel, *Context) error) error {
	m.mu.RLock()
	lp, ok := m.loaded[name]
	m.mu.RUnlock()
	if !ok {
		return core.Errorf(core.KindPlugin, "plugin %q is not loaded: %w", name, core.ErrNotFound)
	}
	p, ok := lp.plugin.(Panel)
	if !ok {
		return core.Errorf(core.KindPlugin, "plugin %q has no panel", name)
	}
	if err := safeCall(func() error { return fn(p, lp.ctx) }); err != nil {
		return core.Wrap(core.KindPlugin, "panel "+p.Title(), err)
	}
	if t == core.PanelOpened || t == core.PanelClosed {
		m.emit(core.NewEvent(t, p.Title()).WithMetadata("plugin", name))
	}
	return nil
}

// SetProjectPath propagates the active project directory to every
// current and future plugin context.
func (m *Manager) SetProjectPath(path string) {
	m.mu.Lock()
	m.projectPath = path
	m.mu.Unlock()
	for _, lp := range m.snapshot() {
		lp.ctx.SetProjectPath(path)
	}
}

func (m *Manager) emit(e core.Event) {
	if m.emitter == nil {
		return
	}
	if err := m.emitter.Emit(e); err != nil {
		m.logger.Debug("failed to emit plugin event", "event_type", e.Type, "error", err)
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return fn()
}
