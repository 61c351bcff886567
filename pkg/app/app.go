// Package app wires the Cosmarium core together: configuration, event
// bus, plugins, projects, documents, layout and the background task
// queue. A host calls Initialize once, Update once per frame and Shutdown
// on exit, all from the same goroutine.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/cosmarium/internal/platform"
	"github.com/aretw0/cosmarium/pkg/config"
	"github.com/aretw0/cosmarium/pkg/core"
	"github.com/aretw0/cosmarium/pkg/document"
	"github.com/aretw0/cosmarium/pkg/events"
	"github.com/aretw0/cosmarium/pkg/layout"
	"github.com/aretw0/cosmarium/pkg/plugin"
	"github.com/aretw0/cosmarium/pkg/plugins/atmosphere"
	"github.com/aretw0/cosmarium/pkg/plugins/markdown"
	"github.com/aretw0/cosmarium/pkg/plugins/outline"
	"github.com/aretw0/cosmarium/pkg/project"
	"github.com/aretw0/cosmarium/pkg/tasks"
)

// Version is the core version plugins declare compatibility against.
const Version = "0.1.0"

// Builtins are the plugins compiled into the application.
var Builtins = map[string]plugin.Factory{
	markdown.Name:   markdown.Factory,
	outline.Name:    outline.Factory,
	atmosphere.Name: atmosphere.Factory,
}

// Application is the composition root.
type Application struct {
	opts       *options
	logger     *slog.Logger
	configPath string

	cfg       *config.Config
	session   *config.Session
	bus       *events.Bus
	plugins   *plugin.Manager
	projects  *project.Manager
	documents *document.Manager
	layout    *layout.Manager
	tasks     *tasks.Queue

	mu          sync.Mutex
	initialized bool
	frames      uint64
	active      uuid.UUID
	seenContent uint64
	callbacks   map[uuid.UUID]func(tasks.Result)
	subs        []uuid.UUID
}

// New returns an application that is configured but not initialized.
func New(opts ...Option) *Application {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Application{
		opts:      o,
		logger:    o.logger,
		callbacks: make(map[uuid.UUID]func(tasks.Result)),
	}
}

// Initialize brings the components up in dependency order. The first
// failure aborts and tears down what was already started.
func (a *Application) Initialize(ctx context.Context) (err error) {
	a.mu.Lock()
	initialized := a.initialized
	a.mu.Unlock()
	if initialized {
		a.log().Warn("application already initialized")
		return nil
	}

	var started []func(context.Context) error
	defer func() {
		if err == nil {
			return
		}
		for i := len(started) - 1; i >= 0; i-- {
			if serr := started[i](ctx); serr != nil {
				a.log().Warn("cleanup after failed startup", "error", serr)
			}
		}
	}()

	if err := a.initConfig(); err != nil {
		return err
	}

	a.bus = events.NewBus(events.WithLogger(a.logger))
	if err := a.bus.Initialize(); err != nil {
		return core.Wrap(core.KindEvent, "failed to initialize event bus", err)
	}
	started = append(started, func(context.Context) error { return a.bus.Shutdown() })

	if err := a.initPlugins(ctx); err != nil {
		return err
	}
	started = append(started, a.plugins.Shutdown)

	a.projects = project.NewManager(
		project.WithLogger(a.logger),
		project.WithEmitter(a.bus),
		project.WithStateDir(a.stateDir()),
		project.WithMaxRecent(a.cfg.App.MaxRecentProjects),
		project.WithDefaultDirectory(a.cfg.Project.DefaultDirectory),
		project.WithDefaultSettings(projectSettings(a.cfg)),
	)
	if err := a.projects.Initialize(ctx); err != nil {
		return wrapAs(core.KindProject, "failed to initialize project manager", err)
	}
	started = append(started, a.projects.Shutdown)

	a.documents = document.NewManager(
		document.WithLogger(a.logger),
		document.WithEmitter(a.bus),
		document.WithAutoSaveInterval(time.Duration(a.cfg.App.AutoSaveInterval)*time.Second),
		document.WithWatcher(a.opts.watch),
	)
	if err := a.documents.Initialize(ctx); err != nil {
		return wrapAs(core.KindDocument, "failed to initialize document manager", err)
	}
	started = append(started, a.documents.Shutdown)

	if err := a.initLayout(ctx); err != nil {
		return err
	}
	started = append(started, a.layout.Shutdown)

	a.tasks = tasks.New(tasks.WithLogger(a.logger))
	if err := a.tasks.Start(ctx); err != nil {
		return core.Wrap(core.KindGeneric, "failed to start task queue", err)
	}
	started = append(started, a.tasks.Stop)

	id, err := a.bus.Subscribe(core.Custom, events.HandlerFunc(a.onCustomEvent), 0)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.subs = append(a.subs, id)
	a.initialized = true
	a.mu.Unlock()

	if err := a.bus.Emit(core.NewEvent(core.ApplicationStartup, "Application started")); err != nil {
		a.logger.Warn("failed to emit startup event", "error", err)
	}
	a.logger.Info("application initialized", "version", Version, "plugins", len(a.plugins.Loaded()))

	if a.cfg.App.RestoreSession && a.session.LastOpenedProject != "" {
		if err := a.OpenProject(ctx, a.session.LastOpenedProject); err != nil {
			a.logger.Warn("failed to restore last project", "path", a.session.LastOpenedProject, "error", err)
		}
	}
	return nil
}

func (a *Application) initConfig() error {
	a.configPath = a.opts.configPath
	cfg := a.opts.cfg
	if cfg == nil {
		if a.configPath == "" {
			a.configPath = config.DefaultPath()
		}
		loaded, err := config.LoadOrDefault(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	}

	dataDir := a.opts.dataDir
	if dataDir == "" {
		dataDir = platform.DefaultDirs().Data
	}
	a.session = config.LoadSession(filepath.Join(dataDir, "session.json"))
	return nil
}

func (a *Application) initPlugins(ctx context.Context) error {
	opts := []plugin.Option{
		plugin.WithLogger(a.logger),
		plugin.WithEmitter(a.bus),
		plugin.WithDirectories(a.cfg.Plugins.PluginDirectories...),
		plugin.WithCoreVersion(Version),
		plugin.WithSettings(a.cfg.Plugins.PluginSettings),
	}
	for name, f := range Builtins {
		opts = append(opts, plugin.WithFactory(name, f))
	}
	a.plugins = plugin.NewManager(opts...)
	if err := a.plugins.Initialize(ctx); err != nil {
		return core.Wrap(core.KindPlugin, "failed to initialize plugin manager", err)
	}
	if !a.cfg.Plugins.Enabled || !a.cfg.Plugins.AutoLoad {
		return nil
	}
	// a plugin that fails to load is skipped, the others keep running
	if err := a.plugins.LoadEnabled(ctx, a.cfg.Plugins.EnabledPlugins, a.cfg.Plugins.DisabledPlugins); err != nil {
		a.logger.Warn("some plugins failed to load", "error", err)
	}
	return nil
}

func (a *Application) initLayout(ctx context.Context) error {
	dir := a.opts.layoutDir
	if dir == "" {
		if a.configPath != "" {
			dir = filepath.Join(filepath.Dir(a.configPath), "layouts")
		} else {
			dir = platform.DefaultDirs().LayoutDir()
		}
	}
	a.layout = layout.NewManager(
		layout.WithLogger(a.logger),
		layout.WithEmitter(a.bus),
		layout.WithDirectory(dir),
	)
	if err := a.layout.Initialize(ctx); err != nil {
		return wrapAs(core.KindLayout, "failed to initialize layout manager", err)
	}
	if !slices.Contains(a.layout.ListLayouts(), layout.DefaultName) {
		w := layout.DefaultWindow()
		w.Width = a.cfg.UI.WindowWidth
		w.Height = a.cfg.UI.WindowHeight
		w.Maximized = a.cfg.UI.MaximizeOnStartup
		a.layout.SetWindow(w)
	}

	var records []core.Panel
	for _, p := range a.plugins.Panels() {
		records = append(records, plugin.PanelRecord(p))
	}
	if n := a.layout.EnsurePanels(records); n > 0 {
		a.logger.Debug("added plugin panels to layout", "count", n)
	}
	return nil
}

// wrapAs classifies err as kind unless a component already did.
func wrapAs(kind core.Kind, msg string, err error) error {
	if core.KindOf(err) == kind {
		return err
	}
	return core.Wrap(kind, msg, err)
}

// Update runs one frame. Component failures are logged and never stop
// the frame.
func (a *Application) Update(ctx context.Context) error {
	if err := a.requireInitialized(); err != nil {
		return err
	}

	a.plugins.Update(ctx)
	if err := a.projects.Update(ctx); err != nil {
		a.logger.Error("project update failed", "error", err)
	}
	if err := a.documents.Update(ctx); err != nil {
		a.logger.Error("document update failed", "error", err)
	}
	if err := a.layout.Update(ctx); err != nil {
		a.logger.Error("layout update failed", "error", err)
	}
	a.applyResults()
	a.syncEditor()
	a.bus.ProcessEvents(ctx)

	a.mu.Lock()
	a.frames++
	a.mu.Unlock()
	return nil
}

// Shutdown flushes the editor into the active document, emits
// ApplicationShutdown and stops every component in reverse dependency
// order. Every step runs even when an earlier one fails; the failures
// are logged and returned joined.
func (a *Application) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if !a.initialized {
		a.mu.Unlock()
		return nil
	}
	a.initialized = false
	subs := a.subs
	a.subs = nil
	a.mu.Unlock()

	a.syncEditor()
	if err := a.bus.Emit(core.NewEvent(core.ApplicationShutdown, "Application shutting down")); err != nil {
		a.logger.Warn("failed to emit shutdown event", "error", err)
	}
	a.bus.ProcessEvents(ctx)

	var errs []error
	step := func(component string, err error) {
		if err != nil {
			a.logger.Error("shutdown step failed", "step", component, "error", err)
			errs = append(errs, err)
		}
	}
	step("layout", a.layout.Shutdown(ctx))
	step("documents", a.documents.Shutdown(ctx))
	step("projects", a.projects.Shutdown(ctx))
	step("plugins", a.plugins.Shutdown(ctx))
	if a.configPath != "" {
		step("config", a.cfg.Save(a.configPath))
	}
	step("session", a.session.Save())
	step("tasks", a.tasks.Stop(ctx))

	// results of cancelled tasks refer to components that are gone
	a.tasks.Poll()
	a.mu.Lock()
	clear(a.callbacks)
	a.active = uuid.Nil
	a.mu.Unlock()

	for _, id := range subs {
		_ = a.bus.Unsubscribe(id)
	}
	a.bus.ProcessEvents(ctx)
	step("events", a.bus.Shutdown())

	a.logger.Info("application shut down", "frames", a.Frames())
	return errors.Join(errs...)
}

// onCustomEvent saves the active document when the editor signals an
// auto-save.
func (a *Application) onCustomEvent(ctx context.Context, e core.Event) error {
	if name, _ := e.GetMetadata(core.MetadataName); name != markdown.AutoSaveEvent {
		return nil
	}
	a.syncEditor()
	id := a.ActiveDocument()
	if id == uuid.Nil {
		return nil
	}
	doc, err := a.documents.Get(id)
	if err != nil {
		return err
	}
	if !doc.Dirty || doc.FilePath == "" {
		return nil
	}
	_, err = a.SaveDocumentAsync(id, nil)
	return err
}

func (a *Application) requireInitialized() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return core.Errorf(core.KindGeneric, "application: %w", core.ErrNotInitialized)
	}
	return nil
}

func (a *Application) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

func (a *Application) stateDir() string {
	if a.opts.stateDir != "" {
		return a.opts.stateDir
	}
	return platform.DefaultDirs().State
}

func projectSettings(cfg *config.Config) project.Settings {
	s := project.DefaultSettings()
	s.UseCompressedFormat = cfg.Project.UseCompressedFormat
	s.BackupEnabled = cfg.Project.BackupEnabled
	s.BackupCount = cfg.Project.BackupCount
	if cfg.App.AutoSaveInterval >= 0 {
		s.AutoSaveInterval = uint64(cfg.App.AutoSaveInterval)
	}
	return s
}

func (a *Application) Config() *config.Config { return a.cfg }

func (a *Application) Session() *config.Session { return a.session }

func (a *Application) Bus() *events.Bus { return a.bus }

func (a *Application) Plugins() *plugin.Manager { return a.plugins }

func (a *Application) Projects() *project.Manager { return a.projects }

func (a *Application) Documents() *document.Manager { return a.documents }

func (a *Application) Layout() *layout.Manager { return a.layout }

func (a *Application) Tasks() *tasks.Queue { return a.tasks }

// Logger returns the logger every component writes to.
func (a *Application) Logger() *slog.Logger { return a.log() }

// Frames counts completed Update calls.
func (a *Application) Frames() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames
}
