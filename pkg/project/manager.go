package project

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/cosmarium/pkg/adapters/fs"
	"github.com/aretw0/cosmarium/pkg/core"
)

// Metadata keys set on project events.
const (
	MetadataProjectPath = "project_path"
	MetadataRestored    = "restored_from"
)

// Manager owns the active project slot and the recent-projects list.
// Operations that swap or persist the active project are serialized by
// opMu; the state lock mu is never held during file I/O.
type Manager struct {
	logger     *slog.Logger
	emitter    Emitter
	stateDir   string
	maxRecent  int
	defaultDir string
	settings   *Settings

	opMu sync.Mutex

	mu          sync.RWMutex
	initialized bool
	current     *Project
	recent      []string
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
	return &Manager{
		logger:     logger.With("component", "project_manager"),
		emitter:    o.emitter,
		stateDir:   o.stateDir,
		maxRecent:  o.maxRecent,
		defaultDir: o.defaultDir,
		settings:   o.settings,
	}
}

// Initialize loads the recent-projects list, skipping entries that no
// longer exist on disk.
func (m *Manager) Initialize(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()
	if initialized {
		m.logger.Warn("project manager already initialized")
		return nil
	}

	var recent []string
	if m.stateDir != "" {
		list, err := loadRecent(m.stateDir)
		if err != nil {
			// a corrupt cache only costs the history
			m.logger.Warn("discarding recent projects", "error", err)
		}
		recent = list
	}
	if len(recent) > m.maxRecent {
		recent = recent[:m.maxRecent]
	}

	m.mu.Lock()
	m.recent = recent
	m.initialized = true
	m.mu.Unlock()
	m.logger.Debug("project manager initialized", "recent", len(recent))
	return nil
}

func (m *Manager) requireInitialized() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return core.Errorf(core.KindProject, "project manager: %w", core.ErrNotInitialized)
	}
	return nil
}

// Resolve maps a relative project path onto the default directory.
func (m *Manager) Resolve(path string) (string, error) {
	if !filepath.IsAbs(path) && m.defaultDir != "" {
		path = filepath.Join(m.defaultDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", core.Wrap(core.KindIO, "failed to resolve project path", err)
	}
	return abs, nil
}

// Create makes a new project directory, writes its project.json and
// makes it the active project. A dirty active project is saved first and
// a failure there aborts the creation.
func (m *Manager) Create(ctx context.Context, name, path, template string) error {
	if err := m.requireInitialized(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := m.Resolve(path)
	if err != nil {
		return err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if _, err := os.Stat(abs); err == nil {
		return core.Errorf(core.KindAlreadyExists, "project path %s: %w", abs, core.ErrAlreadyExists)
	}
	if err := m.saveDirty(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return core.Wrap(core.KindProject, "failed to create project directory", err)
	}
	p := New(name, abs, template)
	if m.settings != nil {
		s := *m.settings
		p.Settings = s
		p.Settings.Custom = map[string]any{}
	}
	if err := p.Save(); err != nil {
		_ = os.RemoveAll(abs)
		return err
	}

	m.activate(p)
	m.logger.Info("created project", "name", name, "path", abs)
	m.emit(core.NewEvent(core.ProjectCreated, "Created project: "+name), abs)
	return nil
}

// Open loads the project at path and makes it active.
func (m *Manager) Open(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := m.Resolve(path)
	if err != nil {
		return err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Errorf(core.KindNotFound, "project path %s: %w", abs, core.ErrNotFound)
		}
		return core.Wrap(core.KindIO, "failed to stat project", err)
	}
	p, err := Load(abs)
	if err != nil {
		return err
	}
	if err := m.saveDirty(ctx); err != nil {
		return err
	}

	m.activate(p)
	m.logger.Info("opened project", "name", p.Name(), "path", abs)
	m.emit(core.NewEvent(core.ProjectOpened, "Opened project: "+p.Name()), abs)
	return nil
}

func (m *Manager) activate(p *Project) {
	m.mu.Lock()
	m.current = p
	m.recent = pushRecent(m.recent, p.Path, m.maxRecent)
	recent := slices.Clone(m.recent)
	m.mu.Unlock()
	m.persistRecent(recent)
}

// Save writes the active project. When backups are enabled the previous
// project.json is kept under .backups first.
func (m *Manager) Save(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	active := m.current != nil
	m.mu.RUnlock()
	if !active {
		return noActiveProject()
	}
	return m.save(ctx)
}

func (m *Manager) saveDirty(ctx context.Context) error {
	m.mu.RLock()
	dirty := m.current != nil && m.current.Dirty()
	m.mu.RUnlock()
	if !dirty {
		return nil
	}
	return m.save(ctx)
}

func (m *Manager) save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	if m.current == nil {
		m.mu.RUnlock()
		return noActiveProject()
	}
	snap := m.current.Clone()
	m.mu.RUnlock()

	if snap.Settings.BackupEnabled && snap.Settings.BackupCount > 0 {
		m.backup(&snap)
	}
	if err := snap.Save(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.current != nil && m.current.Path == snap.Path {
		m.current.Metadata.LastModified = snap.Metadata.LastModified
		if m.current.revision == snap.revision {
			m.current.dirty = false
		}
	}
	m.mu.Unlock()

	m.emit(core.NewEvent(core.ProjectSaved, "Saved project: "+snap.Name()), snap.Path)
	return nil
}

func (m *Manager) backup(p *Project) {
	previous, err := os.ReadFile(p.MetadataPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("failed to read project for backup", "path", p.Path, "error", err)
		}
		return
	}
	b, err := WriteBackup(p.Path, previous, p.Settings.UseCompressedFormat, p.Settings.BackupCount, time.Now())
	if err != nil {
		m.logger.Warn("project backup failed", "path", p.Path, "error", err)
		return
	}
	m.logger.Debug("project backup written", "backup", b.Name, "compressed", b.Compressed)
}

// Close clears the active slot, saving first when asked and needed.
func (m *Manager) Close(ctx context.Context, saveIfModified bool) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	p := m.current
	m.mu.RUnlock()
	if p == nil {
		return noActiveProject()
	}
	if saveIfModified {
		if err := m.saveDirty(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	name, path := m.current.Name(), m.current.Path
	m.current = nil
	m.mu.Unlock()

	m.logger.Info("closed project", "name", name)
	m.emit(core.NewEvent(core.ProjectClosed, "Closed project: "+name), path)
	return nil
}

// UpdateSettings applies fn to the active project's settings.
func (m *Manager) UpdateSettings(fn func(*Settings)) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return noActiveProject()
	}
	s := m.current.Clone().Settings
	fn(&s)
	m.current.SetSettings(s)
	name, path := m.current.Name(), m.current.Path
	m.mu.Unlock()

	m.emit(core.NewEvent(core.ProjectSettingsChanged, "Settings changed: "+name), path)
	return nil
}

// Edit applies fn to the active project under the state lock.
func (m *Manager) Edit(fn func(*Project)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return noActiveProject()
	}
	fn(m.current)
	return nil
}

// Current returns a copy of the active project.
func (m *Manager) Current() (Project, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Project{}, false
	}
	return m.current.Clone(), true
}

// RecentProjects returns the most recently used project paths, newest
// first.
func (m *Manager) RecentProjects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.recent)
}

// ListBackups lists the active project's backups.
func (m *Manager) ListBackups() ([]Backup, error) {
	p, ok := m.Current()
	if !ok {
		return nil, noActiveProject()
	}
	return ListBackups(p.Path)
}

// RestoreBackup replaces the active project with a backup. The restored
// state is written to project.json and the project is clean afterwards.
func (m *Manager) RestoreBackup(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	p, ok := m.Current()
	if !ok {
		return noActiveProject()
	}
	data, err := ReadBackup(p.Path, name)
	if err != nil {
		return err
	}
	restored, err := decode(p.Path, data)
	if err != nil {
		return err
	}
	if err := fs.WriteFileAtomic(restored.MetadataPath(), data, 0644); err != nil {
		return core.Wrap(core.KindIO, "failed to restore backup", err)
	}

	m.mu.Lock()
	m.current = restored
	m.mu.Unlock()

	m.logger.Info("restored project backup", "backup", name)
	e := core.NewEvent(core.ProjectOpened, "Restored project: "+restored.Name())
	e.SetMetadata(MetadataRestored, name)
	m.emit(e, restored.Path)
	return nil
}

// Update is the per-frame hook. The project manager has no periodic work.
func (m *Manager) Update(ctx context.Context) error { return nil }

// Shutdown saves a dirty active project and the recent list.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	initialized := m.initialized
	recent := slices.Clone(m.recent)
	m.mu.RUnlock()
	if !initialized {
		return nil
	}

	if err := m.saveDirty(ctx); err != nil {
		m.logger.Error("failed to save project on shutdown", "error", err)
	}
	m.persistRecent(recent)

	m.mu.Lock()
	m.current = nil
	m.initialized = false
	m.mu.Unlock()
	return nil
}

func (m *Manager) persistRecent(list []string) {
	if m.stateDir == "" {
		return
	}
	if err := saveRecent(m.stateDir, list); err != nil {
		m.logger.Warn("failed to persist recent projects", "error", err)
	}
}

func (m *Manager) emit(e core.Event, path string) {
	if m.emitter == nil {
		return
	}
	e.SetMetadata(MetadataProjectPath, path)
	if err := m.emitter.Emit(e); err != nil {
		m.logger.Warn("failed to emit event", "type", e.Type, "error", err)
	}
}

func noActiveProject() error {
	return core.Errorf(core.KindProject, "no active project: %w", core.ErrNotFound)
}
