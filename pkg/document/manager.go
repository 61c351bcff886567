package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/aretw0/cosmarium/pkg/adapters/fs"
	"github.com/aretw0/cosmarium/pkg/core"
)

// Metadata keys set on document events.
const (
	MetadataDocumentID = "document_id"
	MetadataConflict   = "conflict"
	MetadataRemoved    = "removed"
)

// Manager holds the open documents. Disk I/O always runs on a snapshot
// taken under the lock, never while holding it; a save marks the document
// clean only if no edit happened while the bytes were being written.
type Manager struct {
	logger       *slog.Logger
	emitter      Emitter
	maxDocuments int
	interval     time.Duration
	clock        func() time.Time

	mu          sync.RWMutex
	initialized bool
	docs        map[uuid.UUID]*core.Document
	order       []uuid.UUID
	// digest of the bytes last written or read per path, used to tell
	// our own writes apart from external edits
	digests map[string][32]byte

	watcher     *fs.Watcher
	watchLogger *slog.Logger
	changes     chan fs.Change
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
	m := &Manager{
		logger:       logger.With("component", "document_manager"),
		emitter:      o.emitter,
		maxDocuments: o.maxDocuments,
		interval:     o.autoSaveInterval,
		clock:        o.clock,
		docs:         make(map[uuid.UUID]*core.Document),
		digests:      make(map[string][32]byte),
	}
	if o.watch {
		m.changes = make(chan fs.Change, 64)
		m.watchLogger = logger
		m.watcher = fs.NewWatcher(m.changes, logger)
	}
	return m
}

// Initialize starts the file watcher when enabled. A second call only
// logs a warning.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		m.logger.Warn("document manager already initialized")
		return nil
	}
	if m.watcher != nil {
		if err := m.watcher.Start(ctx); err != nil {
			return core.Wrap(core.KindWatch, "failed to start document watcher", err)
		}
	}
	m.initialized = true
	m.logger.Debug("document manager initialized", "max_documents", m.maxDocuments, "watch", m.watcher != nil)
	return nil
}

// Load reads a document from disk without registering it. The format is
// inferred from the extension and the title from the file stem.
func Load(path string) (*core.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, core.Wrap(core.KindIO, "failed to resolve path", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.Errorf(core.KindNotFound, "document %s: %w", abs, core.ErrNotFound)
		}
		return nil, core.Wrap(core.KindIO, "failed to read document", err)
	}
	format := core.FormatFromPath(abs)
	parsed, err := fs.SerializerFor(format).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, core.Wrap(core.KindDocument, "failed to parse document", err)
	}

	title := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	doc := core.NewDocument(title, parsed.Content, format)
	doc.FilePath = abs
	doc.Metadata.Tags = parsed.Metadata.Tags
	doc.Metadata.Properties = parsed.Metadata.Properties
	if info, err := os.Stat(abs); err == nil {
		doc.ModifiedAt = info.ModTime()
	}
	doc.MarkClean()
	return doc, nil
}

// Create registers a new unsaved document.
func (m *Manager) Create(title, content string, format core.Format) (uuid.UUID, error) {
	doc := core.NewDocument(title, content, format)

	m.mu.Lock()
	if len(m.docs) >= m.maxDocuments {
		m.mu.Unlock()
		return uuid.Nil, core.Errorf(core.KindDocument, "cannot create %q: %d documents open: %w", title, m.maxDocuments, core.ErrCapacity)
	}
	m.insert(doc)
	m.mu.Unlock()

	m.emit(core.NewEvent(core.DocumentCreated, "Created document: "+title), doc.ID)
	return doc.ID, nil
}

// Open reads path and registers the document. Opening a path that is
// already open returns the existing id.
func (m *Manager) Open(ctx context.Context, path string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		if id, ok := m.FindByPath(abs); ok {
			return id, nil
		}
	}
	doc, err := Load(path)
	if err != nil {
		return uuid.Nil, err
	}
	return m.Adopt(doc)
}

// Adopt registers a document loaded elsewhere, typically by a background
// task. The manager takes ownership of doc.
func (m *Manager) Adopt(doc *core.Document) (uuid.UUID, error) {
	if doc == nil {
		return uuid.Nil, core.Errorf(core.KindDocument, "nil document")
	}

	m.mu.Lock()
	if doc.FilePath != "" {
		if id, ok := m.findByPathLocked(doc.FilePath); ok {
			m.mu.Unlock()
			return id, nil
		}
	}
	if _, exists := m.docs[doc.ID]; exists {
		m.mu.Unlock()
		return uuid.Nil, core.Errorf(core.KindAlreadyExists, "document %s: %w", doc.ID, core.ErrAlreadyExists)
	}
	if len(m.docs) >= m.maxDocuments {
		m.mu.Unlock()
		return uuid.Nil, core.Errorf(core.KindDocument, "cannot open %q: %d documents open: %w", doc.Title, m.maxDocuments, core.ErrCapacity)
	}
	m.insert(doc)
	m.mu.Unlock()

	m.watch(doc.FilePath)
	m.emit(core.NewEvent(core.DocumentOpened, "Opened document: "+doc.Title), doc.ID)
	return doc.ID, nil
}

func (m *Manager) insert(doc *core.Document) {
	m.docs[doc.ID] = doc
	m.order = append(m.order, doc.ID)
}

// Save writes the document to its path.
func (m *Manager) Save(ctx context.Context, id uuid.UUID) error {
	snap, err := m.Get(id)
	if err != nil {
		return err
	}
	if snap.FilePath == "" {
		return core.Errorf(core.KindDocument, "cannot save %q: %w", snap.Title, core.ErrNoFilePath)
	}
	return m.write(ctx, snap)
}

// SaveAs associates the document with path and saves it there.
func (m *Manager) SaveAs(ctx context.Context, id uuid.UUID, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return core.Wrap(core.KindIO, "failed to resolve path", err)
	}

	m.mu.Lock()
	doc, ok := m.docs[id]
	if !ok {
		m.mu.Unlock()
		return notFound(id)
	}
	if other, taken := m.findByPathLocked(abs); taken && other != id {
		m.mu.Unlock()
		return core.Errorf(core.KindAlreadyExists, "%s is open as another document: %w", abs, core.ErrAlreadyExists)
	}
	previous := doc.FilePath
	if previous != abs {
		doc.SetFilePath(abs)
	}
	snap := doc.Clone()
	m.mu.Unlock()

	if previous != abs {
		m.unwatch(previous)
		m.watch(abs)
	}
	return m.write(ctx, snap)
}

func (m *Manager) write(ctx context.Context, snap core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := fs.SerializerFor(snap.Format).Serialize(snap)
	if err != nil {
		return core.Wrap(core.KindDocument, fmt.Sprintf("failed to serialize %q", snap.Title), err)
	}
	if err := fs.WriteFileAtomic(snap.FilePath, data, 0644); err != nil {
		return core.Wrap(core.KindIO, fmt.Sprintf("failed to save %q", snap.Title), err)
	}

	m.mu.Lock()
	m.digests[snap.FilePath] = blake3.Sum256(data)
	if doc, ok := m.docs[snap.ID]; ok && doc.Revision == snap.Revision {
		doc.MarkClean()
	}
	m.mu.Unlock()

	m.logger.Debug("document saved", "title", snap.Title, "path", snap.FilePath)
	m.emit(core.NewEvent(core.DocumentSaved, "Saved document: "+snap.Title), snap.ID)
	return nil
}

// Close removes the document. With saveIfModified a dirty document is
// written first and stays open if that fails; otherwise unsaved edits
// are discarded.
func (m *Manager) Close(ctx context.Context, id uuid.UUID, saveIfModified bool) error {
	snap, err := m.Get(id)
	if err != nil {
		return err
	}
	if saveIfModified && snap.Dirty {
		if snap.FilePath == "" {
			return core.Errorf(core.KindDocument, "cannot save %q before closing: %w", snap.Title, core.ErrNoFilePath)
		}
		if err := m.write(ctx, snap); err != nil {
			return err
		}
	}

	m.mu.Lock()
	doc, ok := m.docs[id]
	if ok {
		delete(m.docs, id)
		for i, v := range m.order {
			if v == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return notFound(id)
	}

	m.unwatch(doc.FilePath)
	m.emit(core.NewEvent(core.DocumentClosed, "Closed document: "+doc.Title), id)
	return nil
}

// Get returns a copy of the document.
func (m *Manager) Get(id uuid.UUID) (core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return core.Document{}, notFound(id)
	}
	return doc.Clone(), nil
}

// Edit applies fn to the live document under the manager lock. fn must
// not call back into the manager.
func (m *Manager) Edit(id uuid.UUID, fn func(*core.Document)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return notFound(id)
	}
	fn(doc)
	return nil
}

// SetContent replaces the content and emits DocumentChanged when it
// differs from the current one.
func (m *Manager) SetContent(id uuid.UUID, content string) error {
	m.mu.Lock()
	doc, ok := m.docs[id]
	if !ok {
		m.mu.Unlock()
		return notFound(id)
	}
	if doc.Content == content {
		m.mu.Unlock()
		return nil
	}
	doc.SetContent(content)
	title := doc.Title
	m.mu.Unlock()

	m.emit(core.NewEvent(core.DocumentChanged, "Changed document: "+title), id)
	return nil
}

// FindByPath returns the id of the open document stored at path.
func (m *Manager) FindByPath(path string) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findByPathLocked(path)
}

func (m *Manager) findByPathLocked(path string) (uuid.UUID, bool) {
	for _, id := range m.order {
		if m.docs[id].FilePath == path {
			return id, true
		}
	}
	return uuid.Nil, false
}

// List returns the open document ids in opening order.
func (m *Manager) List() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uuid.UUID(nil), m.order...)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Dirty returns the ids of documents with unsaved changes.
func (m *Manager) Dirty() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uuid.UUID
	for _, id := range m.order {
		if m.docs[id].Dirty {
			out = append(out, id)
		}
	}
	return out
}

// Update auto-saves dirty documents untouched for longer than the
// auto-save interval and applies pending external file changes. Failures
// are logged and retried on a later frame.
func (m *Manager) Update(ctx context.Context) error {
	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()
	if !initialized {
		return nil
	}

	for _, snap := range m.dueForAutoSave() {
		if err := m.write(ctx, snap); err != nil {
			m.logger.Error("auto-save failed", "document", snap.ID, "title", snap.Title, "error", err)
			continue
		}
		m.logger.Debug("auto-saved document", "document", snap.ID)
	}

	if m.changes == nil {
		return nil
	}
	for {
		select {
		case c := <-m.changes:
			m.applyChange(c)
		default:
			return nil
		}
	}
}

func (m *Manager) dueForAutoSave() []core.Document {
	if m.interval <= 0 {
		return nil
	}
	now := m.clock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []core.Document
	for _, id := range m.order {
		doc := m.docs[id]
		if doc.Dirty && doc.FilePath != "" && now.Sub(doc.ModifiedAt) >= m.interval {
			due = append(due, doc.Clone())
		}
	}
	return due
}

// applyChange reloads a clean document edited on disk. A dirty document
// is left alone and flagged as conflicting.
func (m *Manager) applyChange(c fs.Change) {
	id, ok := m.FindByPath(c.Path)
	if !ok {
		return
	}
	snap, err := m.Get(id)
	if err != nil {
		return
	}

	if c.Op == fs.ChangeRemoved {
		if _, err := os.Stat(c.Path); err == nil {
			// atomic replace: the new file is already in place
			c.Op = fs.ChangeModified
		} else {
			m.logger.Warn("document removed externally", "path", c.Path)
			m.emit(core.NewEvent(core.DocumentChanged, "Removed externally: "+snap.Title).
				WithMetadata(MetadataRemoved, "true"), id)
			return
		}
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		m.logger.Warn("failed to read changed document", "path", c.Path, "error", err)
		return
	}
	digest := blake3.Sum256(data)
	m.mu.RLock()
	known := m.digests[c.Path] == digest
	m.mu.RUnlock()
	if known {
		return
	}

	if snap.Dirty {
		m.logger.Warn("external change conflicts with unsaved edits", "path", c.Path)
		m.emit(core.NewEvent(core.DocumentChanged, "Conflicting external change: "+snap.Title).
			WithMetadata(MetadataConflict, "true"), id)
		return
	}

	parsed, err := fs.SerializerFor(snap.Format).Parse(bytes.NewReader(data))
	if err != nil {
		m.logger.Warn("failed to parse changed document", "path", c.Path, "error", err)
		return
	}

	m.mu.Lock()
	doc, ok := m.docs[id]
	reloaded := ok && !doc.Dirty
	if reloaded {
		doc.SetContent(parsed.Content)
		doc.Metadata.Tags = parsed.Metadata.Tags
		doc.Metadata.Properties = parsed.Metadata.Properties
		doc.MarkClean()
		m.digests[c.Path] = digest
	}
	m.mu.Unlock()

	if reloaded {
		m.logger.Info("reloaded document after external change", "path", c.Path)
		m.emit(core.NewEvent(core.DocumentChanged, "Reloaded document: "+snap.Title), id)
	}
}

// Shutdown saves every dirty document that has a path, stops the watcher
// and forgets all documents. Individual save failures are logged.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	initialized := m.initialized
	var pending []core.Document
	for _, id := range m.order {
		if doc := m.docs[id]; doc.Dirty && doc.FilePath != "" {
			pending = append(pending, doc.Clone())
		}
	}
	m.mu.RUnlock()

	for _, snap := range pending {
		if err := m.write(ctx, snap); err != nil {
			m.logger.Error("failed to save document on shutdown", "document", snap.ID, "error", err)
		}
	}

	if initialized && m.watcher != nil {
		if err := m.watcher.Stop(ctx); err != nil {
			m.logger.Warn("failed to stop document watcher", "error", err)
		}
		// a stopped worker cannot be started again
		m.watcher = fs.NewWatcher(m.changes, m.watchLogger)
	}

	m.mu.Lock()
	m.docs = make(map[uuid.UUID]*core.Document)
	m.order = nil
	m.digests = make(map[string][32]byte)
	m.initialized = false
	m.mu.Unlock()
	return nil
}

func (m *Manager) watch(path string) {
	if m.watcher == nil || path == "" {
		return
	}
	if err := m.watcher.Watch(path); err != nil {
		m.logger.Warn("failed to watch document", "path", path, "error", err)
	}
}

func (m *Manager) unwatch(path string) {
	if m.watcher == nil || path == "" {
		return
	}
	m.watcher.Unwatch(path)
}

func (m *Manager) emit(e core.Event, id uuid.UUID) {
	if m.emitter == nil {
		return
	}
	e.SetMetadata(MetadataDocumentID, id.String())
	if err := m.emitter.Emit(e); err != nil {
		m.logger.Warn("failed to emit event", "type", e.Type, "error", err)
	}
}

func notFound(id uuid.UUID) error {
	return core.Errorf(core.KindNotFound, "document %s: %w", id, core.ErrNotFound)
}
