package app

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/aretw0/cosmarium/pkg/core"
	"github.com/aretw0/cosmarium/pkg/document"
	"github.com/aretw0/cosmarium/pkg/plugin"
	"github.com/aretw0/cosmarium/pkg/project"
	"github.com/aretw0/cosmarium/pkg/tasks"
)

// contentPattern matches the document files OpenProject considers.
const contentPattern = "*.{md,markdown,txt,rtf,html,htm}"

// CreateProject creates a project and makes it the active one.
func (a *Application) CreateProject(ctx context.Context, name, path, template string) error {
	if err := a.requireInitialized(); err != nil {
		return err
	}
	if template == "" {
		template = a.cfg.Project.DefaultTemplate
	}
	if err := a.projects.Create(ctx, name, path, template); err != nil {
		return err
	}
	a.projectActivated()
	return nil
}

// OpenProject opens the project at path and loads its first content
// document into the editor in the background.
func (a *Application) OpenProject(ctx context.Context, path string) error {
	if err := a.requireInitialized(); err != nil {
		return err
	}
	if err := a.projects.Open(ctx, path); err != nil {
		return err
	}
	p := a.projectActivated()

	first, err := firstContentFile(p.ContentDir())
	if err != nil {
		a.logger.Warn("failed to scan project content", "path", p.ContentDir(), "error", err)
		return nil
	}
	if first == "" {
		return nil
	}
	_, err = a.OpenDocumentAsync(first, func(id uuid.UUID, err error) {
		if err != nil {
			a.logger.Error("failed to open project document", "path", first, "error", err)
			return
		}
		if err := a.SetActiveDocument(id); err != nil {
			a.logger.Warn("failed to activate project document", "document", id, "error", err)
		}
	})
	return err
}

func (a *Application) projectActivated() project.Project {
	p, _ := a.projects.Current()
	a.plugins.SetProjectPath(p.Path)
	a.session.AddRecentProject(p.Path, a.cfg.App.MaxRecentProjects)
	if err := a.session.Save(); err != nil {
		a.logger.Warn("failed to save session", "error", err)
	}
	return p
}

// firstContentFile returns the first document in dir in lexical order,
// or "" when there is none.
func firstContentFile(dir string) (string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), contentPattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	slices.Sort(matches)
	return filepath.Join(dir, filepath.FromSlash(matches[0])), nil
}

// NewProjectDocument creates an empty document stored under the active
// project's content directory and records it in the project.
func (a *Application) NewProjectDocument(ctx context.Context, title string, format core.Format) (uuid.UUID, error) {
	if err := a.requireInitialized(); err != nil {
		return uuid.Nil, err
	}
	p, ok := a.projects.Current()
	if !ok {
		return uuid.Nil, core.Errorf(core.KindProject, "cannot create %q without a project: %w", title, core.ErrNotFound)
	}

	id, err := a.documents.Create(title, "", format)
	if err != nil {
		return uuid.Nil, err
	}
	if err := a.documents.SaveAs(ctx, id, p.DocumentPath(id, format)); err != nil {
		_ = a.documents.Close(ctx, id, false)
		return uuid.Nil, err
	}
	if err := a.projects.Edit(func(p *project.Project) { p.AddDocument(id) }); err != nil {
		return id, err
	}
	if err := a.projects.Save(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// OpenDocumentAsync reads path on the task queue. then runs on the frame
// goroutine once the document is registered, or with the error.
func (a *Application) OpenDocumentAsync(path string, then func(uuid.UUID, error)) (uuid.UUID, error) {
	if err := a.requireInitialized(); err != nil {
		return uuid.Nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return uuid.Nil, core.Wrap(core.KindIO, "failed to resolve path", err)
	}

	return a.submit("open_document", func(ctx context.Context) (any, error) {
		return loadDocument(ctx, abs)
	}, func(r tasks.Result) {
		id, err := uuid.Nil, r.Err
		if err == nil {
			id, err = a.documents.Adopt(r.Value.(*core.Document))
		}
		if then != nil {
			then(id, err)
		}
	})
}

// SaveDocumentAsync writes a document on the task queue. Edits made while
// the write runs keep the document dirty.
func (a *Application) SaveDocumentAsync(id uuid.UUID, then func(error)) (uuid.UUID, error) {
	if err := a.requireInitialized(); err != nil {
		return uuid.Nil, err
	}
	if _, err := a.documents.Get(id); err != nil {
		return uuid.Nil, err
	}
	return a.submit("save_document", func(ctx context.Context) (any, error) {
		return nil, a.documents.Save(ctx, id)
	}, func(r tasks.Result) {
		if r.Err != nil {
			a.logger.Error("failed to save document", "document", id, "error", r.Err)
		}
		if then != nil {
			then(r.Err)
		}
	})
}

// SetActiveDocument hands a document to the editor. Pending editor
// changes are written back to the previously active document first.
func (a *Application) SetActiveDocument(id uuid.UUID) error {
	if err := a.requireInitialized(); err != nil {
		return err
	}
	doc, err := a.documents.Get(id)
	if err != nil {
		return err
	}
	a.syncEditor()

	a.mu.Lock()
	a.active = id
	a.mu.Unlock()

	shared := a.plugins.Shared()
	plugin.Set(shared, core.KeyActiveDocument, id)
	plugin.Set(shared, core.KeyEditorLoad, doc.Content)
	a.logger.Debug("active document changed", "document", id, "title", doc.Title)
	return nil
}

// ActiveDocument returns the document shown in the editor, or uuid.Nil.
func (a *Application) ActiveDocument() uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// CloseDocument closes a document, clearing the editor when it was the
// active one.
func (a *Application) CloseDocument(ctx context.Context, id uuid.UUID, saveIfModified bool) error {
	if err := a.requireInitialized(); err != nil {
		return err
	}
	if a.ActiveDocument() == id {
		a.syncEditor()
	}
	if err := a.documents.Close(ctx, id, saveIfModified); err != nil {
		return err
	}

	a.mu.Lock()
	wasActive := a.active == id
	if wasActive {
		a.active = uuid.Nil
	}
	a.mu.Unlock()
	if wasActive {
		shared := a.plugins.Shared()
		shared.Remove(core.KeyActiveDocument)
		plugin.Set(shared, core.KeyEditorLoad, "")
	}
	return nil
}

// SetPanelOpen opens or closes a plugin panel and records the choice in
// the current layout.
func (a *Application) SetPanelOpen(name string, open bool) error {
	if err := a.requireInitialized(); err != nil {
		return err
	}
	p, ok := a.plugins.Plugin(name)
	if !ok {
		return core.Errorf(core.KindPlugin, "plugin %q is not loaded: %w", name, core.ErrNotFound)
	}
	panel, ok := p.(plugin.Panel)
	if !ok {
		return core.Errorf(core.KindPlugin, "plugin %q has no panel", name)
	}

	var err error
	if open {
		err = a.plugins.OpenPanel(name)
	} else {
		err = a.plugins.ClosePanel(name)
	}
	if err != nil {
		return err
	}
	id := core.PanelID(panel.Title())
	if _, ok := a.layout.Panel(id); !ok {
		rec := plugin.PanelRecord(panel)
		rec.Visible = open
		a.layout.AddPanel(rec)
		return nil
	}
	return a.layout.SetPanelVisible(id, open)
}

// syncEditor copies the editor content into the active document when it
// changed since the last call.
func (a *Application) syncEditor() {
	shared := a.plugins.Shared()
	version := shared.Version(core.KeyEditorContent)

	a.mu.Lock()
	if version == a.seenContent {
		a.mu.Unlock()
		return
	}
	a.seenContent = version
	id := a.active
	a.mu.Unlock()

	if id == uuid.Nil {
		return
	}
	content, ok := plugin.Lookup[string](shared, core.KeyEditorContent)
	if !ok {
		return
	}
	if err := a.documents.SetContent(id, content); err != nil {
		a.logger.Warn("failed to apply editor content", "document", id, "error", err)
	}
}

// submit enqueues fn and registers done to run on the frame goroutine
// when its result is polled.
func (a *Application) submit(name string, fn tasks.Func, done func(tasks.Result)) (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, err := a.tasks.Submit(name, fn)
	if err != nil {
		return uuid.Nil, err
	}
	if done != nil {
		a.callbacks[id] = done
	}
	return id, nil
}

func (a *Application) applyResults() {
	for _, r := range a.tasks.Poll() {
		a.mu.Lock()
		done := a.callbacks[r.ID]
		delete(a.callbacks, r.ID)
		a.mu.Unlock()

		if r.Err != nil {
			a.logger.Debug("background task failed", "task", r.Name, "error", r.Err, "duration", r.Duration)
		} else {
			a.logger.Debug("background task finished", "task", r.Name, "duration", r.Duration)
		}
		if done != nil {
			done(r)
		}
	}
}

// loadDocument reads a document file. Files named doc_<uuid> keep that
// id, which is how projects refer to their documents.
func loadDocument(ctx context.Context, path string) (*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := document.Load(path)
	if err != nil {
		return nil, err
	}
	if id, ok := projectDocumentID(path); ok {
		doc.ID = id
	}
	return doc, nil
}

func projectDocumentID(path string) (uuid.UUID, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	raw, ok := strings.CutPrefix(stem, "doc_")
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}
