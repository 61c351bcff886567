package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cosmarium/pkg/config"
	"github.com/aretw0/cosmarium/pkg/core"
	"github.com/aretw0/cosmarium/pkg/events"
	"github.com/aretw0/cosmarium/pkg/plugin"
	"github.com/aretw0/cosmarium/pkg/plugins/atmosphere"
	"github.com/aretw0/cosmarium/pkg/plugins/markdown"
	"github.com/aretw0/cosmarium/pkg/plugins/outline"
)

type testEnv struct {
	root string
	cfg  *config.Config
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Project.DefaultDirectory = filepath.Join(root, "projects")
	cfg.Plugins.PluginDirectories = []string{filepath.Join(root, "plugins")}
	return &testEnv{root: root, cfg: cfg}
}

func (e *testEnv) newApp(t *testing.T) *Application {
	t.Helper()
	return New(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithConfig(e.cfg),
		WithConfigPath(filepath.Join(e.root, "config", "config.toml")),
		WithStateDir(filepath.Join(e.root, "state")),
		WithDataDir(filepath.Join(e.root, "data")),
		WithFileWatch(false),
	)
}

func (e *testEnv) start(t *testing.T) *Application {
	t.Helper()
	a := e.newApp(t)
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func editorOf(t *testing.T, a *Application) (*markdown.Editor, *plugin.Context) {
	t.Helper()
	p, ok := a.Plugins().Plugin(markdown.Name)
	require.True(t, ok)
	ctx, ok := a.Plugins().Context(markdown.Name)
	require.True(t, ok)
	return p.(*markdown.Editor), ctx
}

// frames runs Update until cond holds.
func frames(t *testing.T, a *Application, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		require.NoError(t, a.Update(context.Background()))
		return cond()
	}, 3*time.Second, 5*time.Millisecond)
}

func TestUpdateRequiresInitialize(t *testing.T) {
	a := newEnv(t).newApp(t)
	assert.ErrorIs(t, a.Update(context.Background()), core.ErrNotInitialized)
	assert.NoError(t, a.Shutdown(context.Background()), "shutdown before initialize is a no-op")
}

func TestInitialize(t *testing.T) {
	env := newEnv(t)
	a := env.start(t)

	assert.ElementsMatch(t, []string{markdown.Name, outline.Name, atmosphere.Name}, a.Plugins().Loaded())

	for _, title := range []string{"Markdown Editor", "Outline", "Atmosphere"} {
		_, ok := a.Layout().Panel(core.PanelID(title))
		assert.True(t, ok, "layout has a %s panel", title)
	}
	assert.Equal(t, env.cfg.UI.WindowWidth, a.Layout().Current().Window.Width)

	var startups atomic.Int32
	_, err := a.Bus().Subscribe(core.ApplicationStartup, events.HandlerFunc(func(context.Context, core.Event) error {
		startups.Add(1)
		return nil
	}), 0)
	require.NoError(t, err)
	require.NoError(t, a.Update(context.Background()))
	assert.Equal(t, int32(1), startups.Load())
	assert.Equal(t, uint64(1), a.Frames())

	require.NoError(t, a.Initialize(context.Background()), "second initialize only warns")
}

func TestDisabledPluginIsNotLoaded(t *testing.T) {
	env := newEnv(t)
	env.cfg.Plugins.DisabledPlugins = []string{atmosphere.Name}
	a := env.start(t)

	assert.ElementsMatch(t, []string{markdown.Name, outline.Name}, a.Plugins().Loaded())
	_, ok := a.Layout().Panel(core.PanelID("Atmosphere"))
	assert.False(t, ok)
}

func TestInvalidConfigAborts(t *testing.T) {
	env := newEnv(t)
	env.cfg.Editor.TabSize = 0
	a := env.newApp(t)

	err := a.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindValidation))
	assert.ErrorIs(t, a.Update(context.Background()), core.ErrNotInitialized)
}

func TestFailedStartupRollsBack(t *testing.T) {
	env := newEnv(t)
	blocker := filepath.Join(env.root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))

	a := New(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithConfig(env.cfg),
		WithStateDir(filepath.Join(env.root, "state")),
		WithDataDir(filepath.Join(env.root, "data")),
		WithLayoutDir(filepath.Join(blocker, "layouts")),
		WithFileWatch(false),
	)
	err := a.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindLayout))
	assert.Equal(t, 1, strings.Count(err.Error(), "layout error"), err.Error())

	assert.False(t, a.Bus().State().(events.BusState).Initialized)
	assert.Empty(t, a.Plugins().Loaded())
	assert.ErrorIs(t, a.Update(context.Background()), core.ErrNotInitialized)
}

func TestProjectDocumentEditAndSave(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	a := env.start(t)

	require.NoError(t, a.CreateProject(ctx, "Novel", "novel", ""))
	p, ok := a.Projects().Current()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(env.cfg.Project.DefaultDirectory, "novel"), p.Path)
	assert.Equal(t, "novel", p.Metadata.Template)
	assert.Equal(t, []string{p.Path}, a.Session().RecentProjects)

	id, err := a.NewProjectDocument(ctx, "Chapter 1", core.FormatMarkdown)
	require.NoError(t, err)
	p, _ = a.Projects().Current()
	assert.Equal(t, []uuid.UUID{id}, p.Documents)
	assert.FileExists(t, p.DocumentPath(id, core.FormatMarkdown))

	require.NoError(t, a.SetActiveDocument(id))
	require.NoError(t, a.Update(ctx))

	editor, pctx := editorOf(t, a)
	editor.Edit(pctx, "# Chapter 1\n\nIt begins.")
	require.NoError(t, a.Update(ctx))

	doc, err := a.Documents().Get(id)
	require.NoError(t, err)
	assert.Equal(t, "# Chapter 1\n\nIt begins.", doc.Content)
	assert.True(t, doc.Dirty)

	var saved atomic.Bool
	_, err = a.SaveDocumentAsync(id, func(err error) {
		assert.NoError(t, err)
		saved.Store(true)
	})
	require.NoError(t, err)
	frames(t, a, saved.Load)

	doc, err = a.Documents().Get(id)
	require.NoError(t, err)
	assert.False(t, doc.Dirty)
	data, err := os.ReadFile(doc.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "It begins.")
}

func TestNewProjectDocumentNeedsProject(t *testing.T) {
	a := newEnv(t).start(t)
	_, err := a.NewProjectDocument(context.Background(), "Orphan", core.FormatMarkdown)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Zero(t, a.Documents().Count())
}

func TestSessionRestoresLastProject(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	first := env.newApp(t)
	require.NoError(t, first.Initialize(ctx))
	require.NoError(t, first.CreateProject(ctx, "Saga", "saga", "novel"))
	id, err := first.NewProjectDocument(ctx, "Prologue", core.FormatMarkdown)
	require.NoError(t, err)
	require.NoError(t, first.SetActiveDocument(id))
	require.NoError(t, first.Update(ctx))
	editor, pctx := editorOf(t, first)
	editor.Edit(pctx, "Once upon a time.")
	// no frame ran: shutdown flushes the editor itself
	require.NoError(t, first.Shutdown(ctx))

	second := env.start(t)
	p, ok := second.Projects().Current()
	require.True(t, ok, "last project reopened")
	assert.Equal(t, "Saga", p.Name())

	frames(t, second, func() bool { return second.ActiveDocument() != uuid.Nil })
	assert.Equal(t, id, second.ActiveDocument(), "document keeps its project id")

	require.NoError(t, second.Update(ctx))
	editor, _ = editorOf(t, second)
	assert.Equal(t, "Once upon a time.", editor.Content())
}

func TestAutoSaveEventSavesActiveDocument(t *testing.T) {
	ctx := context.Background()
	a := newEnv(t).start(t)
	require.NoError(t, a.CreateProject(ctx, "Notes", "notes", ""))
	id, err := a.NewProjectDocument(ctx, "Ideas", core.FormatMarkdown)
	require.NoError(t, err)
	require.NoError(t, a.SetActiveDocument(id))
	require.NoError(t, a.Update(ctx))

	editor, pctx := editorOf(t, a)
	editor.Edit(pctx, "a new idea")
	require.NoError(t, a.Bus().Emit(core.NewCustomEvent(markdown.AutoSaveEvent, "Auto-saved document")))

	frames(t, a, func() bool {
		doc, err := a.Documents().Get(id)
		return err == nil && doc.Content == "a new idea" && !doc.Dirty
	})
}

func TestOpenDocumentAsync(t *testing.T) {
	a := newEnv(t).start(t)
	path := filepath.Join(t.TempDir(), "draft.md")
	require.NoError(t, os.WriteFile(path, []byte("# Draft\n"), 0644))

	var opened uuid.UUID
	_, err := a.OpenDocumentAsync(path, func(id uuid.UUID, err error) {
		require.NoError(t, err)
		opened = id
	})
	require.NoError(t, err)
	frames(t, a, func() bool { return opened != uuid.Nil })

	doc, err := a.Documents().Get(opened)
	require.NoError(t, err)
	assert.Equal(t, "draft", doc.Title)

	var failed error
	_, err = a.OpenDocumentAsync(filepath.Join(t.TempDir(), "missing.md"), func(_ uuid.UUID, err error) {
		failed = err
	})
	require.NoError(t, err)
	frames(t, a, func() bool { return failed != nil })
	assert.ErrorIs(t, failed, core.ErrNotFound)
}

func TestCloseActiveDocumentClearsEditor(t *testing.T) {
	ctx := context.Background()
	a := newEnv(t).start(t)
	id, err := a.Documents().Create("Scratch", "scratch text", core.FormatPlainText)
	require.NoError(t, err)
	require.NoError(t, a.SetActiveDocument(id))
	require.NoError(t, a.Update(ctx))
	editor, _ := editorOf(t, a)
	assert.Equal(t, "scratch text", editor.Content())

	require.NoError(t, a.CloseDocument(ctx, id, false))
	assert.Equal(t, uuid.Nil, a.ActiveDocument())
	require.NoError(t, a.Update(ctx))
	assert.Empty(t, editor.Content())
	assert.False(t, a.Plugins().Shared().Contains(core.KeyActiveDocument))
}

func TestSetPanelOpen(t *testing.T) {
	a := newEnv(t).start(t)

	require.NoError(t, a.SetPanelOpen(atmosphere.Name, true))
	panel, ok := a.Layout().Panel(core.PanelID("Atmosphere"))
	require.True(t, ok)
	assert.True(t, panel.Visible)

	require.NoError(t, a.SetPanelOpen(atmosphere.Name, false))
	panel, _ = a.Layout().Panel(core.PanelID("Atmosphere"))
	assert.False(t, panel.Visible)

	assert.Error(t, a.SetPanelOpen(markdown.Name, false), "the editor cannot be closed")
	assert.ErrorIs(t, a.SetPanelOpen("missing", true), core.ErrNotFound)
}

func TestShutdownPersistsConfigAndSession(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	a := env.newApp(t)
	require.NoError(t, a.Initialize(ctx))
	require.NoError(t, a.CreateProject(ctx, "Poems", "poems", ""))
	require.NoError(t, a.Shutdown(ctx))

	cfg, err := config.Load(filepath.Join(env.root, "config", "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, env.cfg.Project.DefaultDirectory, cfg.Project.DefaultDirectory)

	session := config.LoadSession(filepath.Join(env.root, "data", "session.json"))
	assert.Equal(t, filepath.Join(env.cfg.Project.DefaultDirectory, "poems"), session.LastOpenedProject)
	assert.FileExists(t, filepath.Join(env.root, "config", "layouts", "default.json"))

	assert.NoError(t, a.Shutdown(ctx), "second shutdown is a no-op")
}

func TestState(t *testing.T) {
	a := newEnv(t).start(t)
	require.NoError(t, a.Update(context.Background()))

	st, ok := a.State().(State)
	require.True(t, ok)
	assert.True(t, st.Initialized)
	assert.Equal(t, Version, st.Version)
	assert.Equal(t, uint64(1), st.Frames)
	for _, name := range []string{"events", "plugins", "projects", "documents", "layout", "tasks"} {
		assert.Contains(t, st.Components, name)
	}
	assert.Equal(t, "task_queue", st.Components["tasks"].Type)
	assert.Equal(t, "application", a.ComponentType())
}
