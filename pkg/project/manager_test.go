package project

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
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

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *recorder, string) {
	t.Helper()
	stateDir := t.TempDir()
	rec := &recorder{}
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithEmitter(rec),
		WithStateDir(stateDir),
	}, opts...)
	m := NewManager(opts...)
	require.NoError(t, m.Initialize(context.Background()))
	return m, rec, stateDir
}

func TestCreateRequiresInitialize(t *testing.T) {
	m := NewManager()
	err := m.Create(context.Background(), "Novel", filepath.Join(t.TempDir(), "novel"), "novel")
	assert.ErrorIs(t, err, core.ErrNotInitialized)
}

func TestCreateAndOpen(t *testing.T) {
	ctx := context.Background()
	m, rec, _ := newTestManager(t)
	path := filepath.Join(t.TempDir(), "novel")

	require.NoError(t, m.Create(ctx, "My Novel", path, "novel"))
	p, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "My Novel", p.Name())
	assert.Equal(t, DefaultVersion, p.Metadata.Version)
	assert.False(t, p.Dirty())
	assert.FileExists(t, filepath.Join(path, MetadataFile))
	assert.DirExists(t, filepath.Join(path, ContentDirName))

	docID := uuid.New()
	require.NoError(t, m.Edit(func(p *Project) { p.AddDocument(docID) }))
	require.NoError(t, m.Save(ctx))
	require.NoError(t, m.Close(ctx, false))
	_, ok = m.Current()
	assert.False(t, ok)

	require.NoError(t, m.Open(ctx, path))
	p, ok = m.Current()
	require.True(t, ok)
	assert.True(t, p.HasDocument(docID))
	assert.Equal(t, "novel", p.Metadata.Template)
	assert.Equal(t, filepath.Join(path, "content", "doc_"+docID.String()+".md"), p.DocumentPath(docID, core.FormatMarkdown))

	assert.Equal(t, []core.EventType{
		core.ProjectCreated, core.ProjectSaved, core.ProjectClosed, core.ProjectOpened,
	}, rec.types())
}

func TestProjectFileIsFullJSON(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	path := filepath.Join(t.TempDir(), "story")
	require.NoError(t, m.Create(ctx, "Story", path, "short"))

	data, err := os.ReadFile(filepath.Join(path, MetadataFile))
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "metadata")
	assert.Contains(t, raw, "documents")
	assert.Contains(t, raw, "settings")
}

func TestCreateExistingPathLeavesActiveProject(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	first := filepath.Join(t.TempDir(), "first")
	require.NoError(t, m.Create(ctx, "First", first, "novel"))

	taken := t.TempDir()
	err := m.Create(ctx, "Second", taken, "novel")
	assert.ErrorIs(t, err, core.ErrAlreadyExists)
	assert.Equal(t, core.KindAlreadyExists, core.KindOf(err))

	p, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "First", p.Name())
}

func TestCreateSavesDirtyPreviousProject(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	root := t.TempDir()
	first := filepath.Join(root, "first")
	require.NoError(t, m.Create(ctx, "First", first, "novel"))
	require.NoError(t, m.Edit(func(p *Project) {
		p.Metadata.Author = "Ana"
		p.MarkDirty()
	}))

	require.NoError(t, m.Create(ctx, "Second", filepath.Join(root, "second"), "novel"))

	reloaded, err := Load(first)
	require.NoError(t, err)
	assert.Equal(t, "Ana", reloaded.Metadata.Author)
}

func TestCreateAbortsWhenPreviousSaveFails(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	root := t.TempDir()
	first := filepath.Join(root, "first")
	require.NoError(t, m.Create(ctx, "First", first, "novel"))
	require.NoError(t, m.Edit(func(p *Project) {
		p.MarkDirty()
		// a path that cannot be written as a directory
		p.Path = filepath.Join(first, MetadataFile)
	}))

	second := filepath.Join(root, "second")
	err := m.Create(ctx, "Second", second, "novel")
	require.Error(t, err)
	assert.NoDirExists(t, second)
	p, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "First", p.Name())
}

func TestOpenMissing(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	err := m.Open(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = m.Open(ctx, t.TempDir())
	assert.ErrorIs(t, err, core.ErrNotFound, "directory without project.json")
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestNoActiveProject(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	assert.Equal(t, core.KindProject, core.KindOf(m.Save(ctx)))
	assert.Equal(t, core.KindProject, core.KindOf(m.Close(ctx, true)))
	assert.Error(t, m.UpdateSettings(func(*Settings) {}))
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	m, rec, _ := newTestManager(t)
	require.NoError(t, m.Create(ctx, "S", filepath.Join(t.TempDir(), "s"), "novel"))

	require.NoError(t, m.UpdateSettings(func(s *Settings) { s.BackupCount = 2 }))
	p, _ := m.Current()
	assert.Equal(t, 2, p.Settings.BackupCount)
	assert.True(t, p.Dirty())
	assert.Contains(t, rec.types(), core.ProjectSettingsChanged)
}

func TestRecentProjects(t *testing.T) {
	ctx := context.Background()
	m, _, stateDir := newTestManager(t, WithMaxRecent(2))
	root := t.TempDir()
	a, b, c := filepath.Join(root, "a"), filepath.Join(root, "b"), filepath.Join(root, "c")

	require.NoError(t, m.Create(ctx, "A", a, "novel"))
	require.NoError(t, m.Create(ctx, "B", b, "novel"))
	require.NoError(t, m.Open(ctx, a))
	assert.Equal(t, []string{a, b}, m.RecentProjects())

	require.NoError(t, m.Create(ctx, "C", c, "novel"))
	assert.Equal(t, []string{c, a}, m.RecentProjects())
	require.NoError(t, m.Shutdown(ctx))

	require.NoError(t, os.RemoveAll(a))
	reloaded := NewManager(WithStateDir(stateDir), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, reloaded.Initialize(ctx))
	assert.Equal(t, []string{c}, reloaded.RecentProjects())
}

func TestZeroMaxRecentKeepsNoProjects(t *testing.T) {
	ctx := context.Background()
	m, _, stateDir := newTestManager(t, WithMaxRecent(0))

	require.NoError(t, m.Create(ctx, "A", filepath.Join(t.TempDir(), "a"), "novel"))
	assert.Empty(t, m.RecentProjects())
	require.NoError(t, m.Shutdown(ctx))

	data, err := os.ReadFile(filepath.Join(stateDir, RecentFile))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestRelativePathsUseDefaultDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	m, _, _ := newTestManager(t, WithDefaultDirectory(root))
	require.NoError(t, m.Create(ctx, "Rel", "rel", "novel"))
	p, _ := m.Current()
	assert.Equal(t, filepath.Join(root, "rel"), p.Path)
}

func TestDefaultSettingsApplyToNewProjects(t *testing.T) {
	ctx := context.Background()
	settings := DefaultSettings()
	settings.UseCompressedFormat = true
	settings.BackupCount = 3
	m, _, _ := newTestManager(t, WithDefaultSettings(settings))
	require.NoError(t, m.Create(ctx, "Z", filepath.Join(t.TempDir(), "z"), "novel"))
	p, _ := m.Current()
	assert.True(t, p.Settings.UseCompressedFormat)
	assert.Equal(t, 3, p.Settings.BackupCount)
}
