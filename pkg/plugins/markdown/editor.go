// Package markdown is the built-in Markdown editor plugin. It owns the
// text being edited and talks to the host and to other plugins through
// shared state: it publishes the content, cursor and writing stats, and
// consumes load requests, undo/redo actions and goto-line requests.
package markdown

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/cosmarium/pkg/core"
	"github.com/aretw0/cosmarium/pkg/events"
	"github.com/aretw0/cosmarium/pkg/plugin"
)

const (
	Name    = "markdown-editor"
	Version = "0.1.0"

	// ConfigKey holds the editor Config in the plugin settings.
	ConfigKey = "markdown_editor"

	// AutoSaveEvent names the Custom event emitted when the auto-save
	// interval elapses with unsaved edits.
	AutoSaveEvent = "markdown_editor_autosave"
)

// Actions accepted through core.KeyEditorAction.
const (
	ActionUndo  = "undo"
	ActionRedo  = "redo"
	ActionClear = "clear"
)

// Context menu item ids.
const (
	MenuUndo      = "undo"
	MenuRedo      = "redo"
	MenuSelectAll = "select_all"
	MenuWordCount = "word_count"
)

// Config is the editor section of the plugin settings.
type Config struct {
	AutoSaveInterval uint64 `json:"auto_save_interval"` // seconds, 0 disables
	ShowStats        bool   `json:"show_stats"`
	WordWrap         bool   `json:"word_wrap"`
	ShowLineNumbers  bool   `json:"show_line_numbers"`
	DistractionFree  bool   `json:"distraction_free"`
}

func DefaultConfig() Config {
	return Config{AutoSaveInterval: 30, ShowStats: true, WordWrap: true}
}

// Selection is a byte range of the content.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Editor is the markdown-editor plugin.
type Editor struct {
	plugin.Base
	plugin.PanelBase

	now func() time.Time

	mu        sync.Mutex
	cfg       Config
	content   string
	cursor    int
	selection *Selection
	changed   bool
	lastSave  time.Time
	stats     *WritingStats
	history   *History
}

// New returns an editor with empty content.
func New() *Editor {
	return &Editor{
		now:     time.Now,
		cfg:     DefaultConfig(),
		stats:   NewWritingStats(),
		history: NewHistory(DefaultHistorySize),
	}
}

// Factory registers the editor with a plugin manager.
func Factory() plugin.Plugin { return New() }

func (e *Editor) Info() plugin.Info {
	return plugin.NewInfo(Name, Version, "Markdown editor for creative writing", "Cosmarium Team").
		WithMinCoreVersion("0.1.0")
}

func (e *Editor) Type() plugin.Type { return plugin.TypeEditor }

func (e *Editor) Title() string { return "Markdown Editor" }
func (e *Editor) Icon() string { return "📝" }

func (e *Editor) DefaultPosition() core.PanelPosition { return core.PanelCenter }
func (e *Editor) DefaultSize() core.PanelSize { return core.FlexibleSize(400, 300) }
func (e *Editor) DefaultOpen() bool { return true }
func (e *Editor) Closable() bool { return false }

// Initialize reads the editor config, storing the defaults when absent,
// and picks up content already published by a previous instance.
func (e *Editor) Initialize(ctx *plugin.Context) error {
	cfg, err := plugin.Config[Config](ctx, ConfigKey)
	if err != nil {
		if !core.IsKind(err, core.KindConfig) {
			ctx.Logger().Warn("invalid editor config, using defaults", "error", err)
		}
		cfg = DefaultConfig()
		if err := ctx.SetConfig(ConfigKey, cfg); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.cfg = cfg
	e.lastSave = e.now()
	if content, ok := plugin.LookupShared[string](ctx, core.KeyEditorContent); ok {
		e.content = content
		e.stats.reload(content)
	}
	e.mu.Unlock()

	e.publish(ctx)
	ctx.Logger().Info("markdown editor initialized", "auto_save_interval", cfg.AutoSaveInterval)
	return nil
}

// Update consumes pending host requests and runs the auto-save timer.
func (e *Editor) Update(ctx *plugin.Context) error {
	shared := ctx.Shared()
	dirty := false

	if content, ok := plugin.LookupShared[string](ctx, core.KeyEditorLoad); ok {
		shared.Remove(core.KeyEditorLoad)
		e.load(content)
		dirty = true
	}

	if action, ok := plugin.LookupShared[string](ctx, core.KeyEditorAction); ok && action != "" {
		shared.Remove(core.KeyEditorAction)
		if e.apply(action) {
			dirty = true
			e.changedLocally(ctx)
		} else {
			ctx.Logger().Debug("editor action had no effect", "action", action)
		}
	}

	if line, ok := plugin.LookupShared[int](ctx, core.KeyEditorGotoLine); ok {
		shared.Remove(core.KeyEditorGotoLine)
		e.mu.Lock()
		e.cursor = lineOffset(e.content, line)
		e.mu.Unlock()
		dirty = true
	}

	if dirty {
		e.publish(ctx)
	}
	e.autoSave(ctx)
	return nil
}

// Content returns the text being edited.
func (e *Editor) Content() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content
}

// Changed reports edits not yet flushed by auto-save.
func (e *Editor) Changed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changed
}

// Stats returns a copy of the current writing stats.
func (e *Editor) Stats() WritingStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.Clone()
}

// Config returns the active editor config.
func (e *Editor) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Cursor returns the cursor byte offset and its 1-based line.
func (e *Editor) Cursor() (offset, line int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor, lineOf(e.content, e.cursor)
}

// Selection returns the selected range, if any.
func (e *Editor) Selection() (Selection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selection == nil {
		return Selection{}, false
	}
	return *e.selection, true
}

// CanUndo reports whether there is an edit to undo.
func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanUndo()
}

// CanRedo reports whether there is an undone edit to redo.
func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanRedo()
}

// Edit replaces the content as a user edit: the previous content goes to
// the undo history and the new content is published.
func (e *Editor) Edit(ctx *plugin.Context, text string) {
	e.mu.Lock()
	if text == e.content {
		e.mu.Unlock()
		return
	}
	e.history.Push(e.content)
	e.setContent(text)
	e.cursor = min(e.cursor, len(text))
	e.mu.Unlock()

	e.changedLocally(ctx)
	e.publish(ctx)
}

// SetCursor moves the cursor, clamped to the content.
func (e *Editor) SetCursor(ctx *plugin.Context, offset int) {
	e.mu.Lock()
	e.cursor = max(0, min(offset, len(e.content)))
	e.mu.Unlock()
	e.publishCursor(ctx)
}

func (e *Editor) ContextMenuItems() []core.ContextMenuItem {
	e.mu.Lock()
	canUndo, canRedo := e.history.CanUndo(), e.history.CanRedo()
	e.mu.Unlock()

	undo := core.MenuItem(MenuUndo, "Undo")
	undo.Enabled = canUndo
	redo := core.MenuItem(MenuRedo, "Redo")
	redo.Enabled = canRedo
	return []core.ContextMenuItem{
		undo,
		redo,
		core.Separator(),
		core.MenuItem(MenuSelectAll, "Select All"),
		core.MenuItem(MenuWordCount, "Word Count"),
	}
}

func (e *Editor) HandleContextMenu(id string, ctx *plugin.Context) error {
	switch id {
	case MenuUndo, MenuRedo:
		if e.apply(id) {
			e.changedLocally(ctx)
			e.publish(ctx)
		}
	case MenuSelectAll:
		e.mu.Lock()
		e.selection = &Selection{Start: 0, End: len(e.content)}
		e.mu.Unlock()
	case MenuWordCount:
		stats := e.Stats()
		ctx.Logger().Info("word count", "words", stats.Words, "characters", stats.Characters)
		return ctx.Emit(ctx.Context(), core.NewCustomEvent(MenuWordCount, strconv.Itoa(stats.Words)), events.ScopeLocal)
	default:
		ctx.Logger().Warn("unhandled context menu item", "item", id)
	}
	return nil
}

// load replaces the content without recording history. The loaded text is
// not counted as written in this session.
func (e *Editor) load(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.content = content
	e.cursor = 0
	e.selection = nil
	e.changed = false
	e.lastSave = e.now()
	e.history.Clear()
	e.stats.reload(content)
}

// apply runs an undo, redo or clear action and reports whether the
// content changed.
func (e *Editor) apply(action string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch action {
	case ActionUndo:
		prev, ok := e.history.Undo(e.content)
		if !ok {
			return false
		}
		e.setContent(prev)
	case ActionRedo:
		next, ok := e.history.Redo(e.content)
		if !ok {
			return false
		}
		e.setContent(next)
	case ActionClear:
		if e.content == "" {
			return false
		}
		e.history.Push(e.content)
		e.setContent("")
	default:
		return false
	}
	e.cursor = min(e.cursor, len(e.content))
	return true
}

// setContent must be called with mu held.
func (e *Editor) setContent(text string) {
	e.content = text
	e.changed = true
	e.selection = nil
	e.stats.Update(text)
}

func (e *Editor) autoSave(ctx *plugin.Context) {
	e.mu.Lock()
	interval := time.Duration(e.cfg.AutoSaveInterval) * time.Second
	now := e.now()
	due := e.changed && interval > 0 && now.Sub(e.lastSave) >= interval
	if due {
		e.changed = false
		e.lastSave = now
	}
	e.mu.Unlock()
	if !due {
		return
	}

	e.publish(ctx)
	if err := ctx.Emit(ctx.Context(), core.NewCustomEvent(AutoSaveEvent, "Auto-saved document"), events.ScopeGlobal); err != nil {
		ctx.Logger().Error("auto-save failed", "error", err)
		return
	}
	ctx.Logger().Debug("document auto-saved")
}

func (e *Editor) changedLocally(ctx *plugin.Context) {
	_ = ctx.Emit(ctx.Context(), core.NewEvent(core.DocumentChanged, "Document content modified"), events.ScopeLocal)
}

func (e *Editor) publish(ctx *plugin.Context) {
	e.mu.Lock()
	content := e.content
	stats := e.stats.Clone()
	e.mu.Unlock()

	plugin.SetShared(ctx, core.KeyEditorContent, content)
	plugin.SetShared(ctx, core.KeyEditorStats, stats)
	e.publishCursor(ctx)
}

func (e *Editor) publishCursor(ctx *plugin.Context) {
	e.mu.Lock()
	offset, line := e.cursor, lineOf(e.content, e.cursor)
	e.mu.Unlock()
	plugin.SetShared(ctx, core.KeyEditorCursorIdx, offset)
	plugin.SetShared(ctx, core.KeyEditorCursorLine, line)
}

// Shutdown drops the history. Content stays published so a reloaded
// editor resumes where this one stopped.
func (e *Editor) Shutdown(ctx *plugin.Context) error {
	e.mu.Lock()
	e.history.Clear()
	e.mu.Unlock()
	return nil
}

// lineOf returns the 1-based line containing offset.
func lineOf(text string, offset int) int {
	offset = max(0, min(offset, len(text)))
	return strings.Count(text[:offset], "\n") + 1
}

// lineOffset returns the byte offset of the start of the 1-based line,
// clamped to the content.
func lineOffset(text string, line int) int {
	if line <= 1 {
		return 0
	}
	offset := 0
	for i := 1; i < line; i++ {
		next := strings.IndexByte(text[offset:], '\n')
		if next < 0 {
			return len(text)
		}
		offset += next + 1
	}
	return offset
}

var _ plugin.Panel = (*Editor)(nil)
