package outline

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cosmarium/pkg/core"
	"github.com/aretw0/cosmarium/pkg/plugin"
	"github.com/aretw0/cosmarium/pkg/plugins/markdown"
)

const chapter = `# The Beginning

It was a dark night.

## A *stormy* arrival ##

` + "```" + `
# not a heading
` + "```" + `

Setext Title
============

### Epilogue
`

func TestParseHeadings(t *testing.T) {
	got := Parse([]byte(chapter))
	assert.Equal(t, []Heading{
		{Level: 1, Text: "The Beginning", Line: 1},
		{Level: 2, Text: "A stormy arrival", Line: 5},
		{Level: 1, Text: "Setext Title", Line: 11},
		{Level: 3, Text: "Epilogue", Line: 14},
	}, got)

	assert.Empty(t, Parse([]byte("no headings here\n")))
	assert.Empty(t, Parse(nil))
}

func TestActiveIndex(t *testing.T) {
	headings := Parse([]byte(chapter))
	assert.Equal(t, -1, ActiveIndex(nil, 3))
	assert.Equal(t, 0, ActiveIndex(headings, 1))
	assert.Equal(t, 0, ActiveIndex(headings, 4))
	assert.Equal(t, 1, ActiveIndex(headings, 5))
	assert.Equal(t, 3, ActiveIndex(headings, 100))

	assert.Equal(t, -1, ActiveIndex(Parse([]byte("intro\n\n# Later\n")), 1))
}

func newContext(t *testing.T) *plugin.Context {
	t.Helper()
	return plugin.NewContext(context.Background(), plugin.ContextConfig{
		Name:   Name,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestUpdateFollowsEditor(t *testing.T) {
	ctx := newContext(t)
	o := New()
	require.NoError(t, o.Initialize(ctx))

	require.NoError(t, o.Update(ctx))
	assert.False(t, ctx.Shared().Contains(core.KeyOutlineHeadings), "no content yet")

	plugin.SetShared(ctx, core.KeyEditorContent, chapter)
	plugin.SetShared(ctx, core.KeyEditorCursorLine, 6)
	require.NoError(t, o.Update(ctx))

	headings, err := plugin.GetShared[[]Heading](ctx, core.KeyOutlineHeadings)
	require.NoError(t, err)
	assert.Len(t, headings, 4)
	active, err := plugin.GetShared[int](ctx, core.KeyOutlineActive)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	// unchanged content is not republished
	version := ctx.Shared().Version(core.KeyOutlineHeadings)
	require.NoError(t, o.Update(ctx))
	assert.Equal(t, version, ctx.Shared().Version(core.KeyOutlineHeadings))

	plugin.SetShared(ctx, core.KeyEditorContent, "# Only one\n")
	plugin.SetShared(ctx, core.KeyEditorCursorLine, 1)
	require.NoError(t, o.Update(ctx))
	assert.Equal(t, []Heading{{Level: 1, Text: "Only one", Line: 1}}, o.Headings())
	assert.Equal(t, 0, o.Active())
}

func TestGotoHeading(t *testing.T) {
	ctx := newContext(t)
	o := New()
	plugin.SetShared(ctx, core.KeyEditorContent, chapter)
	require.NoError(t, o.Update(ctx))

	require.NoError(t, o.GotoHeading(ctx, 2))
	line, err := plugin.GetShared[int](ctx, core.KeyEditorGotoLine)
	require.NoError(t, err)
	assert.Equal(t, 11, line)
	assert.Equal(t, 2, o.Active())

	assert.ErrorIs(t, o.GotoHeading(ctx, 9), core.ErrNotFound)
}

func TestOutlineWithEditor(t *testing.T) {
	ctx := newContext(t)
	editor := markdown.New()
	o := New()
	require.NoError(t, editor.Initialize(ctx))
	require.NoError(t, o.Initialize(ctx))

	editor.Edit(ctx, chapter)
	require.NoError(t, o.Update(ctx))
	require.NoError(t, o.GotoHeading(ctx, 3))

	require.NoError(t, editor.Update(ctx))
	_, line := editor.Cursor()
	assert.Equal(t, 14, line)

	require.NoError(t, o.Update(ctx))
	assert.Equal(t, 3, o.Active())
}

func TestInfoDependsOnEditor(t *testing.T) {
	info := New().Info()
	assert.Equal(t, []string{markdown.Name}, info.Dependencies)
	rec := plugin.PanelRecord(New())
	assert.Equal(t, core.PanelLeft, rec.Position)
	assert.Equal(t, core.PanelID("Outline"), rec.ID)
}
