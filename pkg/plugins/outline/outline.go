// Package outline is the built-in outline plugin. It lists the headings of
// the editor content and tracks the one containing the cursor.
package outline

import (
	"bytes"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/zeebo/blake3"

	"github.com/aretw0/cosmarium/pkg/core"
	"github.com/aretw0/cosmarium/pkg/plugin"
	"github.com/aretw0/cosmarium/pkg/plugins/markdown"
)

const (
	Name    = "outline"
	Version = "0.1.0"
)

// Heading is an entry of the outline. Line is 1-based.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Line  int    `json:"line"`
}

var parser = goldmark.New().Parser()

// Parse returns the ATX and setext headings of a Markdown document in
// order. Headings inside code blocks are ignored.
func Parse(src []byte) []Heading {
	doc := parser.Parse(text.NewReader(src))
	var out []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		start := lines.At(0).Start
		out = append(out, Heading{
			Level: h.Level,
			Text:  inlineText(h, src),
			Line:  bytes.Count(src[:start], []byte{'\n'}) + 1,
		})
		return ast.WalkSkipChildren, nil
	})
	return out
}

func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// ActiveIndex returns the index of the last heading at or above line, or
// -1 when the cursor is before the first heading.
func ActiveIndex(headings []Heading, line int) int {
	active := -1
	for i, h := range headings {
		if h.Line > line {
			break
		}
		active = i
	}
	return active
}

// Outline is the outline plugin.
type Outline struct {
	plugin.Base
	plugin.PanelBase

	mu       sync.Mutex
	hash     [32]byte
	parsed   bool
	headings []Heading
	active   int
}

func New() *Outline {
	return &Outline{active: -1}
}

func Factory() plugin.Plugin { return New() }

func (o *Outline) Info() plugin.Info {
	return plugin.NewInfo(Name, Version, "Document outline view", "Cosmarium Team").
		WithDependency(markdown.Name)
}

func (o *Outline) Type() plugin.Type { return plugin.TypeAnalysis }

func (o *Outline) Title() string { return "Outline" }
func (o *Outline) Icon() string { return "📑" }
func (o *Outline) DefaultPosition() core.PanelPosition { return core.PanelLeft }
func (o *Outline) DefaultOpen() bool { return true }

// Update reparses the editor content when its digest changes and follows
// the cursor line.
func (o *Outline) Update(ctx *plugin.Context) error {
	content, ok := plugin.LookupShared[string](ctx, core.KeyEditorContent)
	if !ok {
		return nil
	}

	o.mu.Lock()
	sum := blake3.Sum256([]byte(content))
	reparsed := !o.parsed || sum != o.hash
	if reparsed {
		o.headings = Parse([]byte(content))
		o.hash = sum
		o.parsed = true
		ctx.Logger().Debug("outline reparsed", "headings", len(o.headings))
	}
	active := o.active
	if line, ok := plugin.LookupShared[int](ctx, core.KeyEditorCursorLine); ok {
		active = ActiveIndex(o.headings, line)
	} else if reparsed && active >= len(o.headings) {
		active = -1
	}
	moved := active != o.active
	o.active = active
	headings := append([]Heading(nil), o.headings...)
	o.mu.Unlock()

	if reparsed {
		plugin.SetShared(ctx, core.KeyOutlineHeadings, headings)
	}
	if reparsed || moved {
		plugin.SetShared(ctx, core.KeyOutlineActive, active)
	}
	return nil
}

// Headings returns the current outline.
func (o *Outline) Headings() []Heading {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Heading(nil), o.headings...)
}

// Active returns the index of the heading containing the cursor, or -1.
func (o *Outline) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// GotoHeading asks the editor to move to heading i.
func (o *Outline) GotoHeading(ctx *plugin.Context, i int) error {
	o.mu.Lock()
	if i < 0 || i >= len(o.headings) {
		n := len(o.headings)
		o.mu.Unlock()
		return core.Errorf(core.KindNotFound, "heading %d of %d: %w", i, n, core.ErrNotFound)
	}
	line := o.headings[i].Line
	o.active = i
	o.mu.Unlock()

	plugin.SetShared(ctx, core.KeyEditorGotoLine, line)
	plugin.SetShared(ctx, core.KeyOutlineActive, i)
	return nil
}

var _ plugin.Panel = (*Outline)(nil)
