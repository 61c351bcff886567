package core

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Format is the on-disk representation of a document.
type Format uint8

const (
	FormatMarkdown Format = iota
	FormatPlainText
	FormatRichText
	FormatHTML
)

func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatPlainText:
		return "plain_text"
	case FormatRichText:
		return "rich_text"
	case FormatHTML:
		return "html"
	}
	return "unknown"
}

// Extension returns the canonical file extension, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatRichText:
		return "rtf"
	case FormatHTML:
		return "html"
	}
	return "txt"
}

func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "plain_text", "plaintext", "text", "txt":
		return FormatPlainText, nil
	case "rich_text", "richtext", "rtf":
		return FormatRichText, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return FormatPlainText, Errorf(KindDocument, "unknown document format %q", s)
}

// FormatFromPath infers the format from the file extension. Unknown
// extensions are plain text.
func FormatFromPath(path string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "md", "markdown":
		return FormatMarkdown
	case "html", "htm":
		return FormatHTML
	case "rtf":
		return FormatRichText
	}
	return FormatPlainText
}

// DocumentMetadata holds user tags, free-form properties and cached counts.
type DocumentMetadata struct {
	Tags           []string          `json:"tags,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
	WordCount      int               `json:"word_count"`
	CharacterCount int               `json:"character_count"`
}

// Document is an in-memory text document. Mutating methods mark it dirty
// and bump its revision so concurrent saves can tell whether the bytes
// they wrote are still current.
type Document struct {
	ID         uuid.UUID
	Title      string
	Content    string
	Format     Format
	FilePath   string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Dirty      bool
	Revision   uint64
	Metadata   DocumentMetadata
}

// NewDocument returns a dirty, unsaved document.
func NewDocument(title, content string, format Format) *Document {
	now := time.Now()
	d := &Document{
		ID:         uuid.New(),
		Title:      title,
		Content:    content,
		Format:     format,
		CreatedAt:  now,
		ModifiedAt: now,
		Dirty:      true,
		Metadata:   DocumentMetadata{Properties: map[string]string{}},
	}
	d.recount()
	return d
}

func (d *Document) touch() {
	d.ModifiedAt = time.Now()
	d.Dirty = true
	d.Revision++
}

func (d *Document) recount() {
	d.Metadata.WordCount = len(strings.FieldsFunc(d.Content, unicode.IsSpace))
	d.Metadata.CharacterCount = len([]rune(d.Content))
}

func (d *Document) SetContent(content string) {
	d.Content = content
	d.recount()
	d.touch()
}

func (d *Document) SetTitle(title string) {
	d.Title = title
	d.touch()
}

func (d *Document) SetFilePath(path string) {
	d.FilePath = path
	d.touch()
}

// AddTag appends tag unless already present.
func (d *Document) AddTag(tag string) {
	for _, t := range d.Metadata.Tags {
		if t == tag {
			return
		}
	}
	d.Metadata.Tags = append(d.Metadata.Tags, tag)
	d.touch()
}

func (d *Document) SetProperty(key, value string) {
	if d.Metadata.Properties == nil {
		d.Metadata.Properties = make(map[string]string)
	}
	d.Metadata.Properties[key] = value
	d.touch()
}

// MarkClean clears the dirty flag.
func (d *Document) MarkClean() { d.Dirty = false }

// Clone returns a deep copy.
func (d *Document) Clone() Document {
	c := *d
	c.Metadata.Tags = append([]string(nil), d.Metadata.Tags...)
	c.Metadata.Properties = make(map[string]string, len(d.Metadata.Properties))
	for k, v := range d.Metadata.Properties {
		c.Metadata.Properties[k] = v
	}
	return c
}
