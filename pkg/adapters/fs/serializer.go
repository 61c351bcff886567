package fs

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/cosmarium/pkg/core"
)

// Serializer converts between file bytes and document content/metadata.
// Title, path and timestamps are not part of the file body.
type Serializer interface {
	// Parse reads from r and returns a document holding content and
	// metadata only.
	Parse(r io.Reader) (*core.Document, error)
	// Serialize converts the document body to bytes.
	Serialize(doc core.Document) ([]byte, error)
}

// SerializerFor returns the serializer used for a document format.
func SerializerFor(format core.Format) Serializer {
	if format == core.FormatMarkdown {
		return NewMarkdownSerializer()
	}
	return NewTextSerializer()
}

// --- Text Serializer ---

// TextSerializer stores content verbatim. Used for plain text, HTML and
// RTF documents.
type TextSerializer struct{}

func NewTextSerializer() *TextSerializer { return &TextSerializer{} }

func (s *TextSerializer) Parse(r io.Reader) (*core.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &core.Document{
		Content:  string(data),
		Metadata: core.DocumentMetadata{Properties: map[string]string{}},
	}, nil
}

func (s *TextSerializer) Serialize(doc core.Document) ([]byte, error) {
	return []byte(doc.Content), nil
}

// --- Markdown Serializer ---

// MarkdownSerializer reads and writes Markdown with an optional YAML
// frontmatter block carrying tags and properties.
type MarkdownSerializer struct{}

func NewMarkdownSerializer() *MarkdownSerializer { return &MarkdownSerializer{} }

type frontmatter struct {
	Tags       []string          `yaml:"tags,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

var (
	delimLF   = []byte("---\n")
	delimCRLF = []byte("---\r\n")
)

// Parse extracts frontmatter when the file starts with a delimiter line.
// A block that is not closed or is not valid YAML is kept as content.
func (s *MarkdownSerializer) Parse(r io.Reader) (*core.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := &core.Document{Metadata: core.DocumentMetadata{Properties: map[string]string{}}}

	head, body, ok := splitFrontmatter(data)
	if !ok {
		doc.Content = string(data)
		return doc, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(head, &raw); err != nil {
		doc.Content = string(data)
		return doc, nil
	}

	for k, v := range raw {
		switch k {
		case "tags":
			doc.Metadata.Tags = toStrings(v)
		case "properties":
			if m, ok := v.(map[string]any); ok {
				for pk, pv := range m {
					doc.Metadata.Properties[pk] = fmt.Sprint(pv)
				}
			}
		default:
			// foreign frontmatter keys are kept as properties
			doc.Metadata.Properties[k] = fmt.Sprint(v)
		}
	}
	doc.Content = string(body)
	return doc, nil
}

func (s *MarkdownSerializer) Serialize(doc core.Document) ([]byte, error) {
	var buf bytes.Buffer
	meta := doc.Metadata

	if len(meta.Tags) == 0 && len(meta.Properties) == 0 {
		// content that itself starts with a delimiter needs an empty block
		// to survive the round trip
		if bytes.HasPrefix([]byte(doc.Content), delimLF) || bytes.HasPrefix([]byte(doc.Content), delimCRLF) {
			buf.WriteString("---\n---\n")
		}
		buf.WriteString(doc.Content)
		return buf.Bytes(), nil
	}

	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(frontmatter{Tags: meta.Tags, Properties: meta.Properties}); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	buf.WriteString("---\n")
	buf.WriteString(doc.Content)
	return buf.Bytes(), nil
}

func splitFrontmatter(data []byte) (head, body []byte, ok bool) {
	var rest []byte
	switch {
	case bytes.HasPrefix(data, delimLF):
		rest = data[len(delimLF):]
	case bytes.HasPrefix(data, delimCRLF):
		rest = data[len(delimCRLF):]
	default:
		return nil, data, false
	}

	end := -1
	if bytes.HasPrefix(rest, []byte("---")) {
		end = 0
	} else if i := bytes.Index(rest, []byte("\n---")); i >= 0 {
		end = i + 1
	}
	if end < 0 {
		return nil, data, false
	}

	head = rest[:end]
	body = rest[end+3:]
	switch {
	case bytes.HasPrefix(body, []byte("\r\n")):
		body = body[2:]
	case bytes.HasPrefix(body, []byte("\n")):
		body = body[1:]
	case len(body) > 0:
		// "----" or "--- text" is not a closing delimiter
		return nil, data, false
	}
	return head, body, true
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{t}
	case nil:
		return nil
	}
	return []string{fmt.Sprint(v)}
}
