package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/cosmarium/pkg/adapters/fs"
	"github.com/aretw0/cosmarium/pkg/core"
)

const (
	// MetadataFile is the project descriptor inside the project directory.
	MetadataFile = "project.json"
	// ContentDirName holds the project documents.
	ContentDirName = "content"
	DefaultVersion = "1.0.0"
)

// Metadata describes a project.
type Metadata struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Author       string            `json:"author"`
	Version      string            `json:"version"`
	CreatedAt    time.Time         `json:"created"`
	LastModified time.Time         `json:"last_modified"`
	Template     string            `json:"template"`
	Tags         []string          `json:"tags"`
	Properties   map[string]string `json:"properties"`
}

// Settings are per-project persistence options.
type Settings struct {
	UseCompressedFormat bool `json:"use_compressed_format"`
	// AutoSaveInterval is in seconds.
	AutoSaveInterval uint64         `json:"auto_save_interval"`
	BackupEnabled    bool           `json:"backup_enabled"`
	BackupCount      int            `json:"backup_count"`
	Custom           map[string]any `json:"custom"`
}

// DefaultSettings returns the settings of a new project.
func DefaultSettings() Settings {
	return Settings{
		AutoSaveInterval: 30,
		BackupEnabled:    true,
		BackupCount:      5,
		Custom:           map[string]any{},
	}
}

// Project is a directory holding project.json and a content folder. The
// document list references ids owned by the document manager.
type Project struct {
	Path      string
	Metadata  Metadata
	Documents []uuid.UUID
	Settings  Settings

	dirty    bool
	revision uint64
}

type state struct {
	Metadata  Metadata    `json:"metadata"`
	Documents []uuid.UUID `json:"documents"`
	Settings  Settings    `json:"settings"`
}

// New returns an unsaved project rooted at path.
func New(name, path, template string) *Project {
	now := time.Now()
	return &Project{
		Path: path,
		Metadata: Metadata{
			Name:         name,
			Version:      DefaultVersion,
			CreatedAt:    now,
			LastModified: now,
			Template:     template,
			Tags:         []string{},
			Properties:   map[string]string{},
		},
		Documents: []uuid.UUID{},
		Settings:  DefaultSettings(),
		dirty:     true,
	}
}

// Load reads <path>/project.json.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(path, MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.Errorf(core.KindNotFound, "no %s in %s: %w", MetadataFile, path, core.ErrNotFound)
		}
		return nil, core.Wrap(core.KindIO, "failed to read project", err)
	}
	return decode(path, data)
}

func decode(path string, data []byte) (*Project, error) {
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, core.Wrap(core.KindJSON, fmt.Sprintf("failed to parse %s", MetadataFile), err)
	}
	if st.Metadata.Properties == nil {
		st.Metadata.Properties = map[string]string{}
	}
	if st.Settings.Custom == nil {
		st.Settings.Custom = map[string]any{}
	}
	if st.Documents == nil {
		st.Documents = []uuid.UUID{}
	}
	return &Project{
		Path:      path,
		Metadata:  st.Metadata,
		Documents: st.Documents,
		Settings:  st.Settings,
	}, nil
}

func (p *Project) encode() ([]byte, error) {
	data, err := json.MarshalIndent(state{Metadata: p.Metadata, Documents: p.Documents, Settings: p.Settings}, "", "  ")
	if err != nil {
		return nil, core.Wrap(core.KindJSON, "failed to encode project", err)
	}
	return append(data, '\n'), nil
}

// Save stamps LastModified and writes project.json. The content directory
// is created alongside it.
func (p *Project) Save() error {
	p.Metadata.LastModified = time.Now()
	data, err := p.encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.ContentDir(), 0755); err != nil {
		return core.Wrap(core.KindIO, "failed to create content directory", err)
	}
	if err := fs.WriteFileAtomic(p.MetadataPath(), data, 0644); err != nil {
		return core.Wrap(core.KindIO, "failed to write project", err)
	}
	p.dirty = false
	return nil
}

func (p *Project) Name() string { return p.Metadata.Name }

// Dirty reports unsaved changes.
func (p *Project) Dirty() bool { return p.dirty }

// MarkDirty flags the project as modified.
func (p *Project) MarkDirty() {
	p.dirty = true
	p.revision++
}

func (p *Project) MetadataPath() string { return filepath.Join(p.Path, MetadataFile) }

func (p *Project) ContentDir() string { return filepath.Join(p.Path, ContentDirName) }

// DocumentPath is where a project document with the given id is stored.
func (p *Project) DocumentPath(id uuid.UUID, format core.Format) string {
	return filepath.Join(p.ContentDir(), fmt.Sprintf("doc_%s.%s", id, format.Extension()))
}

func (p *Project) AddDocument(id uuid.UUID) {
	if slices.Contains(p.Documents, id) {
		return
	}
	p.Documents = append(p.Documents, id)
	p.MarkDirty()
}

func (p *Project) RemoveDocument(id uuid.UUID) {
	i := slices.Index(p.Documents, id)
	if i < 0 {
		return
	}
	p.Documents = slices.Delete(p.Documents, i, i+1)
	p.MarkDirty()
}

func (p *Project) HasDocument(id uuid.UUID) bool { return slices.Contains(p.Documents, id) }

func (p *Project) SetSettings(s Settings) {
	p.Settings = s
	p.MarkDirty()
}

// Clone returns a deep copy.
func (p *Project) Clone() Project {
	c := *p
	c.Documents = slices.Clone(p.Documents)
	c.Metadata.Tags = slices.Clone(p.Metadata.Tags)
	c.Metadata.Properties = make(map[string]string, len(p.Metadata.Properties))
	for k, v := range p.Metadata.Properties {
		c.Metadata.Properties[k] = v
	}
	c.Settings.Custom = make(map[string]any, len(p.Settings.Custom))
	for k, v := range p.Settings.Custom {
		c.Settings.Custom[k] = v
	}
	return c
}
