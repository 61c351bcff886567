// Package config loads, validates and saves the application configuration
// stored as TOML, plus the session file remembering recent projects.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aretw0/cosmarium/internal/platform"
	"github.com/aretw0/cosmarium/pkg/adapters/fs"
	"github.com/aretw0/cosmarium/pkg/core"
)

// Config is the full application configuration.
type Config struct {
	App      AppConfig      `toml:"app"`
	UI       UIConfig       `toml:"ui"`
	Editor   EditorConfig   `toml:"editor"`
	Plugins  PluginConfig   `toml:"plugins"`
	Project  ProjectConfig  `toml:"project"`
	Export   ExportConfig   `toml:"export"`
	Advanced AdvancedConfig `toml:"advanced"`
}

type AppConfig struct {
	Language     string `toml:"language"`
	CheckUpdates bool   `toml:"check_updates"`
	Telemetry    bool   `toml:"telemetry"`

	// AutoSaveInterval is in seconds.
	AutoSaveInterval  int  `toml:"auto_save_interval"`
	// MaxRecentProjects of 0 disables the recent list.
	MaxRecentProjects int  `toml:"max_recent_projects"`
	RestoreSession    bool `toml:"restore_session"`
}

type UIConfig struct {
	Theme             string  `toml:"theme"`
	FontSize          float64 `toml:"font_size"`
	FontFamily        string  `toml:"font_family"`
	SystemFontScaling bool    `toml:"system_font_scaling"`
	WindowWidth       float64 `toml:"window_width"`
	WindowHeight      float64 `toml:"window_height"`
	MaximizeOnStartup bool    `toml:"maximize_on_startup"`
	ShowSplash        bool    `toml:"show_splash"`

	// AnimationDuration is in milliseconds.
	AnimationDuration int  `toml:"animation_duration"`
	SmoothScrolling   bool `toml:"smooth_scrolling"`
}

type EditorConfig struct {
	FontFamily             string  `toml:"font_family"`
	FontSize               float64 `toml:"font_size"`
	LineHeight             float64 `toml:"line_height"`
	TabSize                int     `toml:"tab_size"`
	UseSoftTabs            bool    `toml:"use_soft_tabs"`
	ShowLineNumbers        bool    `toml:"show_line_numbers"`
	HighlightCurrentLine   bool    `toml:"highlight_current_line"`
	WordWrap               bool    `toml:"word_wrap"`
	WordWrapColumn         int     `toml:"word_wrap_column"`
	ShowWhitespace         bool    `toml:"show_whitespace"`
	TrimTrailingWhitespace bool    `toml:"trim_trailing_whitespace"`
	AutoIndent             string  `toml:"auto_indent"`
	SpellCheckLanguage     string  `toml:"spell_check_language"`
	SpellCheckEnabled      bool    `toml:"spell_check_enabled"`
}

type PluginConfig struct {
	Enabled           bool                      `toml:"enabled"`
	EnabledPlugins    []string                  `toml:"enabled_plugins"`
	DisabledPlugins   []string                  `toml:"disabled_plugins"`
	PluginDirectories []string                  `toml:"plugin_directories"`
	AutoLoad          bool                      `toml:"auto_load"`
	CheckSignatures   bool                      `toml:"check_signatures"`
	PluginSettings    map[string]map[string]any `toml:"plugin_settings"`
}

type ProjectConfig struct {
	DefaultDirectory    string `toml:"default_directory"`
	UseCompressedFormat bool   `toml:"use_compressed_format"`
	BackupEnabled       bool   `toml:"backup_enabled"`
	BackupCount         int    `toml:"backup_count"`

	// BackupInterval is in minutes.
	BackupInterval  int    `toml:"backup_interval"`
	EnableTemplates bool   `toml:"enable_templates"`
	DefaultTemplate string `toml:"default_template"`
}

type ExportConfig struct {
	DefaultDirectory string           `toml:"default_directory"`
	DefaultFormat    string           `toml:"default_format"`
	PDF              PDFExportConfig  `toml:"pdf"`
	HTML             HTMLExportConfig `toml:"html"`
	Word             WordExportConfig `toml:"word"`
}

type PDFExportConfig struct {
	PaperSize          string  `toml:"paper_size"`
	MarginTop          float64 `toml:"margin_top"`
	MarginBottom       float64 `toml:"margin_bottom"`
	MarginLeft         float64 `toml:"margin_left"`
	MarginRight        float64 `toml:"margin_right"`
	FontFamily         string  `toml:"font_family"`
	FontSize           float64 `toml:"font_size"`
	IncludeTOC         bool    `toml:"include_toc"`
	IncludePageNumbers bool    `toml:"include_page_numbers"`
}

type HTMLExportConfig struct {
	Theme            string `toml:"theme"`
	IncludeCustomCSS bool   `toml:"include_custom_css"`
	CustomCSS        string `toml:"custom_css"`
	SingleFile       bool   `toml:"single_file"`
	IncludeTOC       bool   `toml:"include_toc"`
}

type WordExportConfig struct {
	Template           string `toml:"template"`
	PreserveFormatting bool   `toml:"preserve_formatting"`
	IncludeComments    bool   `toml:"include_comments"`
	TrackChanges       bool   `toml:"track_changes"`
}

type AdvancedConfig struct {
	DebugMode        bool   `toml:"debug_mode"`
	LogLevel         string `toml:"log_level"`
	LogToFile        bool   `toml:"log_to_file"`
	ProfilingEnabled bool   `toml:"profiling_enabled"`

	// MemoryLimit is in megabytes; zero means unlimited.
	MemoryLimit int `toml:"memory_limit"`

	// NetworkTimeout is in seconds.
	NetworkTimeout       int      `toml:"network_timeout"`
	ExperimentalFeatures []string `toml:"experimental_features"`
}

// DefaultPlugins are the built-in plugins enabled by default.
var DefaultPlugins = []string{"markdown-editor", "outline", "atmosphere"}

// Default returns the default configuration.
func Default() *Config {
	docs := platform.DocumentsDir()
	return &Config{
		App: AppConfig{
			Language:          "en",
			CheckUpdates:      true,
			AutoSaveInterval:  30,
			MaxRecentProjects: 10,
			RestoreSession:    true,
		},
		UI: UIConfig{
			Theme:             "dark",
			FontSize:          12,
			FontFamily:        "Inter",
			SystemFontScaling: true,
			WindowWidth:       1200,
			WindowHeight:      800,
			ShowSplash:        true,
			AnimationDuration: 200,
			SmoothScrolling:   true,
		},
		Editor: EditorConfig{
			FontFamily:             "JetBrains Mono",
			FontSize:               14,
			LineHeight:             1.5,
			TabSize:                4,
			UseSoftTabs:            true,
			HighlightCurrentLine:   true,
			WordWrap:               true,
			WordWrapColumn:         80,
			TrimTrailingWhitespace: true,
			AutoIndent:             "smart",
			SpellCheckLanguage:     "en_US",
			SpellCheckEnabled:      true,
		},
		Plugins: PluginConfig{
			Enabled:           true,
			EnabledPlugins:    slices.Clone(DefaultPlugins),
			DisabledPlugins:   []string{},
			PluginDirectories: []string{"plugins", platform.DefaultDirs().PluginDir()},
			AutoLoad:          true,
			PluginSettings:    map[string]map[string]any{},
		},
		Project: ProjectConfig{
			DefaultDirectory:    filepath.Join(docs, "Cosmarium Projects"),
			UseCompressedFormat: true,
			BackupEnabled:       true,
			BackupCount:         5,
			BackupInterval:      10,
			EnableTemplates:     true,
			DefaultTemplate:     "novel",
		},
		Export: ExportConfig{
			DefaultDirectory: filepath.Join(docs, "Cosmarium Exports"),
			DefaultFormat:    "pdf",
			PDF: PDFExportConfig{
				PaperSize:          "A4",
				MarginTop:          25,
				MarginBottom:       25,
				MarginLeft:         25,
				MarginRight:        25,
				FontFamily:         "Liberation Serif",
				FontSize:           11,
				IncludeTOC:         true,
				IncludePageNumbers: true,
			},
			HTML: HTMLExportConfig{
				Theme:      "default",
				SingleFile: true,
				IncludeTOC: true,
			},
			Word: WordExportConfig{
				Template:           "default",
				PreserveFormatting: true,
			},
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			NetworkTimeout:       30,
			ExperimentalFeatures: []string{},
		},
	}
}

// DefaultPath is <config dir>/cosmarium/config.toml.
func DefaultPath() string { return platform.DefaultDirs().ConfigFile() }

// Load reads path over the defaults, so absent keys keep their default
// value, and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.Errorf(core.KindNotFound, "config %s: %w", path, core.ErrNotFound)
		}
		return nil, core.Wrap(core.KindIO, "failed to open config", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads TOML from r over the defaults and validates the result.
// Unknown keys are logged, not rejected, so older binaries can read newer
// files.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, core.Wrap(core.KindTOML, "failed to parse config", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slog.Warn("unknown config keys ignored", "keys", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or writes and returns the defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	cfg = Default()
	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, core.Wrap(core.KindTOML, "failed to encode config", err)
	}
	return buf.Bytes(), nil
}

// Save validates and writes the configuration atomically.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := c.Encode()
	if err != nil {
		return err
	}
	if err := fs.WriteFileAtomic(path, data, 0644); err != nil {
		return core.Wrap(core.KindConfig, "failed to write config", err)
	}
	return nil
}

var logLevels = []string{"error", "warn", "info", "debug", "trace"}

// Validate reports every out-of-range value, joined.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field, format string, args ...any) {
		if !ok {
			errs = append(errs, core.Validation(field, fmt.Sprintf(format, args...)))
		}
	}

	check(c.UI.FontSize > 0 && c.UI.FontSize <= 72, "ui.font_size", "must be in (0, 72], got %g", c.UI.FontSize)
	check(c.UI.WindowWidth >= 400, "ui.window_width", "must be at least 400, got %g", c.UI.WindowWidth)
	check(c.UI.WindowHeight >= 300, "ui.window_height", "must be at least 300, got %g", c.UI.WindowHeight)
	check(c.Editor.FontSize > 0 && c.Editor.FontSize <= 72, "editor.font_size", "must be in (0, 72], got %g", c.Editor.FontSize)
	check(c.Editor.TabSize >= 1 && c.Editor.TabSize <= 16, "editor.tab_size", "must be in [1, 16], got %d", c.Editor.TabSize)
	check(c.Editor.LineHeight >= 0.8 && c.Editor.LineHeight <= 3.0, "editor.line_height", "must be in [0.8, 3.0], got %g", c.Editor.LineHeight)
	check(c.App.MaxRecentProjects >= 0 && c.App.MaxRecentProjects <= 50, "app.max_recent_projects", "must be at most 50, got %d", c.App.MaxRecentProjects)
	check(c.Project.BackupCount >= 0 && c.Project.BackupCount <= 20, "project.backup_count", "must be at most 20, got %d", c.Project.BackupCount)
	check(slices.Contains(logLevels, c.Advanced.LogLevel), "advanced.log_level", "must be one of %s, got %q", strings.Join(logLevels, ", "), c.Advanced.LogLevel)

	return errors.Join(errs...)
}

// LevelTrace is below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// LogLevel maps advanced.log_level onto a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Advanced.LogLevel {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	}
	return slog.LevelInfo
}

// PluginEnabled reports whether name is on the enabled list and not on the
// disabled one.
func (c *Config) PluginEnabled(name string) bool {
	return c.Plugins.Enabled && slices.Contains(c.Plugins.EnabledPlugins, name) && !slices.Contains(c.Plugins.DisabledPlugins, name)
}
