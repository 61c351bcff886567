package platform

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used under the platform base directories.
const AppName = "cosmarium"

// Dirs are the per-user base directories of the application.
type Dirs struct {
	Config string
	Data   string
	State  string
}

// DefaultDirs resolves the XDG style directories, falling back to the
// conventional locations under the home directory.
func DefaultDirs() Dirs {
	home, _ := os.UserHomeDir()
	config, err := os.UserConfigDir()
	if err != nil {
		config = filepath.Join(home, ".config")
	}
	return Dirs{
		Config: filepath.Join(config, AppName),
		Data:   filepath.Join(xdgDir("XDG_DATA_HOME", home, ".local", "share"), AppName),
		State:  filepath.Join(xdgDir("XDG_STATE_HOME", home, ".local", "state"), AppName),
	}
}

// ConfigFile is the default location of config.toml.
func (d Dirs) ConfigFile() string { return filepath.Join(d.Config, "config.toml") }

// SessionFile is the default location of session.json.
func (d Dirs) SessionFile() string { return filepath.Join(d.Data, "session.json") }

// LayoutDir holds the saved layouts.
func (d Dirs) LayoutDir() string { return filepath.Join(d.Config, "layouts") }

// PluginDir is the per-user plugin directory.
func (d Dirs) PluginDir() string { return filepath.Join(d.Data, "plugins") }

// DocumentsDir returns ~/Documents.
func DocumentsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Documents")
}

func xdgDir(env, home string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}
