package app

import (
	"log/slog"

	"github.com/aretw0/cosmarium/pkg/config"
)

type options struct {
	logger     *slog.Logger
	configPath string
	stateDir   string
	dataDir    string
	layoutDir  string
	cfg        *config.Config
	watch      bool
}

// Option configures an Application.
type Option func(*options)

func defaultOptions() *options {
	return &options{watch: true}
}

// WithLogger sets the logger shared by every component. Without it the
// application logs to stderr at the configured advanced.log_level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConfigPath sets the config.toml location. Layouts are kept in a
// "layouts" directory next to it.
func WithConfigPath(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithStateDir sets where the recent-projects cache lives.
func WithStateDir(dir string) Option {
	return func(o *options) {
		o.stateDir = dir
	}
}

// WithDataDir sets where the session file lives.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// WithLayoutDir overrides the directory of saved layouts.
func WithLayoutDir(dir string) Option {
	return func(o *options) {
		o.layoutDir = dir
	}
}

// WithConfig uses cfg instead of loading the config file. The file is
// still written on shutdown when a config path is set.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithFileWatch toggles detection of external edits to open documents.
func WithFileWatch(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}
