package project

import (
	"log/slog"

	"github.com/aretw0/cosmarium/pkg/core"
)

// Emitter receives project lifecycle events.
type Emitter interface {
	Emit(e core.Event) error
}

const DefaultMaxRecent = 10

type options struct {
	logger     *slog.Logger
	emitter    Emitter
	stateDir   string
	maxRecent  int
	defaultDir string
	settings   *Settings
}

// Option configures a Manager.
type Option func(*options)

func defaultOptions() *options {
	return &options{maxRecent: DefaultMaxRecent}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithEmitter(e Emitter) Option {
	return func(o *options) {
		o.emitter = e
	}
}

// WithStateDir sets where the recent-projects list is persisted. Without
// it the list lives in memory only.
func WithStateDir(dir string) Option {
	return func(o *options) {
		o.stateDir = dir
	}
}

// WithMaxRecent caps the recent-projects list. Zero keeps no history.
func WithMaxRecent(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRecent = n
		}
	}
}

// WithDefaultDirectory sets the parent used for relative project paths.
func WithDefaultDirectory(dir string) Option {
	return func(o *options) {
		o.defaultDir = dir
	}
}

// WithDefaultSettings sets the settings given to newly created projects.
func WithDefaultSettings(s Settings) Option {
	return func(o *options) {
		o.settings = &s
	}
}
