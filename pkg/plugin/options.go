package plugin

import "log/slog"

// Factory constructs a fresh plugin instance.
type Factory func() Plugin

type options struct {
	logger      *slog.Logger
	emitter     Emitter
	shared      *SharedState
	directories []string
	factories   map[string]Factory
	coreVersion string
	settings    map[string]map[string]any
}

// Option configures a Manager.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		directories: []string{"plugins"},
		factories:   make(map[string]Factory),
		settings:    make(map[string]map[string]any),
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEmitter sets the bus receiving plugin lifecycle events and global
// emissions from plugin contexts.
func WithEmitter(e Emitter) Option {
	return func(o *options) {
		o.emitter = e
	}
}

// WithSharedState sets the store shared by every plugin context.
func WithSharedState(s *SharedState) Option {
	return func(o *options) {
		o.shared = s
	}
}

// WithDirectories replaces the directories scanned for plugin manifests.
func WithDirectories(dirs ...string) Option {
	return func(o *options) {
		o.directories = dirs
	}
}

// WithFactory registers a compiled-in plugin under name.
func WithFactory(name string, f Factory) Option {
	return func(o *options) {
		o.factories[name] = f
	}
}

// WithCoreVersion sets the host version checked against MinCoreVersion.
func WithCoreVersion(v string) Option {
	return func(o *options) {
		o.coreVersion = v
	}
}

// WithSettings seeds plugin contexts with per-plugin config values.
func WithSettings(settings map[string]map[string]any) Option {
	return func(o *options) {
		for name, s := range settings {
			o.settings[name] = s
		}
	}
}
