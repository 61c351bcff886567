package plugin

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/cosmarium/pkg/core"
	"github.com/aretw0/cosmarium/pkg/events"
)

// Emitter publishes events to the application bus.
type Emitter interface {
	Emit(e core.Event) error
}

// ContextConfig holds what a Context is built from.
type ContextConfig struct {
	Name        string
	Shared      *SharedState
	Emitter     Emitter
	Logger      *slog.Logger
	Settings    map[string]any
	ProjectPath string
}

// Context is the facade a plugin uses to reach the host: shared state,
// its config values, opaque per-plugin data, and event emission in local
// or global scope.
type Context struct {
	name    string
	shared  *SharedState
	local   *events.Registry
	emitter Emitter
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	config      map[string]json.RawMessage
	data        map[string]map[string]any
	projectPath string
}

// NewContext builds a context whose Done channel closes when parent is
// cancelled or the plugin is unloaded.
func NewContext(parent context.Context, cfg ContextConfig) *Context {
	shared := cfg.Shared
	if shared == nil {
		shared = NewSharedState()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	c := &Context{
		name:        cfg.Name,
		shared:      shared,
		local:       events.NewRegistry(),
		emitter:     cfg.Emitter,
		logger:      logger.With("plugin", cfg.Name),
		ctx:         ctx,
		cancel:      cancel,
		config:      make(map[string]json.RawMessage),
		data:        make(map[string]map[string]any),
		projectPath: cfg.ProjectPath,
	}
	for k, v := range cfg.Settings {
		if err := c.SetConfig(k, v); err != nil {
			c.logger.Warn("ignoring plugin setting", "key", k, "error", err)
		}
	}
	return c
}

// Name returns the owning plugin name.
func (c *Context) Name() string { return c.name }

// Logger returns a logger tagged with the plugin name.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Shared returns the backing shared state store.
func (c *Context) Shared() *SharedState { return c.shared }

// Context returns a context cancelled when the plugin is unloaded. Plugins
// use it for background work.
func (c *Context) Context() context.Context { return c.ctx }

func (c *Context) close() {
	c.cancel()
	c.local.Clear()
}

// SetConfig stores v as a JSON value.
func (c *Context) SetConfig(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return core.Wrap(core.KindJSON, "failed to encode config "+key, err)
	}
	c.mu.Lock()
	c.config[key] = raw
	c.mu.Unlock()
	return nil
}

// ConfigRaw returns the raw JSON stored under key.
func (c *Context) ConfigRaw(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.config[key]
	return raw, ok
}

// ConfigKeys returns the config keys in lexical order.
func (c *Context) ConfigKeys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.config))
	for k := range c.config {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Config decodes the config value under key into T.
func Config[T any](c *Context, key string) (T, error) {
	var out T
	raw, ok := c.ConfigRaw(key)
	if !ok {
		return out, core.Wrap(core.KindConfig, "plugin config "+key, core.ErrNotFound)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, core.Wrap(core.KindJSON, "failed to decode config "+key, err)
	}
	return out, nil
}

// SetData stores an opaque value for (plugin, key).
func (c *Context) SetData(plugin, key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.data[plugin]
	if !ok {
		m = make(map[string]any)
		c.data[plugin] = m
	}
	m[key] = v
}

// RemoveData deletes the value for (plugin, key).
func (c *Context) RemoveData(plugin, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.data[plugin]; ok {
		delete(m, key)
		if len(m) == 0 {
			delete(c.data, plugin)
		}
	}
}

// Data returns the value stored for (plugin, key) if it has type T.
func Data[T any](c *Context, plugin, key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[plugin][key].(T)
	return v, ok
}

// ProjectPath returns the active project directory, or "".
func (c *Context) ProjectPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.projectPath
}

func (c *Context) SetProjectPath(path string) {
	c.mu.Lock()
	c.projectPath = path
	c.mu.Unlock()
}

// Subscribe registers a handler on this context's local registry.
func (c *Context) Subscribe(t core.EventType, h events.Handler, priority int) uuid.UUID {
	return c.local.Add(t, h, priority)
}

// Unsubscribe removes a local subscription.
func (c *Context) Unsubscribe(id uuid.UUID) bool {
	return c.local.Remove(id)
}

// LocalHandlerCount returns the number of local handlers for t.
func (c *Context) LocalHandlerCount(t core.EventType) int {
	return c.local.Count(t)
}

// Emit publishes e. ScopeLocal dispatches synchronously to the handlers
// registered on this context, logging their failures. ScopeGlobal hands
// the event to the application bus.
func (c *Context) Emit(ctx context.Context, e core.Event, scope events.Scope) error {
	if scope == events.ScopeGlobal {
		if c.emitter == nil {
			return core.Wrap(core.KindEvent, "plugin "+c.name+" has no bus", core.ErrNotInitialized)
		}
		return c.emitter.Emit(e)
	}
	res := c.local.Dispatch(ctx, e)
	for _, herr := range res.Errors {
		c.logger.Error("local event handler failed", "event_type", e.Type, "error", herr.Err)
	}
	return nil
}

// SetShared stores v in the shared state.
func SetShared[T any](c *Context, key string, v T) { Set(c.shared, key, v) }

// GetShared reads a typed value from the shared state.
func GetShared[T any](c *Context, key string) (T, error) { return Get[T](c.shared, key) }

// LookupShared reads a typed value, reporting absence on any failure.
func LookupShared[T any](c *Context, key string) (T, bool) { return Lookup[T](c.shared, key) }
