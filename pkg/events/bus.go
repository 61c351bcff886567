// Package events provides the in-process publish/subscribe bus that links
// managers and plugins.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/aretw0/cosmarium/pkg/core"
)

// Stats counts bus activity over the lifetime of the bus.
type Stats struct {
	Emitted       uint64 `json:"emitted"`
	Dispatched    uint64 `json:"dispatched"`
	Dropped       uint64 `json:"dropped"`
	HandlerErrors uint64 `json:"handler_errors"`
}

// Bus dispatches events to handlers, either immediately or through a
// bounded queue drained by ProcessEvents. When the queue is full the
// oldest event is discarded.
type Bus struct {
	registry *Registry
	logger   *slog.Logger

	mu           sync.Mutex
	queue        []core.Event
	maxQueueSize int
	async        bool
	initialized  bool
	observers    []chan<- core.Event

	emitted       atomic.Uint64
	dispatched    atomic.Uint64
	dropped       atomic.Uint64
	handlerErrors atomic.Uint64
}

// NewBus creates an uninitialized bus.
func NewBus(opts ...Option) *Bus {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		registry:     NewRegistry(),
		logger:       logger.With("component", "event_bus"),
		maxQueueSize: o.maxQueueSize,
		async:        o.async,
	}
}

// Initialize makes the bus ready. Calling it twice only logs a warning.
func (b *Bus) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		b.logger.Warn("event bus already initialized")
		return nil
	}
	b.initialized = true
	b.logger.Debug("event bus initialized", "max_queue_size", b.maxQueueSize, "async", b.async)
	return nil
}

// Initialized reports whether Initialize has been called since the last
// Shutdown.
func (b *Bus) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

func (b *Bus) requireInitialized() error {
	if !b.initialized {
		return core.Wrap(core.KindEvent, "event bus", core.ErrNotInitialized)
	}
	return nil
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t core.EventType, h Handler, priority int) (uuid.UUID, error) {
	b.mu.Lock()
	err := b.requireInitialized()
	b.mu.Unlock()
	if err != nil {
		return uuid.Nil, err
	}
	id := b.registry.Add(t, h, priority)
	b.logger.Debug("handler subscribed", "event_type", t, "priority", priority, "id", id)
	return id, nil
}

// Unsubscribe removes the subscription from every event type.
func (b *Bus) Unsubscribe(id uuid.UUID) error {
	if !b.registry.Remove(id) {
		return core.Wrap(core.KindEvent, "subscription "+id.String(), core.ErrNotFound)
	}
	return nil
}

// Emit queues e in async mode or dispatches it right away in sync mode.
func (b *Bus) Emit(e core.Event) error {
	b.mu.Lock()
	if err := b.requireInitialized(); err != nil {
		b.mu.Unlock()
		return err
	}
	b.emitted.Add(1)
	if b.async {
		if len(b.queue) >= b.maxQueueSize {
			dropped := b.queue[0]
			b.queue = b.queue[1:]
			b.dropped.Add(1)
			b.logger.Warn("event queue full, dropping oldest event",
				"dropped_type", dropped.Type, "max_queue_size", b.maxQueueSize)
		}
		b.queue = append(b.queue, e)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	b.dispatch(context.Background(), e)
	return nil
}

// ProcessEvents drains the queue front to back and returns the number of
// events dispatched. Events emitted by handlers during the drain are
// processed in the same call.
func (b *Bus) ProcessEvents(ctx context.Context) int {
	n := 0
	for {
		if ctx.Err() != nil {
			return n
		}
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return n
		}
		e := b.queue[0]
		b.queue[0] = core.Event{}
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.dispatch(ctx, e)
		n++
	}
}

func (b *Bus) dispatch(ctx context.Context, e core.Event) {
	res := b.registry.Dispatch(ctx, e)
	b.dispatched.Add(1)
	for _, herr := range res.Errors {
		b.handlerErrors.Add(1)
		attrs := []any{"event_type", e.Type, "subscription", herr.Subscription, "error", herr.Err}
		if herr.Stack != "" && b.logger.Enabled(ctx, slog.LevelDebug) {
			attrs = append(attrs, "stack", herr.Stack)
		}
		b.logger.Error("event handler failed", attrs...)
	}
	b.notify(e)
}

// QueueSize returns the number of pending events.
func (b *Bus) QueueSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// HandlerCount returns the number of handlers subscribed to t.
func (b *Bus) HandlerCount(t core.EventType) int {
	return b.registry.Count(t)
}

// MaxQueueSize returns the queue bound.
func (b *Bus) MaxQueueSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxQueueSize
}

// SetMaxQueueSize changes the queue bound, discarding the oldest pending
// events if the queue is already larger.
func (b *Bus) SetMaxQueueSize(n int) {
	if n < 1 {
		n = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxQueueSize = n
	if excess := len(b.queue) - n; excess > 0 {
		b.queue = b.queue[excess:]
		b.dropped.Add(uint64(excess))
		b.logger.Warn("event queue shrunk, dropping oldest events", "dropped", excess)
	}
}

// SetAsync toggles queued dispatch.
func (b *Bus) SetAsync(async bool) {
	b.mu.Lock()
	b.async = async
	b.mu.Unlock()
}

// Async reports whether events are queued.
func (b *Bus) Async() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.async
}

// Stats returns activity counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Emitted:       b.emitted.Load(),
		Dispatched:    b.dispatched.Load(),
		Dropped:       b.dropped.Load(),
		HandlerErrors: b.handlerErrors.Load(),
	}
}

// Shutdown discards all handlers and pending events. The bus must be
// initialized again before use.
func (b *Bus) Shutdown() error {
	b.mu.Lock()
	pending := len(b.queue)
	b.queue = nil
	b.initialized = false
	for _, ch := range b.observers {
		close(ch)
	}
	b.observers = nil
	b.mu.Unlock()

	b.registry.Clear()
	if pending > 0 {
		b.logger.Debug("event bus shut down with pending events", "discarded", pending)
	}
	return nil
}
