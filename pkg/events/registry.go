package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/cosmarium/pkg/core"
)

// Handler reacts to a dispatched event.
type Handler interface {
	Handle(ctx context.Context, e core.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e core.Event) error

func (f HandlerFunc) Handle(ctx context.Context, e core.Event) error { return f(ctx, e) }

// Scope selects which registry an emission is dispatched to.
type Scope uint8

const (
	// ScopeLocal dispatches synchronously to handlers registered on a
	// single plugin context.
	ScopeLocal Scope = iota
	// ScopeGlobal routes the event through the application bus.
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "local"
}

type entry struct {
	id       uuid.UUID
	handler  Handler
	priority int
}

// Registry keeps handlers per event type sorted by descending priority.
// Handlers of equal priority run in subscription order.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.EventType][]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.EventType][]entry)}
}

// Add registers h for t and returns its subscription id.
func (r *Registry) Add(t core.EventType, h Handler, priority int) uuid.UUID {
	id := uuid.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := append(r.handlers[t], entry{id: id, handler: h, priority: priority})
	sort.SliceStable(bucket, func(i, j int) bool {
		return bucket[i].priority > bucket[j].priority
	})
	r.handlers[t] = bucket
	return id
}

// Remove drops the subscription from every bucket. It reports whether
// anything was removed.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := false
	for t, bucket := range r.handlers {
		kept := bucket[:0]
		for _, e := range bucket {
			if e.id == id {
				removed = true
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(r.handlers, t)
		} else {
			r.handlers[t] = kept
		}
	}
	return removed
}

// Count returns the number of handlers for t.
func (r *Registry) Count(t core.EventType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[t])
}

// Total returns the number of handlers across all types.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, bucket := range r.handlers {
		n += len(bucket)
	}
	return n
}

// Clear removes every handler.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.handlers = make(map[core.EventType][]entry)
	r.mu.Unlock()
}

func (r *Registry) snapshot(t core.EventType) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket := r.handlers[t]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]entry, len(bucket))
	copy(out, bucket)
	return out
}

// HandlerError records the failure of one handler during dispatch.
type HandlerError struct {
	Subscription uuid.UUID
	Event        core.EventType
	Err          error
	Stack        string // only set for panics
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on %s: %v", e.Subscription, e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// DispatchResult summarizes one dispatch.
type DispatchResult struct {
	Delivered int
	Errors    []*HandlerError
}

// Dispatch invokes every handler registered for e.Type in priority order.
// The handler list is snapshotted so handlers may subscribe or unsubscribe
// while running. Errors and panics are collected, never propagated.
func (r *Registry) Dispatch(ctx context.Context, e core.Event) DispatchResult {
	var res DispatchResult
	for _, en := range r.snapshot(e.Type) {
		if err := invoke(ctx, en.handler, e); err != nil {
			herr := &HandlerError{Subscription: en.id, Event: e.Type, Err: err}
			if p, ok := err.(*panicError); ok {
				herr.Stack = p.stack
			}
			res.Errors = append(res.Errors, herr)
			continue
		}
		res.Delivered++
	}
	return res
}

type panicError struct {
	value any
	stack string
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func invoke(ctx context.Context, h Handler, e core.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec, stack: string(debug.Stack())}
		}
	}()
	return h.Handle(ctx, e)
}
