package events

import "github.com/aretw0/introspection"

// BusState is the observable state of a Bus.
type BusState struct {
	Initialized  bool  `json:"initialized"`
	Async        bool  `json:"async"`
	QueueSize    int   `json:"queue_size"`
	MaxQueueSize int   `json:"max_queue_size"`
	Handlers     int   `json:"handlers"`
	Stats        Stats `json:"stats"`
}

// State implements introspection.Introspectable.
func (b *Bus) State() any {
	b.mu.Lock()
	st := BusState{
		Initialized:  b.initialized,
		Async:        b.async,
		QueueSize:    len(b.queue),
		MaxQueueSize: b.maxQueueSize,
	}
	b.mu.Unlock()
	st.Handlers = b.registry.Total()
	st.Stats = b.Stats()
	return st
}

// ComponentType implements introspection.Component.
func (b *Bus) ComponentType() string {
	return "event_bus"
}

var _ introspection.Introspectable = (*Bus)(nil)
var _ introspection.Component = (*Bus)(nil)
