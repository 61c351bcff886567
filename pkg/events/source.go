package events

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/cosmarium/pkg/core"
)

type busSource struct {
	bus    *Bus
	buffer int
	out    chan lifecycle.Event
}

// Source returns a lifecycle.Source mirroring every event the bus
// dispatches. Observers never block dispatch: when the buffer is full the
// event is skipped for that observer.
func (b *Bus) Source(buffer int) lifecycle.Source {
	if buffer < 1 {
		buffer = 64
	}
	return &busSource{
		bus:    b,
		buffer: buffer,
		out:    make(chan lifecycle.Event),
	}
}

func (s *busSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *busSource) Start(ctx context.Context) error {
	in := make(chan core.Event, s.buffer)
	s.bus.observe(in)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		defer s.bus.unobserve(in)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-in:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}

func (b *Bus) observe(ch chan<- core.Event) {
	b.mu.Lock()
	b.observers = append(b.observers, ch)
	b.mu.Unlock()
}

func (b *Bus) unobserve(ch chan<- core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, o := range b.observers {
		if o == ch {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (b *Bus) notify(e core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.observers {
		select {
		case ch <- e:
		default:
		}
	}
}
