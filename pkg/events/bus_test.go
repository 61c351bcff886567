package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cosmarium/pkg/core"
	"github.com/aretw0/cosmarium/pkg/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBus(t *testing.T, opts ...events.Option) *events.Bus {
	t.Helper()
	b := events.NewBus(append([]events.Option{events.WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, b.Initialize())
	return b
}

func counter(n *atomic.Int32) events.HandlerFunc {
	return func(ctx context.Context, e core.Event) error {
		n.Add(1)
		return nil
	}
}

func TestBusRequiresInitialize(t *testing.T) {
	b := events.NewBus(events.WithLogger(quietLogger()))

	_, err := b.Subscribe(core.DocumentSaved, counter(new(atomic.Int32)), 0)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	assert.ErrorIs(t, b.Emit(core.NewEvent(core.DocumentSaved, "")), core.ErrNotInitialized)

	require.NoError(t, b.Initialize())
	require.NoError(t, b.Initialize(), "second initialize is a warning, not an error")
	assert.True(t, b.Initialized())
}

func TestBusAsyncEmitAndProcess(t *testing.T) {
	b := newBus(t)
	var calls atomic.Int32
	_, err := b.Subscribe(core.DocumentSaved, counter(&calls), 0)
	require.NoError(t, err)

	require.NoError(t, b.Emit(core.NewEvent(core.DocumentSaved, "Saved document: a")))
	assert.Equal(t, 1, b.QueueSize())
	assert.Equal(t, int32(0), calls.Load())

	assert.Equal(t, 1, b.ProcessEvents(context.Background()))
	assert.Equal(t, 0, b.QueueSize())
	assert.Equal(t, int32(1), calls.Load())
}

func TestBusSyncMode(t *testing.T) {
	b := newBus(t, events.WithAsync(false))
	var calls atomic.Int32
	_, err := b.Subscribe(core.ProjectOpened, counter(&calls), 0)
	require.NoError(t, err)

	require.NoError(t, b.Emit(core.NewEvent(core.ProjectOpened, "")))
	assert.Equal(t, 0, b.QueueSize())
	assert.Equal(t, int32(1), calls.Load())

	b.SetAsync(true)
	require.NoError(t, b.Emit(core.NewEvent(core.ProjectOpened, "")))
	assert.Equal(t, 1, b.QueueSize())
}

func TestBusPriorityOrder(t *testing.T) {
	b := newBus(t)
	var order []int
	record := func(p int) events.HandlerFunc {
		return func(ctx context.Context, e core.Event) error {
			order = append(order, p)
			return nil
		}
	}

	for _, p := range []int{5, -3, 100, 0, 42} {
		_, err := b.Subscribe(core.LayoutChanged, record(p), p)
		require.NoError(t, err)
	}

	require.NoError(t, b.Emit(core.NewEvent(core.LayoutChanged, "")))
	b.ProcessEvents(context.Background())

	assert.Equal(t, []int{100, 42, 5, 0, -3}, order)
}

func TestBusEqualPrioritiesKeepSubscriptionOrder(t *testing.T) {
	b := newBus(t)
	var order []string
	record := func(name string) events.HandlerFunc {
		return func(ctx context.Context, e core.Event) error {
			order = append(order, name)
			return nil
		}
	}
	for _, name := range []string{"a", "b", "c"} {
		_, err := b.Subscribe(core.ThemeChanged, record(name), 1)
		require.NoError(t, err)
	}
	require.NoError(t, b.Emit(core.NewEvent(core.ThemeChanged, "")))
	b.ProcessEvents(context.Background())
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestBusUnsubscribe(t *testing.T) {
	b := newBus(t)
	var calls atomic.Int32
	id, err := b.Subscribe(core.DocumentClosed, counter(&calls), 0)
	require.NoError(t, err)
	_, err = b.Subscribe(core.DocumentClosed, counter(new(atomic.Int32)), 0)
	require.NoError(t, err)

	require.NoError(t, b.Unsubscribe(id))
	assert.Equal(t, 1, b.HandlerCount(core.DocumentClosed))

	require.NoError(t, b.Emit(core.NewEvent(core.DocumentClosed, "")))
	b.ProcessEvents(context.Background())
	assert.Equal(t, int32(0), calls.Load())

	err = b.Unsubscribe(id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBusQueueOverflowDropsOldest(t *testing.T) {
	b := newBus(t, events.WithMaxQueueSize(3))
	var seen []string
	_, err := b.Subscribe(core.DocumentChanged, events.HandlerFunc(func(ctx context.Context, e core.Event) error {
		seen = append(seen, e.Data)
		return nil
	}), 0)
	require.NoError(t, err)

	for _, d := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, b.Emit(core.NewEvent(core.DocumentChanged, d)))
	}
	assert.Equal(t, 3, b.QueueSize())
	assert.Equal(t, uint64(2), b.Stats().Dropped)

	b.ProcessEvents(context.Background())
	assert.Equal(t, []string{"3", "4", "5"}, seen)
}

func TestBusSetMaxQueueSizeTrims(t *testing.T) {
	b := newBus(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Emit(core.NewEvent(core.DocumentChanged, "")))
	}
	b.SetMaxQueueSize(4)
	assert.Equal(t, 4, b.QueueSize())
	assert.Equal(t, 4, b.MaxQueueSize())
}

func TestBusHandlerFailuresAreIsolated(t *testing.T) {
	b := newBus(t)
	var calls atomic.Int32

	_, err := b.Subscribe(core.ProjectSaved, events.HandlerFunc(func(ctx context.Context, e core.Event) error {
		return errors.New("boom")
	}), 10)
	require.NoError(t, err)
	_, err = b.Subscribe(core.ProjectSaved, events.HandlerFunc(func(ctx context.Context, e core.Event) error {
		panic("handler exploded")
	}), 5)
	require.NoError(t, err)
	_, err = b.Subscribe(core.ProjectSaved, counter(&calls), 0)
	require.NoError(t, err)

	require.NoError(t, b.Emit(core.NewEvent(core.ProjectSaved, "")))
	b.ProcessEvents(context.Background())

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(2), b.Stats().HandlerErrors)
}

func TestBusEventsEmittedDuringDrain(t *testing.T) {
	b := newBus(t)
	var saved atomic.Int32
	_, err := b.Subscribe(core.DocumentCreated, events.HandlerFunc(func(ctx context.Context, e core.Event) error {
		return b.Emit(core.NewEvent(core.DocumentSaved, e.Data))
	}), 0)
	require.NoError(t, err)
	_, err = b.Subscribe(core.DocumentSaved, counter(&saved), 0)
	require.NoError(t, err)

	require.NoError(t, b.Emit(core.NewEvent(core.DocumentCreated, "x")))
	assert.Equal(t, 2, b.ProcessEvents(context.Background()))
	assert.Equal(t, int32(1), saved.Load())
}

func TestBusShutdownClearsEverything(t *testing.T) {
	b := newBus(t)
	var calls atomic.Int32
	_, err := b.Subscribe(core.ApplicationShutdown, counter(&calls), 0)
	require.NoError(t, err)
	require.NoError(t, b.Emit(core.NewEvent(core.ApplicationShutdown, "")))

	require.NoError(t, b.Shutdown())
	assert.Equal(t, 0, b.QueueSize())
	assert.Equal(t, 0, b.HandlerCount(core.ApplicationShutdown))
	assert.False(t, b.Initialized())
	assert.Equal(t, int32(0), calls.Load())

	st := b.State().(events.BusState)
	assert.False(t, st.Initialized)
	assert.Equal(t, "event_bus", b.ComponentType())
}

func TestBusSource(t *testing.T) {
	b := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := b.Source(8)
	require.NoError(t, src.Start(ctx))

	require.NoError(t, b.Emit(core.NewEvent(core.PanelOpened, "Outline")))
	b.ProcessEvents(ctx)

	select {
	case e := <-src.Events():
		ce, ok := e.(core.Event)
		require.True(t, ok)
		assert.Equal(t, core.PanelOpened, ce.Type)
		assert.Equal(t, "Outline", ce.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mirrored event")
	}
}
