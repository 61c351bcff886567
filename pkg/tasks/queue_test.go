package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, opts ...Option) *Queue {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	q := New(opts...)
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return q
}

// collect polls until n results arrived.
func collect(t *testing.T, q *Queue, n int) map[uuid.UUID]Result {
	t.Helper()
	got := make(map[uuid.UUID]Result)
	require.Eventually(t, func() bool {
		for _, r := range q.Poll() {
			got[r.ID] = r
		}
		return len(got) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueueRunsTasks(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Start(context.Background()))

	okID, err := q.Submit("answer", func(context.Context) (any, error) { return 42, nil })
	require.NoError(t, err)
	errID, err := q.Submit("broken", func(context.Context) (any, error) { return nil, errors.New("boom") })
	require.NoError(t, err)

	got := collect(t, q, 2)
	assert.Equal(t, 42, got[okID].Value)
	assert.NoError(t, got[okID].Err)
	assert.Equal(t, "answer", got[okID].Name)
	assert.EqualError(t, got[errID].Err, "boom")

	assert.Zero(t, q.Pending())
	assert.Empty(t, q.Poll())

	st := q.State().(QueueState)
	assert.Equal(t, 1, st.Finished)
	assert.Equal(t, 1, st.Failed)
}

func TestQueueRecoversPanics(t *testing.T) {
	q := newTestQueue(t, WithWorkers(1))
	require.NoError(t, q.Start(context.Background()))

	id, err := q.Submit("panics", func(context.Context) (any, error) { panic("bad task") })
	require.NoError(t, err)
	next, err := q.Submit("after", func(context.Context) (any, error) { return "still alive", nil })
	require.NoError(t, err)

	got := collect(t, q, 2)
	assert.ErrorContains(t, got[id].Err, "bad task")
	assert.Equal(t, "still alive", got[next].Value)
}

func TestQueueFull(t *testing.T) {
	q := newTestQueue(t, WithCapacity(2))
	noop := func(context.Context) (any, error) { return nil, nil }

	// not started, so nothing drains the backlog
	_, err := q.Submit("a", noop)
	require.NoError(t, err)
	_, err = q.Submit("b", noop)
	require.NoError(t, err)
	_, err = q.Submit("c", noop)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Pending())

	require.NoError(t, q.Start(context.Background()))
	collect(t, q, 2)
}

func TestStopCancelsRunningTasks(t *testing.T) {
	q := newTestQueue(t, WithWorkers(1))
	require.NoError(t, q.Start(context.Background()))

	started := make(chan struct{})
	id, err := q.Submit("blocking", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	<-started
	queued, err := q.Submit("queued", func(context.Context) (any, error) { return "ran", nil })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	got := make(map[uuid.UUID]Result)
	for _, r := range q.Poll() {
		got[r.ID] = r
	}
	require.Len(t, got, 2)
	assert.ErrorIs(t, got[id].Err, context.Canceled)
	assert.ErrorIs(t, got[queued].Err, context.Canceled)

	_, err = q.Submit("late", func(context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, q.Start(context.Background()), ErrStopped)
}

func TestCancelledStartContextStopsWorkers(t *testing.T) {
	q := newTestQueue(t, WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Start(ctx))

	started := make(chan struct{})
	id, err := q.Submit("blocking", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	<-started
	queued, err := q.Submit("queued", func(context.Context) (any, error) { return "ran", nil })
	require.NoError(t, err)

	cancel()
	got := collect(t, q, 2)
	assert.ErrorIs(t, got[id].Err, context.Canceled)
	assert.ErrorIs(t, got[queued].Err, context.Canceled)
	assert.Zero(t, q.Pending())

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers still running after the start context was cancelled")
	}

	_, err = q.Submit("late", func(context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStopWithoutStart(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Submit("never", func(context.Context) (any, error) { return nil, nil })
	require.NoError(t, err)

	require.NoError(t, q.Stop(context.Background()))
	results := q.Poll()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Zero(t, q.Pending())
}
