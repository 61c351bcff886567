package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsExternalWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	watched := filepath.Join(dir, "chapter.md")
	other := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(watched, []byte("v1"), 0644))
	require.NoError(t, os.WriteFile(other, []byte("v1"), 0644))

	changes := make(chan Change, 16)
	w := NewWatcher(changes, nil)
	require.NoError(t, w.Watch(watched))
	require.NoError(t, w.Start(ctx))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		_ = w.Stop(stopCtx)
	}()
	waitForActive(t, w)

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0644))
	require.NoError(t, WriteFileAtomic(watched, []byte("v2"), 0644))

	select {
	case c := <-changes:
		abs, _ := filepath.Abs(watched)
		assert.Equal(t, abs, c.Path)
		assert.Equal(t, ChangeModified, c.Op)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	w.Unwatch(watched)
	st := w.State()
	assert.Equal(t, "0", st.Metadata["files"])
}

func TestWatcherSupervisorRestarts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Change)
	created := make(chan *Watcher, 2)

	spec := supervisor.Spec{
		Name: "document-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			w := NewWatcher(changes, nil)
			created <- w
			return w, nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      1,
			ResetDuration:   50 * time.Millisecond,
			MaxRestarts:     2,
			MaxDuration:     200 * time.Millisecond,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("test-watcher", supervisor.StrategyOneForOne, spec)
	require.NoError(t, sup.Start(ctx))

	first := waitForWorker(t, created, "first")
	waitForActive(t, first)

	first.mu.Lock()
	fsw := first.watcher
	first.mu.Unlock()
	require.NotNil(t, fsw)
	_ = fsw.Close()

	second := waitForWorker(t, created, "second")
	assert.NotSame(t, first, second, "expected supervisor to restart watcher with a new instance")
	waitForActive(t, second)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, sup.Stop(stopCtx))
}

func waitForWorker(t *testing.T, ch <-chan *Watcher, label string) *Watcher {
	t.Helper()

	select {
	case w := <-ch:
		return w
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s worker", label)
		return nil
	}
}

func waitForActive(t *testing.T, w *Watcher) {
	t.Helper()
	require.Eventually(t, w.Active, 2*time.Second, 10*time.Millisecond, "watcher never became active")
}
