package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

// ChangeOp is the kind of external change observed on a watched file.
type ChangeOp uint8

const (
	ChangeModified ChangeOp = iota
	ChangeRemoved
)

func (op ChangeOp) String() string {
	if op == ChangeRemoved {
		return "removed"
	}
	return "modified"
}

// Change reports an external modification of a watched file.
type Change struct {
	Path string
	Op   ChangeOp
	Time time.Time
}

// Watcher is a lifecycle worker observing a set of files. fsnotify watches
// their parent directories so atomic renames are seen. Changes are
// debounced per path and delivered on the channel given to NewWatcher.
type Watcher struct {
	*worker.BaseWorker
	logger  *slog.Logger
	changes chan<- Change
	delay   time.Duration

	mu      sync.Mutex
	files   map[string]struct{}
	dirs    map[string]int
	watcher *fsnotify.Watcher
	active  bool

	debouncer *debouncer
	cancel    context.CancelFunc
}

// NewWatcher creates a stopped watcher.
func NewWatcher(changes chan<- Change, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		BaseWorker: worker.NewBaseWorker("document-watcher"),
		logger:     logger.With("component", "document_watcher"),
		changes:    changes,
		delay:      50 * time.Millisecond,
		files:      make(map[string]struct{}),
		dirs:       make(map[string]int),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w.mu.Lock()
	for dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			w.logger.Warn("failed to watch directory", "dir", dir, "error", err)
		}
	}
	w.watcher = watcher
	w.active = true
	w.mu.Unlock()

	w.debouncer = newDebouncer(w.delay)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *Watcher) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		w.mu.Lock()
		files := len(w.files)
		w.mu.Unlock()
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"files":             fmt.Sprint(files),
		}
	})
}

// Active reports whether the event loop is running.
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Watch starts observing path. It may be called before Start.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; ok {
		return nil
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 && w.watcher != nil {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.files[abs] = struct{}{}
	w.dirs[dir]++
	return nil
}

// Unwatch stops observing path.
func (w *Watcher) Unwatch(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; !ok {
		return
	}
	delete(w.files, abs)
	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if w.watcher != nil {
			_ = w.watcher.Remove(dir)
		}
	}
}

func (w *Watcher) watched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[path]
	return ok
}

// processFilesystemEvent filters events down to watched files and
// debounces them.
func (w *Watcher) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	if IsTempFile(event.Name) {
		return false
	}
	path, err := filepath.Abs(event.Name)
	if err != nil || !w.watched(path) {
		return false
	}

	var op ChangeOp
	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		op = ChangeModified
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = ChangeRemoved
	default:
		return false
	}

	w.logger.Debug("file event", "path", path, "op", op)
	w.debouncer.add(path, func() {
		defer func() {
			// Recover from panic if channel was closed (worker stopping)
			_ = recover()
		}()
		select {
		case w.changes <- Change{Path: path, Op: op, Time: time.Now()}:
		case <-ctx.Done():
		}
	})
	return true
}

func (w *Watcher) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			if w.logger.Enabled(ctx, slog.LevelDebug) {
				w.logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				w.logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer func() {
		w.mu.Lock()
		w.active = false
		w.watcher = nil
		w.mu.Unlock()
	}()

	w.mu.Lock()
	fsw := w.watcher
	w.mu.Unlock()
	defer fsw.Close()

	err = w.loop(ctx, fsw)
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-fsw.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("fsnotify error", "error", wErr)
		}
	}
}
