package document

import (
	"log/slog"
	"time"

	"github.com/aretw0/cosmarium/pkg/core"
)

// Emitter receives document lifecycle events.
type Emitter interface {
	Emit(e core.Event) error
}

const (
	DefaultMaxDocuments     = 100
	DefaultAutoSaveInterval = 30 * time.Second
)

type options struct {
	logger           *slog.Logger
	emitter          Emitter
	maxDocuments     int
	autoSaveInterval time.Duration
	clock            func() time.Time
	watch            bool
}

// Option configures a Manager.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		maxDocuments:     DefaultMaxDocuments,
		autoSaveInterval: DefaultAutoSaveInterval,
		clock:            time.Now,
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithEmitter(e Emitter) Option {
	return func(o *options) {
		o.emitter = e
	}
}

// WithMaxDocuments bounds the number of open documents.
func WithMaxDocuments(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDocuments = n
		}
	}
}

// WithAutoSaveInterval sets how long a dirty document stays untouched
// before Update saves it. Zero disables auto-save.
func WithAutoSaveInterval(d time.Duration) Option {
	return func(o *options) {
		o.autoSaveInterval = d
	}
}

// WithClock replaces the time source used by auto-save.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithWatcher enables detection of external edits to open files.
func WithWatcher(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}
