package events

import "log/slog"

// DefaultMaxQueueSize bounds the async queue unless overridden.
const DefaultMaxQueueSize = 1000

type options struct {
	logger       *slog.Logger
	maxQueueSize int
	async        bool
}

// Option configures a Bus.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		maxQueueSize: DefaultMaxQueueSize,
		async:        true,
	}
}

// WithLogger sets the logger used for dispatch failures and warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMaxQueueSize bounds the async queue. Values below 1 are ignored.
func WithMaxQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxQueueSize = n
		}
	}
}

// WithAsync selects queued (true) or immediate (false) dispatch.
func WithAsync(async bool) Option {
	return func(o *options) {
		o.async = async
	}
}
