package blockcache

import (
	"log/slog"
	"time"

	"github.com/hupe1980/blockcache/resource"
)

const defaultFlushConcurrency = 4

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	rc               *resource.Controller
	flushInterval    time.Duration
	flushConcurrency int
}

// Option configures a Cache.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &blockcache.BasicMetricsCollector{}
//	c, _ := blockcache.New(64, store, blockcache.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Hit ratio: %.2f\n", stats.HitRatio())
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := blockcache.NewJSONLogger(slog.LevelInfo)
//	c, _ := blockcache.New(64, store, blockcache.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController shares a resource controller with other caches.
// The cache reserves capacity*blockSize bytes of its memory budget for its
// lifetime and holds a background slot while a periodic flush runs.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithFlushInterval starts a background flusher that writes all dirty
// entries back every d. Zero (the default) disables it.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) {
		o.flushInterval = d
	}
}

// WithFlushConcurrency bounds the number of parallel store writes issued by
// a flush. Values < 1 select the default of 4.
func WithFlushConcurrency(n int) Option {
	return func(o *options) {
		o.flushConcurrency = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.flushConcurrency < 1 {
		o.flushConcurrency = defaultFlushConcurrency
	}
	return o
}
