package blockcache

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with cache-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithBlock adds a block id field to the logger.
func (l *Logger) WithBlock(id BlockID) *Logger {
	return &Logger{
		Logger: l.Logger.With("block", id),
	}
}

// LogMiss logs a read that had to go to the backing store.
func (l *Logger) LogMiss(ctx context.Context, id BlockID, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "miss fill failed",
			"block", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "miss",
			"block", id,
			"micros", elapsed.Microseconds(),
		)
	}
}

// LogEviction logs the removal of a victim.
func (l *Logger) LogEviction(ctx context.Context, id BlockID, dirty bool, err error) {
	if err != nil {
		l.WarnContext(ctx, "eviction aborted",
			"block", id,
			"dirty", dirty,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "evicted",
			"block", id,
			"dirty", dirty,
		)
	}
}

// LogFlush logs a completed flush.
func (l *Logger) LogFlush(ctx context.Context, flushed, failed int, elapsed time.Duration) {
	if failed > 0 {
		l.WarnContext(ctx, "flush completed with failures",
			"flushed", flushed,
			"failed", failed,
			"millis", elapsed.Milliseconds(),
		)
	} else if flushed > 0 {
		l.DebugContext(ctx, "flush completed",
			"flushed", flushed,
			"millis", elapsed.Milliseconds(),
		)
	}
}

// LogClose logs cache shutdown.
func (l *Logger) LogClose(ctx context.Context, stats Stats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"dirty", stats.Dirty,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "cache closed",
			"hits", stats.Hits,
			"misses", stats.Misses,
			"evictions", stats.Evictions,
		)
	}
}
