package simvec

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/simvec/index"
)

// Logger wraps slog.Logger with simvec-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithID adds an identifier field to the logger (useful for tagging operations).
func (l *Logger) WithID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// LogAdd logs an add operation.
func (l *Logger) LogAdd(ctx context.Context, id string, dimension int) {
	l.DebugContext(ctx, "add completed",
		"id", id,
		"dimension", dimension,
	)
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, id string) {
	l.DebugContext(ctx, "remove completed",
		"id", id,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogRebuild logs an index rebuild.
func (l *Logger) LogRebuild(ctx context.Context, kind index.Kind, count int) {
	l.InfoContext(ctx, "index rebuilt",
		"kind", kind.String(),
		"count", count,
	)
}

// LogPersist logs the outcome of a snapshot write. Persistence failures are
// logged and never propagated to the mutating caller.
func (l *Logger) LogPersist(ctx context.Context, err error) {
	if err != nil {
		l.WarnContext(ctx, "snapshot write failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "snapshot written")
	}
}
