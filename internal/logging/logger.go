package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with menurag-specific helpers so that every
// component reports the same field names.
type Logger struct {
	*slog.Logger
}

// Config selects the level and output format of a Logger.
type Config struct {
	Level  string
	Format string
}

// New creates a Logger writing to w according to cfg. Unknown levels fall
// back to info and unknown formats to text.
func New(cfg Config, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Noop creates a Logger that discards all output.
func Noop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))}
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a Logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// LogBuild logs a full index build or rebuild.
func (l *Logger) LogBuild(ctx context.Context, items, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"items", items,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index built",
		"items", items,
		"dimension", dimension,
	)
}

// LogAppend logs an incremental index append.
func (l *Logger) LogAppend(ctx context.Context, name string, position int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "append failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "item added",
		"name", name,
		"position", position,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, results int, threshold float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"threshold", threshold,
		"results", results,
	)
}

// LogDropped logs a record that was excluded because it failed validation.
func (l *Logger) LogDropped(ctx context.Context, reason string, err error) {
	l.WarnContext(ctx, "menu item dropped",
		"reason", reason,
		"error", err,
	)
}
