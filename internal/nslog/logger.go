// Package nslog is a small facade over log/slog with a five-level
// severity vocabulary and a text/JSON handler split.
package nslog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Severity levels: TRACE, DEBUG, INFO, WARNING, ERROR. TRACE sits below
// slog's built-in Debug level so it can still be filtered
// independently.
const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
)

var levelNames = map[slog.Leveler]string{
	LevelTrace:   "TRACE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
}

func replaceLevelAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		if name, ok := levelNames[level]; ok {
			a.Value = slog.StringValue(name)
		}
		a.Key = "severity"
	}
	return a
}

// Format selects the handler the default logger and component loggers
// render through.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

type factory struct {
	format Format
}

func (f factory) createHandler(w io.Writer, levelVar *slog.LevelVar) slog.Handler {
	opts := &slog.HandlerOptions{Level: levelVar, ReplaceAttr: replaceLevelAttr}
	if f.format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var (
	defaultLevel  = new(slog.LevelVar)
	defaultOutput io.Writer = os.Stderr
	defaultFmt              = factory{format: FormatText}
	defaultLogger           = slog.New(defaultFmt.createHandler(defaultOutput, defaultLevel))
)

// Init configures the package-level default logger. Call it once during
// daemon startup before any component loggers are constructed; it is
// not safe to call concurrently with logging calls.
func Init(format Format, level slog.Level, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	defaultOutput = w
	defaultFmt = factory{format: format}
	defaultLevel.Set(level)
	defaultLogger = slog.New(defaultFmt.createHandler(defaultOutput, defaultLevel))
}

// For returns a logger scoped to component, carrying a "component"
// attribute on every record it emits.
func For(component string) *slog.Logger {
	return defaultLogger.With("component", component)
}

// Default returns the package-level default logger.
func Default() *slog.Logger {
	return defaultLogger
}

// Trace logs at LevelTrace.
func Trace(ctx context.Context, msg string, args ...any) {
	defaultLogger.Log(ctx, LevelTrace, msg, args...)
}
