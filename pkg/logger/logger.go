// Package logger is a thin level filter over a process-wide slog.Logger.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	Logger       *slog.Logger
	currentLevel LogLevel = INFO
)

func init() {
	Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
}

type Options struct {
	Level  string
	File   string
	// Format is "text" (default) or "json".
	Format string
}

// Configure rebuilds Logger from opts. A bad level or an unusable file is
// reported but still leaves a working stdout logger behind.
func Configure(opts Options) error {
	level := currentLevel
	var levelErr error
	if strings.TrimSpace(opts.Level) != "" {
		level, levelErr = ParseLogLevel(opts.Level)
	}

	writer, fileErr := openSink(opts.File)
	handler, formatErr := newHandler(writer, opts.Format, level)

	currentLevel = level
	Logger = slog.New(handler)

	return errors.Join(levelErr, fileErr, formatErr)
}

// openSink tees stdout into path when one is given.
func openSink(path string) (io.Writer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return os.Stdout, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout, err
	}
	return io.MultiWriter(os.Stdout, file), nil
}

func newHandler(w io.Writer, format string, level LogLevel) (slog.Handler, error) {
	handlerOpts := &slog.HandlerOptions{Level: slogLevel(level)}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.NewTextHandler(w, handlerOpts), nil
	case "json":
		return slog.NewJSONHandler(w, handlerOpts), nil
	default:
		return slog.NewTextHandler(w, handlerOpts), fmt.Errorf("invalid log format %q", format)
	}
}

func SetLogLevel(level LogLevel) {
	currentLevel = level
}

// Enabled reports whether messages at level pass the current filter.
func Enabled(level LogLevel) bool {
	return currentLevel <= level
}

func ParseLogLevel(value string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("invalid log level %q", value)
	}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(msg string, args ...any) { logAt(DEBUG, msg, args) }
func Info(msg string, args ...any) { logAt(INFO, msg, args) }
func Warn(msg string, args ...any) { logAt(WARN, msg, args) }
func Error(msg string, args ...any) { logAt(ERROR, msg, args) }

func logAt(level LogLevel, msg string, args []any) {
	if !Enabled(level) {
		return
	}
	switch level {
	case DEBUG:
		Logger.Debug(msg, args...)
	case INFO:
		Logger.Info(msg, args...)
	case WARN:
		Logger.Warn(msg, args...)
	default:
		Logger.Error(msg, args...)
	}
}

// Scope prefixes every record with a fixed set of attributes, such as the
// id of a multi-step operation.
type Scope struct {
	attrs []any
}

func With(args ...any) Scope {
	return Scope{attrs: args}
}

func (s Scope) Debug(msg string, args ...any) { logAt(DEBUG, msg, s.merge(args)) }
func (s Scope) Info(msg string, args ...any) { logAt(INFO, msg, s.merge(args)) }
func (s Scope) Warn(msg string, args ...any) { logAt(WARN, msg, s.merge(args)) }
func (s Scope) Error(msg string, args ...any) { logAt(ERROR, msg, s.merge(args)) }

func (s Scope) merge(args []any) []any {
	out := make([]any, 0, len(s.attrs)+len(args))
	out = append(out, s.attrs...)
	return append(out, args...)
}

type opIDKey struct{}

// ContextWithOpID tags ctx with the id of the multi-step operation running
// under it, so lower layers can log against the same id.
func ContextWithOpID(ctx context.Context, opID string) context.Context {
	return context.WithValue(ctx, opIDKey{}, opID)
}

func OpIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	opID, _ := ctx.Value(opIDKey{}).(string)
	return opID
}
