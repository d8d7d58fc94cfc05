package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smith3v/puzzle-keeper/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowThreshold = 200 * time.Millisecond
	defaultGormLogLevel  = gormlogger.Warn
	// Import batches render every row into one statement.
	maxLoggedSQL = 1024
)

// queryLogger routes GORM output into the app logger. Statements issued
// under a cascade or an import carry that operation's op_id, so they can be
// matched with its step records.
type queryLogger struct {
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

func newGormLogger(levelValue string) (gormlogger.Interface, error) {
	level := defaultGormLogLevel
	var levelErr error
	if strings.TrimSpace(levelValue) != "" {
		level, levelErr = parseGormLogLevel(levelValue)
	}
	return &queryLogger{slowThreshold: defaultSlowThreshold, level: level}, levelErr
}

func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *queryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Info, msg, data)
}

func (l *queryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Warn, msg, data)
}

func (l *queryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Error, msg, data)
}

func (l *queryLogger) printf(ctx context.Context, level gormlogger.LogLevel, msg string, data []interface{}) {
	if !l.enabled(level) {
		return
	}
	logger.Logger.Log(ctx, slogLevel(level), fmt.Sprintf(msg, data...), opAttrs(ctx)...)
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == gormlogger.Silent {
		return
	}
	// Misses are expected on the get-or-create paths.
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}

	elapsed := time.Since(begin)
	level, msg := gormlogger.Info, "gorm query"
	var extra []any
	switch {
	case err != nil:
		level, msg, extra = gormlogger.Error, "gorm query error", []any{"error", err}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		level, msg, extra = gormlogger.Warn, "gorm slow query", []any{"threshold", l.slowThreshold}
	}
	if !l.enabled(level) {
		return
	}

	sql, rows := fc()
	attrs := append(opAttrs(ctx), "elapsed", elapsed, "rows", rows, "sql", clipSQL(sql))
	logger.Logger.Log(ctx, slogLevel(level), msg, append(attrs, extra...)...)
}

func opAttrs(ctx context.Context) []any {
	if opID := logger.OpIDFromContext(ctx); opID != "" {
		return []any{"op_id", opID}
	}
	return nil
}

func clipSQL(sql string) string {
	if len(sql) <= maxLoggedSQL {
		return sql
	}
	return fmt.Sprintf("%s... (%d bytes)", sql[:maxLoggedSQL], len(sql))
}

func slogLevel(level gormlogger.LogLevel) slog.Level {
	switch level {
	case gormlogger.Error:
		return slog.LevelError
	case gormlogger.Warn:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// enabled applies both the GORM level and the app-wide filter.
func (l *queryLogger) enabled(level gormlogger.LogLevel) bool {
	if l.level == gormlogger.Silent || l.level < level {
		return false
	}
	switch level {
	case gormlogger.Info:
		return logger.Enabled(logger.INFO)
	case gormlogger.Warn:
		return logger.Enabled(logger.WARN)
	case gormlogger.Error:
		return logger.Enabled(logger.ERROR)
	default:
		return false
	}
}

func parseGormLogLevel(value string) (gormlogger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "silent":
		return gormlogger.Silent, nil
	case "error":
		return gormlogger.Error, nil
	case "warn":
		return gormlogger.Warn, nil
	case "info":
		return gormlogger.Info, nil
	default:
		return defaultGormLogLevel, fmt.Errorf("invalid gorm log level %q", value)
	}
}
