package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atharvakonge/paper-trader/internal/logger"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// gormLogger forwards gorm's query tracing to the application logger.
type gormLogger struct {
	log           logger.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger maps a level name (silent, error, warn, info) onto gorm's levels.
// Unknown names fall back to warn.
func NewGormLogger(log logger.Logger, level string) gormlogger.Interface {
	var lvl gormlogger.LogLevel
	switch strings.ToLower(level) {
	case "silent":
		lvl = gormlogger.Silent
	case "error":
		lvl = gormlogger.Error
	case "info", "debug":
		lvl = gormlogger.Info
	default:
		lvl = gormlogger.Warn
	}
	return &gormLogger{log: log, level: lvl, slowThreshold: defaultSlowQuery}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, data...), map[string]any{"source": "database"})
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, data...), map[string]any{"source": "database"})
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, data...), map[string]any{"source": "database"})
	}
}

// Trace logs every statement at debug, slow ones at warn and failures at error.
// Missing rows are expected lookups and are not errors.
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := map[string]any{
		"elapsed": elapsed.String(),
		"rows":    rows,
		"sql":     sql,
		"source":  "database",
	}

	switch {
	case err != nil && !IsNotFound(err) && l.level >= gormlogger.Error:
		fields["error"] = err.Error()
		l.log.Error("SQL error", fields)
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.log.Warn("Slow SQL query", fields)
	case l.level >= gormlogger.Info:
		l.log.Debug("SQL query", fields)
	}
}
