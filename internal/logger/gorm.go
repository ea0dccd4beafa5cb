package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger sends GORM output through a module logger. Statements log at
// TRACE, slow statements and failures at WARN.
type GormLogger struct {
	log           Logger
	slowThreshold time.Duration
}

// NewGormLogger wraps log. A zero slowThreshold disables slow query warnings.
func NewGormLogger(log Logger, slowThreshold time.Duration) *GormLogger {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &GormLogger{log: log, slowThreshold: slowThreshold}
}

// LogMode is a no-op; levels come from the logging config.
func (g *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return g }

func (g *GormLogger) Info(_ context.Context, msg string, data ...any) {
	g.log.Debug(fmt.Sprintf(msg, data...))
}

func (g *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	g.log.Warn(fmt.Sprintf(msg, data...))
}

func (g *GormLogger) Error(_ context.Context, msg string, data ...any) {
	g.log.Error(fmt.Sprintf(msg, data...))
}

// Trace logs one executed statement. Missing rows are not failures.
func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []Field{String("sql", sql), Int64("rows", rows), Duration("elapsed", elapsed)}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		g.log.Warn("query failed", append(fields, Error(err))...)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold:
		g.log.Warn("slow query", append(fields, Duration("threshold", g.slowThreshold))...)
	default:
		g.log.Trace("query", fields...)
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
