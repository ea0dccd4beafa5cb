// Package logger is the module-aware structured logger, built on log/slog.
//
// main installs one CentralLogger with SetGlobal and components log through
// a module scope:
//
//	log := logger.Global().Module("ebird")
//	log.Info("request completed",
//	    logger.String("endpoint", "/data/obs/geo/recent"),
//	    logger.Duration("elapsed", elapsed))
//
// Console output is logfmt text. File output is JSON lines.
package logger

import (
	"time"
	"unique"
)

// LogLevel names a severity. Trace sits below slog's Debug.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Logger writes structured records for one module.
type Logger interface {
	// Module returns a child logger; names nest as "parent.child".
	Module(name string) Logger
	// With returns a logger that adds fields to every record.
	With(fields ...Field) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair of a record.
type Field struct {
	Key   string
	Value any
}

// Keys repeat across millions of records, so they are interned.
func key(k string) string {
	return unique.Make(k).Value()
}

var (
	errorKey  = key("error")
	moduleKey = key("module")
)

func String(k, v string) Field                 { return Field{key(k), v} }
func Int(k string, v int) Field                { return Field{key(k), v} }
func Int64(k string, v int64) Field            { return Field{key(k), v} }
func Bool(k string, v bool) Field              { return Field{key(k), v} }
func Time(k string, v time.Time) Field         { return Field{key(k), v} }
func Any(k string, v any) Field                { return Field{key(k), v} }
func Float64(k string, v float64) Field        { return Field{key(k), v} } // rounded to 3 decimals
func Duration(k string, v time.Duration) Field { return Field{key(k), v} }

// Error records err under the "error" key. A nil error logs as null.
func Error(err error) Field {
	if err == nil {
		return Field{errorKey, nil}
	}
	return Field{errorKey, err.Error()}
}
