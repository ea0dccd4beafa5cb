package logger

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"
)

type moduleLogger struct {
	module string
	slog   *slog.Logger
	level  slog.Level
	fields []Field
}

func (m *moduleLogger) Module(name string) Logger {
	if m.module != "" {
		name = m.module + "." + name
	}
	return &moduleLogger{module: name, slog: m.slog, level: m.level, fields: slices.Clone(m.fields)}
}

func (m *moduleLogger) With(fields ...Field) Logger {
	return &moduleLogger{module: m.module, slog: m.slog, level: m.level, fields: slices.Concat(m.fields, fields)}
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.log(levelTrace, msg, fields) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.log(slog.LevelDebug, msg, fields) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.log(slog.LevelInfo, msg, fields) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.log(slog.LevelWarn, msg, fields) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.log(slog.LevelError, msg, fields) }

func (m *moduleLogger) log(level slog.Level, msg string, fields []Field) {
	if level < m.level {
		return
	}
	attrs := make([]slog.Attr, 0, 1+len(m.fields)+len(fields))
	if m.module != "" {
		attrs = append(attrs, slog.String(moduleKey, m.module))
	}
	for _, f := range m.fields {
		attrs = append(attrs, toAttr(f))
	}
	for _, f := range fields {
		attrs = append(attrs, toAttr(f))
	}
	m.slog.LogAttrs(context.Background(), level, Redact(msg), attrs...)
}

// toAttr converts a field, redacting credential-looking strings.
func toAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		if v != "" && isSensitiveKey(f.Key) {
			return slog.String(f.Key, redacted)
		}
		return slog.String(f.Key, Redact(v))
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case float64:
		return slog.Float64(f.Key, math.Round(v*1000)/1000)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return slog.Any(f.Key, v)
	}
}
