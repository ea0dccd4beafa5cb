package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// levelTrace is one step below slog.LevelDebug.
const levelTrace = slog.Level(-8)

var (
	globalMu sync.Mutex
	global   *CentralLogger
)

// SetGlobal installs cl as the process logger. Nil restores the stderr fallback.
func SetGlobal(cl *CentralLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = cl
}

// Global returns the installed logger, or an info-level stderr logger.
func Global() *CentralLogger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = &CentralLogger{
			handler:      consoleHandler(os.Stderr, slog.LevelInfo, nil),
			defaultLevel: slog.LevelInfo,
		}
	}
	return global
}

// CentralLogger routes module loggers to the console and an optional JSON log file.
type CentralLogger struct {
	handler      slog.Handler
	defaultLevel slog.Level
	moduleLevels map[string]slog.Level
	file         *fileSink
	mu           sync.Mutex
}

// NewCentralLogger builds the handlers described by cfg. Missing sections
// are filled with defaults in place.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, errors.New("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	tz, err := loadTimezone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	cl := &CentralLogger{
		defaultLevel: parseLevel(cfg.DefaultLevel),
		moduleLevels: make(map[string]slog.Level, len(cfg.ModuleLevels)),
	}
	for module, level := range cfg.ModuleLevels {
		cl.moduleLevels[module] = parseLevel(level)
	}

	var handlers []slog.Handler
	if cfg.Console.Enabled {
		handlers = append(handlers, consoleHandler(os.Stderr, parseLevel(cfg.Console.Level), tz))
	}
	if cfg.FileOutput.Enabled {
		sink, err := openFileSink(cfg.FileOutput.Path, defaultFlushInterval)
		if err != nil {
			return nil, err
		}
		cl.file = sink
		handlers = append(handlers, slog.NewJSONHandler(sink, &slog.HandlerOptions{
			Level:       parseLevel(cfg.FileOutput.Level),
			ReplaceAttr: traceLabel,
		}))
	}

	switch len(handlers) {
	case 0:
		cl.handler = slog.DiscardHandler
	case 1:
		cl.handler = handlers[0]
	default:
		cl.handler = slog.NewMultiHandler(handlers...)
	}
	return cl, nil
}

func loadTimezone(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", name, err)
	}
	return tz, nil
}

// Module returns the logger for name at its configured level.
func (cl *CentralLogger) Module(name string) Logger {
	level := cl.defaultLevel
	if l, ok := cl.moduleLevels[name]; ok {
		level = l
	}
	return &moduleLogger{
		module: name,
		slog:   slog.New(cl.handler),
		level:  level,
	}
}

// Flush writes buffered file output to the OS.
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return nil
	}
	return cl.file.Flush()
}

// Close flushes and closes the log file. Loggers obtained earlier keep
// writing to the console.
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return nil
	}
	err := cl.file.Close()
	cl.file = nil
	return err
}

// NewSlogLogger returns a standalone text Logger, mainly for tests.
// A nil w discards output and a nil tz omits timestamps.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = io.Discard
	}
	lvl := parseLevel(string(level))
	return &moduleLogger{slog: slog.New(consoleHandler(w, lvl, tz)), level: lvl}
}

func parseLevel(level string) slog.Level {
	switch LogLevel(strings.ToLower(level)) {
	case LogLevelTrace:
		return levelTrace
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func traceLabel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= levelTrace {
			return slog.String(slog.LevelKey, "TRACE")
		}
	}
	return a
}

// consoleHandler writes logfmt text. Timestamps are dropped when tz is nil.
func consoleHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				if tz == nil {
					return slog.Attr{}
				}
				return slog.String(slog.TimeKey, a.Value.Time().In(tz).Format(time.DateTime))
			}
			return traceLabel(groups, a)
		},
	})
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return nil
}
