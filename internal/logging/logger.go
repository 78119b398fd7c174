package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger the rest of the codebase needs.
// Components accept this interface so tests can substitute recorders.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Package-wide logger registry. A logger handed out before Initialize
// keeps its original handler chain; only its level var is shared, so
// level changes propagate to it but a format change does not. Fetch
// loggers after Initialize when the configured format matters.
var (
	mutex       sync.RWMutex
	initialized bool
	current     Config
	rootLevel   = &slog.LevelVar{}
	loggers     = make(map[string]*slog.Logger)
	levels      = make(map[string]*slog.LevelVar)
	logBuffer   *RingBuffer
	logCallback LogCallback
)

// Initialize sets up the logging system: the ring buffer, the default
// logger, and fresh handler chains in the registry. Registered levels
// carry over; loggers fetched after this call use the new handlers.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	current = config
	initialized = true
	logBuffer = NewRingBuffer(defaultBufferSize)

	base, ok := parseLevel(config.Level)
	if !ok {
		base = slog.LevelInfo
	}
	rootLevel.Set(base)

	for module, lv := range levels {
		lv.Set(resolveLevel(config, module, base))
		loggers[module] = slog.New(buildHandler(config.Format, lv)).With("module", module)
	}

	slog.SetDefault(slog.New(buildHandler(config.Format, rootLevel)))
}

// ApplyLevels changes the global and per-module levels of live loggers.
// The config watcher calls this on hot reload; handler chains and the
// buffer stay as they are.
func ApplyLevels(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	base, ok := parseLevel(config.Level)
	if !ok {
		base = slog.LevelInfo
	}
	rootLevel.Set(base)
	current.Level = config.Level
	current.Modules = config.Modules

	for module, lv := range levels {
		lv.Set(resolveLevel(current, module, base))
	}
}

// GetLogger returns the logger for a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if l, ok := loggers[module]; ok {
		mutex.RUnlock()
		return l
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()
	if l, ok := loggers[module]; ok {
		return l
	}

	level := slog.LevelInfo
	format := "text"
	if initialized {
		if base, ok := parseLevel(current.Level); ok {
			level = base
		}
		level = resolveLevel(current, module, level)
		format = current.Format
	}
	lv := &slog.LevelVar{}
	lv.Set(level)

	l := slog.New(buildHandler(format, lv)).With("module", module)
	loggers[module] = l
	levels[module] = lv
	return l
}

// GetBuffer returns the ring buffer holding recent log entries.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback registers a callback invoked for each buffered entry,
// used to publish log events without an import cycle.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

// currentBuffer returns the ring buffer and callback under the lock.
func currentBuffer() (*RingBuffer, LogCallback) {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer, logCallback
}

// resolveLevel picks the module override from config, defaulting to
// fallback.
func resolveLevel(config Config, module string, fallback slog.Level) slog.Level {
	if s, ok := config.Modules[module]; ok {
		if l, ok := parseLevel(s); ok {
			return l
		}
	}
	return fallback
}

// buildHandler assembles the handler chain: stdout (text or JSON) when
// stdout goes anywhere useful, journald when running under systemd, and
// always the ring buffer.
func buildHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var chain []slog.Handler
	if stdoutUsable() {
		if format == "json" {
			chain = append(chain, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			chain = append(chain, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if IsJournalAvailable() {
		chain = append(chain, NewJournalHandler(level))
	}
	chain = append(chain, NewBufferHandler(level))

	if len(chain) == 1 {
		return chain[0]
	}
	return NewMultiHandler(chain...)
}

// stdoutUsable reports whether stdout goes to a terminal, pipe, socket,
// or file, as opposed to /dev/null on a detached service.
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts a level name to a slog.Level.
func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
