// Package logx implements the two logging facilities spec.md describes:
// a structured, filterable event logger (C8) grounded on
// tooling/src/logging/Logger.{h,cpp}, and a protocol-message logger (C7)
// built on top of it that decodes handshake records into canonical
// `TAG=HEX` lines. Both reuse go.uber.org/zap's zapcore machinery (tee'd
// write syncers, lumberjack file rotation) the way the teacher's
// internal/pkg/logger package does, but with a canonical four-column
// encoding instead of zap's JSON/console encoders, because that is the
// wire format this tool's own golden-file tests expect.
package logx

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Version is the negotiated (major, minor) TLS version the logger
// carries so filter callbacks translating legacy-backend log text can
// pick the right canonical constant names (TLS 1.2 vs 1.3 differ in
// which extensions/messages exist). Grounded on
// Tooling::Logger::getTlsVersion/setTlsVersion.
type Version struct {
	Major, Minor uint8
}

// Filter receives every record the Logger accepts and may emit further
// records of its own through the same Logger. The dispatch loop that
// calls filters guards against re-entering itself; it does not prevent a
// filter from calling Logger.Log again.
type Filter func(level Level, origin, message string, logger *Logger)

// Rotation configures optional on-disk log rotation, carried as an
// ambient, opt-in knob (SPEC_FULL.md §6) on top of spec.md's STDOUT
// default.
type Rotation struct {
	Enabled    bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config configures a Logger.
type Config struct {
	Level     Level
	Separator string // defaults to a tab, per spec.md §6
	Rotation  Rotation
}

// Logger is a reentrancy-guarded, filterable structured logger that
// renders every accepted record as one four-column canonical line:
// timestamp, level, origin, message.
type Logger struct {
	mu         sync.Mutex
	core       zapcore.Core
	configured Level
	separator  string
	tlsVersion Version
	processing bool
	filters    []Filter
	now        func() time.Time
}

// New builds a Logger writing to STDOUT, and additionally to a rotating
// file if cfg.Rotation.Enabled.
func New(cfg Config) *Logger {
	sep := cfg.Separator
	if sep == "" {
		sep = "\t"
	}

	cores := []zapcore.Core{&canonicalCore{ws: zapcore.Lock(zapcore.AddSync(stdoutWriter{}))}}
	if cfg.Rotation.Enabled {
		lj := &lumberjack.Logger{
			Filename:   cfg.Rotation.Filename,
			MaxSize:    cfg.Rotation.MaxSizeMB,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAgeDays,
			Compress:   cfg.Rotation.Compress,
		}
		cores = append(cores, &canonicalCore{ws: zapcore.AddSync(lj)})
	}

	return &Logger{
		core:       zapcore.NewTee(cores...),
		configured: cfg.Level,
		separator:  sep,
		now:        time.Now,
	}
}

// SetLevel changes the configured verbosity threshold at runtime,
// matching Logger::setLevel.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configured = level
}

// Level returns the currently configured verbosity threshold.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.configured
}

// SetTLSVersion records the negotiated TLS version for filter callbacks.
func (l *Logger) SetTLSVersion(v Version) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tlsVersion = v
}

// TLSVersion returns the negotiated TLS version previously recorded.
func (l *Logger) TLSVersion() Version {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tlsVersion
}

// AddFilter registers a filter that will be invoked for every record
// accepted from this point on.
func (l *Logger) AddFilter(f Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters = append(l.filters, f)
}

// Log writes message at LevelHigh with origin as the category, the
// signature manipulation.Logger expects (a plain origin string, no
// file/line — the driver and catalogue already name their own origin).
func (l *Logger) Log(origin, message string) {
	l.LogAt(LevelHigh, origin, message)
}

// LogAt writes message at the given level tagged with origin, following
// Logger::log's plain-origin overload. It returns immediately if level
// does not pass the configured threshold.
func (l *Logger) LogAt(level Level, origin, message string) {
	l.mu.Lock()
	configured := l.configured
	l.mu.Unlock()
	if !accepts(configured, level) {
		return
	}
	l.write(level, origin, message)
	l.runFilters(level, origin, message)
}

// LogCategory writes message tagged with "category(file:line)", matching
// Logger::log's category+file+line overload.
func (l *Logger) LogCategory(level Level, category, file string, line int, message string) {
	l.LogAt(level, fmt.Sprintf("%s(%s:%d)", category, baseName(file), line), message)
}

func (l *Logger) write(level Level, origin, message string) {
	entry := zapcore.Entry{Time: l.now(), Message: message, LoggerName: origin}
	_ = l.core.Write(entry, []zapcore.Field{levelField(level), separatorField(l.separator)})
}

func (l *Logger) runFilters(level Level, origin, message string) {
	l.mu.Lock()
	if l.processing {
		l.mu.Unlock()
		return
	}
	l.processing = true
	filters := make([]Filter, len(l.filters))
	copy(filters, l.filters)
	l.mu.Unlock()

	for _, f := range filters {
		f(level, origin, message, l)
	}

	l.mu.Lock()
	l.processing = false
	l.mu.Unlock()
}

// Sync flushes every underlying write syncer.
func (l *Logger) Sync() error { return l.core.Sync() }

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
