package logx

import (
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
)

// levelKey/separatorKey are the private zapcore.Field keys canonicalCore
// looks for in Write's fields slice; Logger.write always supplies both.
const (
	levelKey     = "_canonical_level"
	separatorKey = "_canonical_separator"
)

func levelField(l Level) zapcore.Field {
	return zapcore.Field{Key: levelKey, Type: zapcore.StringType, String: l.String()}
}

func separatorField(sep string) zapcore.Field {
	return zapcore.Field{Key: separatorKey, Type: zapcore.StringType, String: sep}
}

// canonicalCore is a zapcore.Core that renders every entry as one
// four-column line (timestamp, level, origin, message) joined by a
// configurable separator, instead of zap's usual JSON/console shapes.
// Unlike the teacher's sinkCore (a decorator around an inner core), this
// core IS the terminal sink: the Logger builds the Entry/Field pair
// itself and calls Write directly, so there is no encoder indirection to
// thread through.
type canonicalCore struct {
	ws zapcore.WriteSyncer
}

func (c *canonicalCore) Enabled(zapcore.Level) bool { return true }

func (c *canonicalCore) With([]zapcore.Field) zapcore.Core { return c }

func (c *canonicalCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(entry, c)
}

func (c *canonicalCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	level, sep := "HIGH", "\t"
	for _, f := range fields {
		switch f.Key {
		case levelKey:
			level = f.String
		case separatorKey:
			sep = f.String
		}
	}
	ts := entry.Time.UTC().Format("2006-01-02T15:04:05.000Z")
	line := fmt.Sprintf("%s%s%s%s%s%s%s\n", ts, sep, level, sep, entry.LoggerName, sep, entry.Message)
	_, err := c.ws.Write([]byte(line))
	return err
}

func (c *canonicalCore) Sync() error { return c.ws.Sync() }

// stdoutWriter avoids pulling the concrete *os.File into tests so a
// Logger is trivially constructible; it writes through os.Stdout at call
// time, which is what spec.md §6 means by STDOUT being the default
// destination.
type stdoutWriter struct{}

func (stdoutWriter) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
