package logx

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(level Level, separator string) (*Logger, *syncBuffer) {
	buf := &syncBuffer{}
	l := &Logger{
		core:       &canonicalCore{ws: zapcore.AddSync(buf)},
		configured: level,
		separator:  separator,
		now:        func() time.Time { return time.Date(2026, 7, 29, 12, 0, 0, 500_000_000, time.UTC) },
	}
	return l, buf
}

func TestLogAtWritesFourColumnLine(t *testing.T) {
	l, buf := newTestLogger(LevelHigh, "\t")
	l.LogAt(LevelHigh, "Driver", "handshake complete")

	got := buf.String()
	want := "2026-07-29T12:00:00.500Z\tHIGH\tDriver\thandshake complete\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLogAtRespectsConfiguredThreshold(t *testing.T) {
	l, buf := newTestLogger(LevelLow, "\t")
	l.LogAt(LevelMedium, "Driver", "should be dropped")
	if buf.String() != "" {
		t.Fatalf("expected nothing written, got %q", buf.String())
	}

	l.LogAt(LevelHigh, "Driver", "should pass")
	if !strings.Contains(buf.String(), "should pass") {
		t.Fatalf("expected record to pass at configured=LOW, record=HIGH; got %q", buf.String())
	}
}

func TestLogCategoryFormatsOriginWithFileAndLine(t *testing.T) {
	l, buf := newTestLogger(LevelHigh, " ")
	l.LogCategory(LevelHigh, "ManipulateHelloVersion", "/src/manipulation/ManipulateHelloVersion.cpp", 42, "setting version")

	if !strings.Contains(buf.String(), "ManipulateHelloVersion(ManipulateHelloVersion.cpp:42)") {
		t.Fatalf("origin not formatted as expected: %q", buf.String())
	}
}

func TestFilterChainGuardsAgainstReentrantDispatch(t *testing.T) {
	l, _ := newTestLogger(LevelHigh, "\t")

	var dispatches int
	l.AddFilter(func(level Level, origin, message string, logger *Logger) {
		dispatches++
		// A filter emitting another record must not trigger a nested
		// dispatch of the filter chain itself.
		logger.LogAt(LevelHigh, "derived", "emitted by filter")
	})

	l.LogAt(LevelHigh, "origin", "trigger")

	if dispatches != 1 {
		t.Fatalf("dispatches = %d, want 1 (no re-entrant filter dispatch)", dispatches)
	}
}

func TestSetLevelChangesThresholdAtRuntime(t *testing.T) {
	l, buf := newTestLogger(LevelOff, "\t")
	l.LogAt(LevelHigh, "origin", "dropped while off")
	if buf.String() != "" {
		t.Fatal("expected nothing logged while level is OFF")
	}

	l.SetLevel(LevelHigh)
	l.LogAt(LevelHigh, "origin", "now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatal("expected record after raising the level")
	}
}

func TestSetAndGetTLSVersion(t *testing.T) {
	l, _ := newTestLogger(LevelHigh, "\t")
	l.SetTLSVersion(Version{Major: 3, Minor: 4})
	if got := l.TLSVersion(); got != (Version{Major: 3, Minor: 4}) {
		t.Fatalf("TLSVersion() = %+v", got)
	}
}
