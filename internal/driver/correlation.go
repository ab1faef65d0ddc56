package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/util/logredact"
)

// sessionIDKey is the one context key this package defines, replacing the
// teacher's request-scoped ctxkey pattern with the single value this
// domain actually needs: a correlation id tying every log line from one
// driver run together, since a resumption test (spec.md §4.6/S4) drives
// two runs back to back over the same listener and their lines would
// otherwise be indistinguishable.
type sessionIDKey struct{}

// withSessionID generates a fresh correlation id and returns a context
// carrying it alongside the id itself.
func withSessionID(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	return context.WithValue(ctx, sessionIDKey{}, id), id
}

// LogConfigSnapshot writes a redacted view of an arbitrary key/value
// snapshot (typically a Config's fields, flattened by the caller) at
// LevelHigh, scrubbing PSK/private-key/secret fields through logredact
// before anything reaches the structured log sink.
func LogConfigSnapshot(logger *logx.Logger, origin string, snapshot map[string]any) {
	if len(snapshot) == 0 {
		return
	}
	redacted := logredact.RedactMap(snapshot)
	logger.LogAt(logx.LevelHigh, origin, mapToLine(redacted))
}

func mapToLine(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+toString(m[k]))
	}
	return "config: " + strings.Join(parts, " ")
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
