// Package manipulation implements the fault-injection catalogue (spec
// component C4): a set of typed hooks that a config-driven descriptor list
// applies at the four points the handshake driver exposes around each
// step. Each hook type corresponds 1:1 to a manipulation class in the
// original tool; see DESIGN.md for the per-type grounding.
package manipulation

import (
	"context"

	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

// Logger is the minimal surface a manipulation needs to record what it
// did. *logx.Logger satisfies it; tests can supply a stub.
type Logger interface {
	Log(origin, message string)
}

// Hook is the interface every catalogue entry implements. The driver
// calls all four methods on every registered hook at the matching point
// in the handshake, in configuration order; a hook that has nothing to
// do at a given point simply returns nil.
type Hook interface {
	Name() string
	ExecutePreHandshake(ctx context.Context, s tlssession.Session) error
	ExecutePreStep(ctx context.Context, s tlssession.Session) error
	ExecutePostStep(ctx context.Context, s tlssession.Session) error
	ExecutePostHandshake(ctx context.Context, s tlssession.Session) error
}

// base gives every concrete hook a name and a logger, plus no-op
// implementations of the three lifecycle points it does not use; each
// type embeds base and overrides only the methods it needs, mirroring
// the four-method override surface of the original Manipulation base
// class.
type base struct {
	name   string
	logger Logger
}

func (b *base) Name() string { return b.name }

func (b *base) log(message string) {
	if b.logger != nil {
		b.logger.Log(b.name, message)
	}
}

func (b *base) ExecutePreHandshake(ctx context.Context, s tlssession.Session) error  { return nil }
func (b *base) ExecutePreStep(ctx context.Context, s tlssession.Session) error       { return nil }
func (b *base) ExecutePostStep(ctx context.Context, s tlssession.Session) error      { return nil }
func (b *base) ExecutePostHandshake(ctx context.Context, s tlssession.Session) error { return nil }
