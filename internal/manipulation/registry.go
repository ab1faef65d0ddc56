package manipulation

import (
	"context"

	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

// Chain applies an ordered list of hooks at one of the four lifecycle
// points, in the order they were registered (spec.md §4.4: manipulations
// execute in configuration order). It implements tlssession.StepHook so
// a driver can hand it straight to Session.SetupSession.
type Chain struct {
	Hooks []Hook
}

var _ tlssession.StepHook = (*Chain)(nil)

// PreHandshake runs every hook's ExecutePreHandshake in order, stopping
// at the first error.
func (c *Chain) PreHandshake(ctx context.Context, s tlssession.Session) error {
	for _, h := range c.Hooks {
		if err := h.ExecutePreHandshake(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// PreStep implements tlssession.StepHook.
func (c *Chain) PreStep(ctx context.Context, s tlssession.Session) error {
	for _, h := range c.Hooks {
		if err := h.ExecutePreStep(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// PostStep implements tlssession.StepHook.
func (c *Chain) PostStep(ctx context.Context, s tlssession.Session) error {
	for _, h := range c.Hooks {
		if err := h.ExecutePostStep(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// PostHandshake runs every hook's ExecutePostHandshake in order, stopping
// at the first error.
func (c *Chain) PostHandshake(ctx context.Context, s tlssession.Session) error {
	for _, h := range c.Hooks {
		if err := h.ExecutePostHandshake(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
