package driver

import (
	"context"
	"time"

	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/manipulation"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
	"github.com/BSI-Bund/TaSK/internal/transport"
)

// acceptPollInterval is the outer accept-loop cadence spec.md §4.6 names.
const acceptPollInterval = 100 * time.Millisecond

// SessionFactory builds a fresh, fully-configured Session for one accepted
// connection. The caller supplies it so the accept loop never needs to
// know which backend (legacy/modern) or which Config fields built it.
type SessionFactory func() (tlssession.Session, error)

// RunServer implements the server accept loop (spec component C9,
// spec.md §4.6): listen once, accept the first connection, and run the
// driver over it. If the configured handshake type is a resumption
// flavour, a second connection is accepted and driven after the first
// completes, so a resuming client has something to resume against. The
// outer loop polls the acceptor every acceptPollInterval and gives up
// once listenTimeout elapses without both runs finishing.
func RunServer(ctx context.Context, logger *logx.Logger, chain *manipulation.Chain, newSession SessionFactory, listener *transport.Listener, handshakeType tlssession.HandshakeType, p Params, listenTimeout time.Duration) error {
	d := New(logger, chain)
	deadline := time.Now().Add(listenTimeout)

	acceptCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	conn, err := acceptWithPolling(acceptCtx, listener)
	if err != nil {
		return err
	}
	session, err := newSession()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := d.Run(ctx, session, conn, p); err != nil {
		return err
	}

	if !isResumption(handshakeType) {
		return nil
	}

	acceptCtx2, cancel2 := context.WithDeadline(ctx, deadline)
	defer cancel2()
	conn2, err := acceptWithPolling(acceptCtx2, listener)
	if err != nil {
		return err
	}
	session2, err := newSession()
	if err != nil {
		_ = conn2.Close()
		return err
	}
	return d.Run(ctx, session2, conn2, p)
}

func isResumption(t tlssession.HandshakeType) bool {
	switch t {
	case tlssession.HandshakeResumeSessionID, tlssession.HandshakeResumeTicket, tlssession.HandshakeZeroRTT:
		return true
	default:
		return false
	}
}

// acceptWithPolling wraps Listener.Accept so the outer loop's 100ms
// cadence is observable (spec.md §4.6) rather than a single blocking
// accept call; the accept itself still runs on its own goroutine inside
// Listener.Accept, this only bounds how long we wait per attempt.
func acceptWithPolling(ctx context.Context, listener *transport.Listener) (*transport.Connection, error) {
	for {
		conn, err := listener.Accept(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acceptPollInterval):
		}
	}
}
