// Package driver implements the handshake driver (spec component C6): it
// takes a configured tlssession.Session and a live transport.Connection,
// drives the handshake to completion (or a clean failure), fires the
// manipulation chain at the four lifecycle points, and then runs the
// post-handshake application-data phase for the configured session
// lifetime. Grounded on
// original_source/tlstesttool/tooling/src/core/TlsTestTool.cpp's run()
// loop and on internal/transport for the polling primitives.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BSI-Bund/TaSK/internal/errs"
	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/manipulation"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
	"github.com/BSI-Bund/TaSK/internal/transport"
)

// inboundWaitAfterHandshake is the fixed window spec.md §4.5 gives the
// driver to notice application data the peer sent immediately after the
// handshake, before entering the session-lifetime loop.
const inboundWaitAfterHandshake = time.Second

// pollInterval is the cooperative poll granularity spec.md §4.5 names for
// the session-lifetime loop (the 20-100ms band it allows).
const pollInterval = 100 * time.Millisecond

// Params carries the per-run timeouts the driver enforces, sourced from
// config.Timeouts, and the local role (IsClient, from config.Mode).
type Params struct {
	WaitBeforeClose time.Duration
	SessionLifetime time.Duration
	IsClient        bool
}

// Driver runs one handshake-plus-session lifecycle over one connection.
// origin carries the current run's correlation id once Run has started;
// it is safe to reuse a Driver across sequential (never concurrent) runs,
// as the server accept loop's resumption case does.
type Driver struct {
	logger *logx.Logger
	msg    *logx.MessageLogger
	chain  *manipulation.Chain
	origin string
}

// New builds a Driver that logs through logger and applies chain's hooks
// (an empty chain is fine: every Chain method no-ops over zero hooks).
func New(logger *logx.Logger, chain *manipulation.Chain) *Driver {
	if chain == nil {
		chain = &manipulation.Chain{}
	}
	return &Driver{logger: logger, msg: logx.NewMessageLogger(logger, "driver"), chain: chain, origin: "driver"}
}

// stepProbe adapts the manipulation chain into the tlssession.StepHook the
// session calls around every handshake transition, adding the
// is-closed probe spec.md §4.5 requires after each step ("this probe
// exists to drain any pending OS-level events that a non-blocking I/O
// implementation needs to observe a peer-initiated close").
type stepProbe struct {
	chain *manipulation.Chain
	conn  *transport.Connection
}

func (p *stepProbe) PreStep(ctx context.Context, s tlssession.Session) error {
	if err := p.chain.PreStep(ctx, s); err != nil {
		return err
	}
	p.conn.IsClosed()
	return nil
}

func (p *stepProbe) PostStep(ctx context.Context, s tlssession.Session) error {
	if err := p.chain.PostStep(ctx, s); err != nil {
		return err
	}
	p.conn.IsClosed()
	return nil
}

// Run drives one handshake to completion and then the post-handshake
// session lifecycle, following spec.md §4.5's run() algorithm exactly.
// It never returns an error for a handshake or application-data failure
// that the algorithm itself catches and logs; the returned error is
// reserved for failures the caller must treat as unrecoverable (setup
// failing before any hook had a chance to run).
func (d *Driver) Run(ctx context.Context, session tlssession.Session, conn *transport.Connection, p Params) error {
	ctx, sessionID := withSessionID(ctx)
	d.origin = "driver session=" + sessionID[:8]
	d.msg = logx.NewMessageLogger(d.logger, d.origin)

	session.SetMessageLogger(d.msg)

	hooks := &stepProbe{chain: d.chain, conn: conn}
	if err := session.SetupSession(ctx, conn, p.IsClient, hooks); err != nil {
		return fmt.Errorf("setting up session: %w", err)
	}

	if err := d.chain.PreHandshake(ctx, session); err != nil {
		d.logHandshakeFailure(err)
		transport.WaitForClosedTCP(ctx, conn, p.WaitBeforeClose)
		return nil
	}

	if err := session.PerformHandshake(ctx); err != nil {
		d.logHandshakeFailure(err)
		transport.WaitForClosedTCP(ctx, conn, p.WaitBeforeClose)
		return nil
	}
	d.logger.LogAt(logx.LevelHigh, d.origin, "Handshake successful.")

	if err := d.chain.PostHandshake(ctx, session); err != nil {
		d.logHandshakeFailure(err)
		transport.WaitForClosedTCP(ctx, conn, p.WaitBeforeClose)
		return nil
	}

	if conn.IsClosed() {
		return nil
	}

	d.drainInitialInboundData(ctx, session, conn)

	if p.SessionLifetime > 0 {
		d.runSessionLifetime(ctx, session, conn, p.SessionLifetime)
	}

	_ = session.Close(ctx)
	transport.WaitForClosedTCP(ctx, conn, p.WaitBeforeClose)
	_ = conn.Close()
	return nil
}

func (d *Driver) logHandshakeFailure(err error) {
	d.logger.LogAt(logx.LevelHigh, d.origin, fmt.Sprintf("TLS handshake failed: %v", err))
}

// drainInitialInboundData implements the single 1s wait for inbound bytes
// immediately after the handshake completes.
func (d *Driver) drainInitialInboundData(ctx context.Context, session tlssession.Session, conn *transport.Connection) {
	hasData := func() bool {
		// IsClosed peeks at the socket, which is also what fills
		// Connection's read buffer; Available alone never triggers a read.
		conn.IsClosed()
		return conn.Available() > 0
	}
	if !transport.PollUntil(ctx, inboundWaitAfterHandshake, 20*time.Millisecond, hasData) {
		return
	}
	d.receiveAndLog(session)
}

// runSessionLifetime implements the bounded polling loop that keeps the
// connection open for lifetime, draining any application data the peer
// sends and watching for the peer closing first.
func (d *Driver) runSessionLifetime(ctx context.Context, session tlssession.Session, conn *transport.Connection, lifetime time.Duration) {
	deadline := time.Now().Add(lifetime)
	for time.Now().Before(deadline) {
		if conn.IsClosed() {
			d.logger.LogAt(logx.LevelHigh, d.origin, "DUT closed before lifetime expired")
			return
		}
		if conn.Available() > 0 {
			if !d.receiveAndLog(session) {
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
	if !conn.IsClosed() {
		d.logger.LogAt(logx.LevelHigh, d.origin, "DUT did not close after lifetime")
	}
}

// receiveAndLog reads one chunk of application data and logs it as hex.
// It reports false (without treating the run as failed) when the read
// failed only because the peer sent a graceful TLS close_notify.
func (d *Driver) receiveAndLog(session tlssession.Session) bool {
	data, err := session.ReceiveApplicationData()
	if err != nil {
		if isGracefulClose(err) {
			d.logger.LogAt(logx.LevelHigh, d.origin, "connection was closed gracefully.")
			return false
		}
		d.logger.LogAt(logx.LevelHigh, d.origin, fmt.Sprintf("receiving application data failed: %v", err))
		return false
	}
	d.msg.Field("ApplicationData.payload", data)
	return true
}

func isGracefulClose(err error) bool {
	var appErr *errs.AppDataError
	if !errors.As(err, &appErr) {
		return false
	}
	return errors.Is(appErr.Err, io.EOF)
}
