package tlssession

import (
	"io"
	"net"
	"time"
)

// rwcConn lifts an io.ReadWriteCloser to net.Conn so it can be handed to
// crypto/tls.Client/Server and utls.UClient, both of which require the
// richer interface even though they only ever call Read/Write/Close on
// it here. The transport façade (internal/transport.Connection) already
// implements net.Conn in spirit; this adapter exists so Session.SetupSession
// keeps the narrower io.ReadWriteCloser contract the interface promises
// and never forces callers to depend on the transport package.
type rwcConn struct {
	io.ReadWriteCloser
}

func asNetConn(rwc io.ReadWriteCloser) net.Conn {
	if c, ok := rwc.(net.Conn); ok {
		return c
	}
	return rwcConn{rwc}
}

func (rwcConn) LocalAddr() net.Addr                { return noAddr{} }
func (rwcConn) RemoteAddr() net.Addr               { return noAddr{} }
func (rwcConn) SetDeadline(time.Time) error        { return nil }
func (rwcConn) SetReadDeadline(time.Time) error     { return nil }
func (rwcConn) SetWriteDeadline(time.Time) error    { return nil }

type noAddr struct{}

func (noAddr) Network() string { return "tcp" }
func (noAddr) String() string  { return "" }
