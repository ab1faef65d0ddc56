package tlssession

import (
	"context"
	"net"

	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/wire"
)

// stepConn wraps the legacy backend's net.Conn so every record crossing
// the wire can be classified into a HandshakeState and bracketed by
// StepHook.PreStep/PostStep, the way the driver expects for the legacy
// backend (spec.md §4.5). crypto/tls gives no hook at this granularity,
// so this is an honest best-effort: it parses the outer TLSPlaintext
// header of every record in a Write/Read buffer and, for Handshake
// records, the inner message type. Once a ChangeCipherSpec has been seen
// from a role, every subsequent Handshake-typed record from that role is
// assumed Finished, since its body is now encrypted and the real message
// type byte is no longer legible; that assumption always holds in
// TLS 1.2 (ChangeCipherSpec is immediately followed by Finished).
type stepConn struct {
	net.Conn
	isClient bool
	ctx      context.Context
	onState  func(HandshakeState)
	hooks    StepHook
	session  Session
	msg      *logx.MessageLogger

	sawClientCCS bool
	sawServerCCS bool
}

func (c *stepConn) Write(b []byte) (int, error) {
	if err := c.fireAll(c.detectStates(b, true)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

func (c *stepConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if err != nil {
		return n, err
	}
	if ferr := c.fireAll(c.detectStates(b[:n], false)); ferr != nil {
		return n, ferr
	}
	return n, nil
}

func (c *stepConn) fireAll(states []HandshakeState) error {
	for _, st := range states {
		c.onState(st)
		if c.hooks == nil {
			continue
		}
		if err := c.hooks.PreStep(c.ctx, c.session); err != nil {
			return err
		}
		if err := c.hooks.PostStep(c.ctx, c.session); err != nil {
			return err
		}
	}
	return nil
}

func (c *stepConn) detectStates(b []byte, writing bool) []HandshakeState {
	var out []HandshakeState
	pos := 0
	for pos+wire.PlaintextHeaderLen <= len(b) {
		hdr, err := wire.DecodePlaintextHeader(b[pos:])
		if err != nil {
			break
		}
		end := pos + wire.PlaintextHeaderLen + int(hdr.Length)
		if end > len(b) || end <= pos {
			break
		}
		body := b[pos+wire.PlaintextHeaderLen : end]

		switch hdr.Type {
		case wire.ContentTypeChangeCipherSpec:
			st := nextStateForChangeCipherSpec(c.isClient, writing)
			out = append(out, st)
			if st == StateClientChangeCipherSpec {
				c.sawClientCCS = true
			} else {
				c.sawServerCCS = true
			}
		case wire.ContentTypeHandshake:
			fromClient := (writing && c.isClient) || (!writing && !c.isClient)
			if (fromClient && c.sawClientCCS) || (!fromClient && c.sawServerCCS) {
				if fromClient {
					out = append(out, StateClientFinished)
				} else {
					out = append(out, StateServerFinished)
				}
				logHandshakeMessage(c.msg, wire.HandshakeTypeFinished, nil)
			} else if len(body) >= wire.HandshakeHeaderLen {
				if hh, err := wire.DecodeHandshakeHeader(body); err == nil {
					if st, ok := nextStateForHandshakeMsg(c.isClient, writing, hh.MsgType); ok {
						out = append(out, st)
					}
					msgBody := body[wire.HandshakeHeaderLen:]
					if uint32(len(msgBody)) > hh.Length {
						msgBody = msgBody[:hh.Length]
					}
					logHandshakeMessage(c.msg, hh.MsgType, msgBody)
				}
			}
		}
		pos = end
	}
	return out
}
