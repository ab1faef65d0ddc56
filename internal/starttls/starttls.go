// Package starttls implements the plaintext preamble exchanges (spec
// component C10) that precede a TLS handshake on protocols that upgrade
// an existing plaintext connection in place, grounded on
// network/StartTlsHandshake.{h,cpp}.
package starttls

import (
	"context"
	"time"

	"github.com/BSI-Bund/TaSK/internal/errs"
	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/transport"
)

// Protocol names a STARTTLS-capable application protocol.
type Protocol int

const (
	ProtocolNone Protocol = iota
	ProtocolSMTP
	ProtocolIMAP
	ProtocolPOP3
	ProtocolFTP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolSMTP:
		return "SMTP"
	case ProtocolIMAP:
		return "IMAP"
	case ProtocolPOP3:
		return "POP3"
	case ProtocolFTP:
		return "FTP"
	default:
		return "NONE"
	}
}

// step is one leg of the exchange: either a fixed set of lines the local
// role sends, or a "wait for one inbound message" placeholder (nil
// lines).
type step struct {
	lines []string
}

// script is the ordered exchange for one role (client or server) of one
// protocol, alternating with the peer's script one step at a time.
type script []step

var (
	smtpServer = script{
		{lines: []string{"220 mail.example.com SMTP service ready\r\n"}},
		{lines: []string{"250-mail.example.com offers a warm hug of welcome\r\n", "250 STARTTLS\r\n"}},
		{lines: []string{"220 GO AHEAD\r\n"}},
	}
	smtpClient = script{
		{lines: []string{"EHLO mail.example.com\r\n"}},
		{lines: []string{"STARTTLS\r\n"}},
	}
	imapServer = script{
		{lines: []string{"CAPABILITY IMAP4rev1 STARTTLS LOGINDISABLED\r\n", "a OK CAPABILITY completed\r\n"}},
		{lines: []string{"a OK BEGIN TLS NEGOTIATION\r\n"}},
	}
	imapClient = script{
		{lines: []string{"CAPABILITY\r\n"}},
		{lines: []string{"a STARTTLS\r\n"}},
	}
	pop3Server = script{
		{lines: []string{"+OK Service Ready\r\n"}},
		{lines: []string{"+OK Begin TLS negotiation\r\n"}},
	}
	pop3Client = script{
		{lines: []string{"STLS\r\n"}},
	}
	ftpServer = script{
		{lines: []string{"211-Extensions supported\r\nAUTH TLS\r\n211 END\r\n"}},
		{lines: []string{"234 AUTH command ok. Initializing TLS connection->\r\n"}},
	}
	ftpClient = script{
		{lines: []string{"AUTH TLS\r\n"}},
	}
)

// scriptFor returns the local role's script and whether the local role
// sends the very first message, per StartTlsHandshake.cpp's per-protocol
// table.
func scriptFor(p Protocol, isClient bool) (script, bool, error) {
	switch p {
	case ProtocolSMTP:
		if isClient {
			return smtpClient, false, nil
		}
		return smtpServer, true, nil
	case ProtocolIMAP:
		if isClient {
			return imapClient, true, nil
		}
		return imapServer, false, nil
	case ProtocolPOP3:
		if isClient {
			return pop3Client, false, nil
		}
		return pop3Server, true, nil
	case ProtocolFTP:
		if isClient {
			return ftpClient, false, nil
		}
		return ftpServer, true, nil
	default:
		return nil, false, &errs.ConfigError{Key: "startTlsProtocol", Reason: "must select a STARTTLS protocol to run a STARTTLS preamble"}
	}
}

// Execute runs the plaintext preamble exchange for protocol p over conn,
// alternating sends and receives with the peer until both sides'
// scripts are exhausted. It returns an error if the protocol is
// unselected or a receive fails.
func Execute(ctx context.Context, conn *transport.Connection, p Protocol, isClient bool, receiveTimeout time.Duration, logger *logx.Logger) error {
	s, sendFirst, err := scriptFor(p, isClient)
	if err != nil {
		return err
	}
	if logger != nil {
		logger.LogAt(logx.LevelHigh, "Network", "StartTLS handshake started")
	}

	sending := sendFirst
	for len(s) > 0 {
		if sending {
			for _, line := range s[0].lines {
				if _, err := conn.Write([]byte(line)); err != nil {
					return &errs.TransportError{Kind: errs.TransportIO, Err: err}
				}
				if logger != nil {
					logger.LogAt(logx.LevelHigh, "Network", "StartTLS message sent: "+line)
				}
			}
			s = s[1:]
		} else {
			msg, err := receiveOne(ctx, conn, receiveTimeout)
			if err != nil {
				if logger != nil {
					logger.LogAt(logx.LevelHigh, "Network", "StartTLS handshake was not executed successfully")
				}
				return err
			}
			if logger != nil {
				logger.LogAt(logx.LevelHigh, "Network", "StartTLS message received: "+msg)
			}
		}
		sending = !sending
	}

	if logger != nil {
		logger.LogAt(logx.LevelHigh, "Network", "StartTLS handshake finished successfully")
	}
	return nil
}

const maxPreambleMessageSize = 1000

// receiveOne blocks until at least one byte is available (or the peer
// closes, or timeout elapses), then reads whatever is currently
// available, matching StartTlsHandshake::tcpReceive's one-shot-per-
// available-chunk behavior.
func receiveOne(ctx context.Context, conn *transport.Connection, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for conn.Available() == 0 {
		if conn.IsClosed() {
			return "", &errs.TransportError{Kind: errs.TransportEOF}
		}
		if time.Now().After(deadline) {
			return "", &errs.TransportError{Kind: errs.TransportTimeout}
		}
		select {
		case <-ctx.Done():
			return "", &errs.TransportError{Kind: errs.TransportTimeout, Err: ctx.Err()}
		case <-time.After(20 * time.Millisecond):
		}
	}
	n := conn.Available()
	if n > maxPreambleMessageSize {
		n = maxPreambleMessageSize
	}
	buf := make([]byte, n)
	if _, err := conn.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
