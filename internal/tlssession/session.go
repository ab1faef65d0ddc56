// Package tlssession defines the abstract contract every TLS backend must
// satisfy (spec component C5) plus the two concrete backends that
// implement it: a TLS-1.2-only "legacy" backend built on crypto/tls, and a
// TLS-1.3-capable "modern" backend built on utls for exact ClientHello
// control. The driver and the manipulation catalogue depend only on the
// Session interface, never on a concrete backend.
package tlssession

import (
	"context"
	"fmt"
	"io"

	"github.com/BSI-Bund/TaSK/internal/logx"
)

// HandshakeState enumerates the TLS 1.2/1.3 handshake positions. Each
// value names the action expected next from the local role; for a client
// that means "send this message next", for a server "expect to receive
// this message next". HandshakeDone is terminal.
type HandshakeState int

const (
	StateHelloRequest HandshakeState = iota
	StateClientHello
	StateServerHello
	StateHelloRetryRequest
	StateEncryptedExtensions
	StateServerCertificate
	StateServerKeyExchange
	StateCertificateRequest
	StateServerHelloDone
	StateClientCertificate
	StateClientKeyExchange
	StateCertificateVerify
	StateClientChangeCipherSpec
	StateClientFinished
	StateServerChangeCipherSpec
	StateServerFinished
	StateEndOfEarlyData
	StateInternalFlush
	StateInternalWrapup
	StateHandshakeDone
)

func (s HandshakeState) String() string {
	names := [...]string{
		"hello_request", "client_hello", "server_hello", "hello_retry_request",
		"encrypted_extensions", "server_certificate", "server_key_exchange",
		"certificate_request", "server_hello_done", "client_certificate",
		"client_key_exchange", "certificate_verify", "client_change_cipher_spec",
		"client_finished", "server_change_cipher_spec", "server_finished",
		"end_of_early_data", "internal_flush", "internal_wrapup", "handshake_done",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return fmt.Sprintf("unknown_state(%d)", int(s))
	}
	return names[s]
}

// HandshakeType selects a normal handshake or one of the resumption flavours.
type HandshakeType int

const (
	HandshakeNormal HandshakeType = iota
	HandshakeResumeSessionID
	HandshakeResumeTicket
	HandshakeZeroRTT
)

// Version is a (major, minor) TLS record-layer version pair.
type Version struct {
	Major, Minor uint8
}

// KeyLogWriter receives NSS Key Log Format lines as the backend derives
// secrets. One line is appended atomically per call.
type KeyLogWriter interface {
	WriteKeyLogLine(label string, clientRandom, secret []byte) error
}

// StepHook is invoked by the session around every handshake state
// transition, once before the step runs and once after. Implementations
// must not panic; manipulation errors propagate through the returned error.
type StepHook interface {
	PreStep(ctx context.Context, s Session) error
	PostStep(ctx context.Context, s Session) error
}

// Session is the abstract contract every TLS backend must satisfy. The
// driver (C6) and the manipulation catalogue (C4) interact with a session
// exclusively through this interface; internals are owned by the
// concrete backend (legacySession or modernSession) alone.
type Session interface {
	// --- configuration setters: each may be called at most once, pre-handshake ---

	SetCACertificate(pemBytes []byte) error
	SetCertificate(certPEM, keyPEM []byte) error
	SetVersion(v Version) error
	SetCipherSuites(suites [][2]uint8) error
	SetServerDHParams(group DHParams) error
	SetSupportedGroups(groups []uint16) error
	SetSignatureSchemes(schemes [][2]uint8) error
	SetSignatureAlgorithms(algos [][2]uint8) error
	SetUseSNI(enabled bool, host string) error
	SetVerifyPeer(enabled bool) error
	SetExtensionEncryptThenMAC(enabled bool) error
	SetExtensionExtendedMasterSecret(enabled bool) error
	SetPreSharedKey(key []byte, identity, hint string) error
	SetHelloCompressionMethods(methods []byte) error
	SetClientHelloExtensionsRaw(raw []byte) error
	SetServerHelloExtensionsRaw(raw []byte) error
	SetEncryptedExtensionsTLS13Raw(raw []byte) error
	SetHandshakeType(kind HandshakeType) error
	SetSessionCache(serialized string) error
	SetEarlyData(data []byte) error
	SetOCSPResponderFile(path string) error
	SetWaitForAlertSeconds(n int) error
	SetTCPReceiveTimeoutSeconds(n int) error
	SetSecretOutput(sink KeyLogWriter) error

	// SetMessageLogger wires the protocol-message logger (C7) that decodes
	// handshake messages this backend can still see in the clear. Backends
	// with no record-boundary visibility (modernSession) accept and ignore it.
	SetMessageLogger(m *logx.MessageLogger)

	// --- manipulation hooks: invoked mid-handshake by the catalogue ---

	ForceCertificateUsage() error
	OverwriteHelloVersion(v Version) error
	OverwriteEllipticCurveGroup(groupID uint16) error
	SendRecord(contentType uint8, payload []byte) error

	// SendHeartbeat emits a heartbeat_request record whose
	// HeartbeatMessageHeader.payload_length is declaredLength, independent of
	// len(payload) — the Heartbleed-style over-read case where a DUT is
	// asked to echo back more than the client actually sent.
	SendHeartbeat(declaredLength uint16, payload []byte) error

	SendApplicationData(payload []byte) error
	SendEarlyData(payload []byte) error

	// --- lifecycle ---

	SetupSession(ctx context.Context, conn io.ReadWriteCloser, isClient bool, hooks StepHook) error
	PerformHandshake(ctx context.Context) error
	Renegotiate(ctx context.Context) error
	SendApplicationDataConn(payload []byte) error
	ReceiveApplicationData() ([]byte, error)
	Close(ctx context.Context) error
	CleanSession() error

	// --- observability ---

	State() HandshakeState
	NegotiatedVersion() Version
	IsClient() bool
	PreSharedKey() []byte
	PSKIdentity() string
}

// DHParams names a predefined, server-side Diffie-Hellman group (RFC 3526
// MODP sizes or an RFC 5114 named pair). Concrete prime/generator bytes
// live in internal/config's resolver tables; the session only needs the
// resolved identifier to hand to the backend.
type DHParams struct {
	Name      string
	PrimeHex  string
	GenHex    string
}
