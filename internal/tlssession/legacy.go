// legacySession implements Session on top of the standard library's
// crypto/tls, the stdlib exception SPEC_FULL.md documents: utls (the
// pack's only TLS library) is a client-hello-forging layer over
// crypto/tls's own record/handshake engine and implements no TLS
// *server*, and no third-party pure-Go TLS server implementation
// appears anywhere in the example pack. crypto/tls also conforms
// strictly to the RFCs it implements, so every manipulation that needs
// to put an out-of-spec byte on the wire (a forged client_version, a raw
// extensions block, a non-null compression method) is something this
// backend genuinely cannot do; those setters reject with
// HandshakeUnsupportedOperation exactly as spec.md §4.3 anticipates,
// rather than silently no-op or fake the effect.
package tlssession

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/BSI-Bund/TaSK/internal/errs"
	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/wire"
)

// NewLegacySession constructs a TLS-1.2-only session. Configure it with
// the Set* methods, then call SetupSession and PerformHandshake.
func NewLegacySession() Session {
	return &legacySession{
		tlsConfig: &tls.Config{
			MinVersion: tls.VersionTLS10,
			MaxVersion: tls.VersionTLS12,
		},
	}
}

type legacySession struct {
	tlsConfig *tls.Config
	tlsConn   *tls.Conn
	rawConn   net.Conn

	isClient  bool
	roleKnown bool
	hooks     StepHook
	state     HandshakeState

	negotiatedVersion Version

	forcedCertUsage bool
	hasCertificate  bool
	cert            tls.Certificate

	pskIdentity, pskHint string
	pskBytes             []byte

	waitForAlertSeconds   int
	tcpReceiveTimeoutSecs int

	msg *logx.MessageLogger
}

func (s *legacySession) SetCACertificate(pemBytes []byte) error {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return &errs.ConfigError{Key: "tlsCACertificateFile", Reason: "no certificates found in PEM data"}
	}
	s.tlsConfig.RootCAs = pool
	s.tlsConfig.ClientCAs = pool
	return nil
}

func (s *legacySession) SetCertificate(certPEM, keyPEM []byte) error {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return &errs.ConfigError{Key: "tlsCertificateFile", Reason: err.Error()}
	}
	s.cert = cert
	s.hasCertificate = true
	s.tlsConfig.Certificates = []tls.Certificate{cert}
	return nil
}

func (s *legacySession) SetVersion(v Version) error {
	goVersion, ok := legacyGoVersion(v)
	if !ok {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: fmt.Sprintf("legacy backend supports TLS 1.0-1.2 only, got (%d,%d)", v.Major, v.Minor)}
	}
	s.tlsConfig.MinVersion = goVersion
	s.tlsConfig.MaxVersion = goVersion
	return nil
}

func legacyGoVersion(v Version) (uint16, bool) {
	if v.Major != 3 {
		return 0, false
	}
	switch v.Minor {
	case 1:
		return tls.VersionTLS10, true
	case 2:
		return tls.VersionTLS11, true
	case 3:
		return tls.VersionTLS12, true
	default:
		return 0, false
	}
}

func (s *legacySession) SetCipherSuites(suites [][2]uint8) error {
	ids := make([]uint16, len(suites))
	for i, pair := range suites {
		ids[i] = uint16(pair[0])<<8 | uint16(pair[1])
	}
	s.tlsConfig.CipherSuites = ids
	return nil
}

func (s *legacySession) SetServerDHParams(group DHParams) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls selects its own DHE group and exposes no override"}
}

func (s *legacySession) SetSupportedGroups(groups []uint16) error {
	var curves []tls.CurveID
	for _, g := range groups {
		if c, ok := legacyCurveID(g); ok {
			curves = append(curves, c)
		}
	}
	if len(groups) > 0 && len(curves) == 0 {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "none of the requested groups are in crypto/tls's supported curve set"}
	}
	s.tlsConfig.CurvePreferences = curves
	return nil
}

func legacyCurveID(group uint16) (tls.CurveID, bool) {
	switch group {
	case 23:
		return tls.CurveP256, true
	case 24:
		return tls.CurveP384, true
	case 25:
		return tls.CurveP521, true
	case 29:
		return tls.X25519, true
	default:
		return 0, false
	}
}

func (s *legacySession) SetSignatureSchemes(schemes [][2]uint8) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls has no public API to override the signature_algorithms extension"}
}

func (s *legacySession) SetSignatureAlgorithms(algos [][2]uint8) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls has no public API to override signature_algorithms"}
}

func (s *legacySession) SetUseSNI(enabled bool, host string) error {
	if enabled {
		s.tlsConfig.ServerName = host
		return nil
	}
	// crypto/tls's client-side verification needs either ServerName or
	// InsecureSkipVerify; disabling SNI forces the latter.
	s.tlsConfig.ServerName = ""
	s.tlsConfig.InsecureSkipVerify = true
	return nil
}

func (s *legacySession) SetVerifyPeer(enabled bool) error {
	if s.isClientHintedServer() {
		if enabled {
			s.tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			s.tlsConfig.ClientAuth = tls.NoClientCert
		}
		return nil
	}
	s.tlsConfig.InsecureSkipVerify = !enabled
	return nil
}

// isClientHintedServer reports whether SetupSession has already told us
// we are the server. Set* calls normally precede SetupSession, so role
// is usually still unknown; SetVerifyPeer is re-applied defensively to
// the right field once SetupSession learns the role (see SetupSession).
func (s *legacySession) isClientHintedServer() bool {
	return s.roleKnown && !s.isClient
}

func (s *legacySession) SetExtensionEncryptThenMAC(enabled bool) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls does not implement RFC 7366 Encrypt-then-MAC"}
}

func (s *legacySession) SetExtensionExtendedMasterSecret(enabled bool) error {
	if enabled {
		return nil // crypto/tls always negotiates extended master secret
	}
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls cannot disable extended master secret"}
}

func (s *legacySession) SetPreSharedKey(key []byte, identity, hint string) error {
	s.pskBytes = key
	s.pskIdentity, s.pskHint = identity, hint
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls has no raw PSK ciphersuite support; values recorded for observability only"}
}

func (s *legacySession) SetHelloCompressionMethods(methods []byte) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls always advertises and selects null compression"}
}

func (s *legacySession) SetClientHelloExtensionsRaw(raw []byte) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls builds its own ClientHello extensions block and exposes no raw override"}
}

func (s *legacySession) SetServerHelloExtensionsRaw(raw []byte) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls builds its own ServerHello extensions block and exposes no raw override"}
}

func (s *legacySession) SetEncryptedExtensionsTLS13Raw(raw []byte) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "the legacy backend is TLS 1.2-only and never sends EncryptedExtensions"}
}

func (s *legacySession) SetHandshakeType(kind HandshakeType) error {
	if kind != HandshakeNormal {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "the legacy backend only implements a normal handshake; resumption and zero-RTT require backend=modern"}
	}
	return nil
}

func (s *legacySession) SetSessionCache(serialized string) error {
	if serialized != "" {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "the legacy backend does not implement session resumption"}
	}
	return nil
}

func (s *legacySession) SetEarlyData(data []byte) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "early data is a TLS 1.3 concept; the legacy backend is TLS 1.2-only"}
}

func (s *legacySession) SetOCSPResponderFile(path string) error {
	der, err := os.ReadFile(path)
	if err != nil {
		return &errs.ConfigError{Key: "tlsOcspResponderFile", Reason: err.Error()}
	}
	if !s.hasCertificate {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "OCSP stapling requires a certificate to be configured first"}
	}
	s.tlsConfig.Certificates[0].OCSPStaple = der
	return nil
}

func (s *legacySession) SetWaitForAlertSeconds(n int) error {
	s.waitForAlertSeconds = n
	return nil
}

func (s *legacySession) SetTCPReceiveTimeoutSeconds(n int) error {
	s.tcpReceiveTimeoutSecs = n
	return nil
}

func (s *legacySession) SetSecretOutput(sink KeyLogWriter) error {
	s.tlsConfig.KeyLogWriter = keyLogShim{sink: sink}
	return nil
}

func (s *legacySession) SetMessageLogger(m *logx.MessageLogger) {
	s.msg = m
}

func (s *legacySession) ForceCertificateUsage() error {
	if !s.hasCertificate {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "no certificate configured to force"}
	}
	s.forcedCertUsage = true
	cert := s.cert
	s.tlsConfig.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		return &cert, nil
	}
	return nil
}

func (s *legacySession) OverwriteHelloVersion(v Version) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls derives ClientHello/ServerHello legacy_version internally with no override"}
}

func (s *legacySession) OverwriteEllipticCurveGroup(groupID uint16) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls selects the ServerKeyExchange group internally with no override"}
}

func (s *legacySession) SendRecord(contentType uint8, payload []byte) error {
	if s.state == StateHandshakeDone {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "crypto/tls exposes no API to emit a non-application-data record over an established connection"}
	}
	if s.rawConn == nil {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation, Description: "session not yet set up"}
	}
	hdr := wire.PlaintextHeader{Type: wire.ContentType(contentType), Version: wire.Version{Major: 3, Minor: 3}, Length: uint16(len(payload))}
	frame := append(hdr.Encode(), payload...)
	_, err := s.rawConn.Write(frame)
	if err != nil {
		return &errs.TransportError{Kind: errs.TransportIO, Err: err}
	}
	return nil
}

func (s *legacySession) SendHeartbeat(declaredLength uint16, payload []byte) error {
	if s.state == StateHandshakeDone {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "crypto/tls exposes no API to emit a non-application-data record over an established connection"}
	}
	if s.rawConn == nil {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation, Description: "session not yet set up"}
	}
	frame := wire.BuildHeartbeatRequest(wire.Version{Major: 3, Minor: 3}, declaredLength, payload)
	if _, err := s.rawConn.Write(frame); err != nil {
		return &errs.TransportError{Kind: errs.TransportIO, Err: err}
	}
	return nil
}

func (s *legacySession) SendApplicationData(payload []byte) error {
	return s.SendApplicationDataConn(payload)
}

func (s *legacySession) SendEarlyData(payload []byte) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "early data is a TLS 1.3 concept; the legacy backend is TLS 1.2-only"}
}

func (s *legacySession) SetupSession(ctx context.Context, conn io.ReadWriteCloser, isClient bool, hooks StepHook) error {
	s.rawConn = asNetConn(conn)
	s.isClient, s.roleKnown, s.hooks = isClient, true, hooks
	wrapped := &stepConn{Conn: s.rawConn, isClient: isClient, ctx: ctx, onState: s.setState, hooks: hooks, session: s, msg: s.msg}
	if isClient {
		s.tlsConn = tls.Client(wrapped, s.tlsConfig)
	} else {
		s.tlsConn = tls.Server(wrapped, s.tlsConfig)
	}
	s.state = StateClientHello
	return nil
}

func (s *legacySession) setState(st HandshakeState) { s.state = st }

func (s *legacySession) PerformHandshake(ctx context.Context) error {
	if err := s.tlsConn.HandshakeContext(ctx); err != nil {
		return &errs.HandshakeError{Kind: errs.HandshakeBackendError, Description: "crypto/tls handshake failed", Err: err}
	}
	cs := s.tlsConn.ConnectionState()
	s.negotiatedVersion = versionFromGo(cs.Version)
	s.state = StateHandshakeDone
	return nil
}

func versionFromGo(v uint16) Version {
	switch v {
	case tls.VersionTLS10:
		return Version{3, 1}
	case tls.VersionTLS11:
		return Version{3, 2}
	case tls.VersionTLS12:
		return Version{3, 3}
	case tls.VersionTLS13:
		return Version{3, 4}
	default:
		return Version{}
	}
}

func (s *legacySession) Renegotiate(ctx context.Context) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "crypto/tls does not expose caller-initiated renegotiation"}
}

func (s *legacySession) SendApplicationDataConn(payload []byte) error {
	if _, err := s.tlsConn.Write(payload); err != nil {
		return &errs.AppDataError{Reason: "write failed", Err: err}
	}
	return nil
}

func (s *legacySession) ReceiveApplicationData() ([]byte, error) {
	buf := make([]byte, 16384)
	n, err := s.tlsConn.Read(buf)
	if err != nil {
		return nil, &errs.AppDataError{Reason: "read failed", Err: err}
	}
	return buf[:n], nil
}

func (s *legacySession) Close(ctx context.Context) error {
	if s.tlsConn == nil {
		return nil
	}
	return s.tlsConn.Close()
}

func (s *legacySession) CleanSession() error {
	s.tlsConn = nil
	s.state = StateHelloRequest
	return nil
}

func (s *legacySession) State() HandshakeState     { return s.state }
func (s *legacySession) NegotiatedVersion() Version { return s.negotiatedVersion }
func (s *legacySession) IsClient() bool             { return s.isClient }
func (s *legacySession) PreSharedKey() []byte       { return s.pskBytes }
func (s *legacySession) PSKIdentity() string        { return s.pskIdentity }
