// modernSession implements Session for the TLS-1.3-capable "modern"
// backend. As a client it drives utls.UConn with a hand-built
// ClientHelloSpec so every ClientHello field the manipulation catalogue
// can touch is under direct control, a generalization of
// tlsfingerprint/dialer.go's buildClientHelloSpecFromProfile from a
// fixed Node.js fingerprint Profile to this harness's Config-driven
// cipher suites, groups, signature schemes, and raw extension overrides.
// utls implements no TLS server, so the server role falls back to
// crypto/tls pinned to TLS 1.3 (the same stdlib exception legacySession
// documents); the manipulation catalogue never drives per-step hooks on
// this backend (spec.md notes the modern backend "does not expose step
// granularity"), so hooks is stored but PreStep/PostStep are never
// invoked here.
package tlssession

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"

	utls "github.com/refraction-networking/utls"

	"github.com/BSI-Bund/TaSK/internal/errs"
	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/wire"
)

// defaultCipherSuites mirrors tlsfingerprint.defaultCipherSuites: a
// realistic modern browser/client cipher suite list, used whenever the
// configuration does not name one explicitly.
var defaultCipherSuites = []uint16{
	0x1302, 0x1303, 0x1301,
	0xc02f, 0xc02b, 0xc030, 0xc02c,
	0xcca9, 0xcca8,
	0x009e, 0x009c,
	0x002f, 0x0035,
}

var defaultCurves = []uint16{
	0x001d, // x25519
	0x0017, // secp256r1
	0x0018, // secp384r1
	0x0019, // secp521r1
}

var defaultSignatureSchemes = []utls.SignatureScheme{
	0x0403, 0x0503, 0x0603,
	0x0807, 0x0808,
	0x0804, 0x0805, 0x0806,
	0x0401, 0x0501, 0x0601,
}

var sharedClientSessionCache = tls.NewLRUClientSessionCache(8)

// NewModernSession constructs a TLS-1.3-capable session. Configure it
// with the Set* methods, then call SetupSession and PerformHandshake.
func NewModernSession() Session {
	return &modernSession{
		cipherSuites:     defaultCipherSuites,
		curves:           defaultCurves,
		signatureSchemes: defaultSignatureSchemes,
		useSNI:           true,
		verifyPeer:       true,
		emsEnabled:       true,
	}
}

type modernSession struct {
	caCertPEM      []byte
	hasCertificate bool
	cert           tls.Certificate

	versionMajor, versionMinor uint8 // 0,0 means "unset": negotiate TLS1.0-1.3

	cipherSuites     []uint16
	curves           []uint16
	signatureSchemes []utls.SignatureScheme

	useSNI, sniSet     bool
	sniHost            string
	verifyPeer         bool
	etmEnabled         bool
	emsEnabled         bool
	pskBytes           []byte
	pskIdentity        string
	pskHint            string
	compressionMethods []byte
	clientHelloExtRaw  []byte
	serverHelloExtRaw  []byte
	encryptedExtRaw    []byte

	handshakeType HandshakeType
	sessionCache  string
	earlyData     []byte
	ocspDER       []byte

	waitForAlertSeconds   int
	tcpReceiveTimeoutSecs int
	keyLogSink            KeyLogWriter

	forcedCertUsage bool

	isClient  bool
	roleKnown bool
	hooks     StepHook
	state     HandshakeState

	negotiatedVersion Version
	rawConn           net.Conn
	uConn             *utls.UConn
	tlsConn           *tls.Conn
}

func (s *modernSession) SetCACertificate(pemBytes []byte) error {
	s.caCertPEM = pemBytes
	return nil
}

func (s *modernSession) SetCertificate(certPEM, keyPEM []byte) error {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return &errs.ConfigError{Key: "tlsCertificateFile", Reason: err.Error()}
	}
	s.cert = cert
	s.hasCertificate = true
	return nil
}

func (s *modernSession) SetVersion(v Version) error {
	if v.Major != 3 || v.Minor > 4 {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: fmt.Sprintf("unsupported TLS version (%d,%d)", v.Major, v.Minor)}
	}
	s.versionMajor, s.versionMinor = v.Major, v.Minor
	return nil
}

func (s *modernSession) SetCipherSuites(suites [][2]uint8) error {
	ids := make([]uint16, len(suites))
	for i, pair := range suites {
		ids[i] = uint16(pair[0])<<8 | uint16(pair[1])
	}
	s.cipherSuites = ids
	return nil
}

func (s *modernSession) SetServerDHParams(group DHParams) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "the modern backend negotiates (EC)DHE groups via key_share; classic FFDHE group injection is not wired"}
}

func (s *modernSession) SetSupportedGroups(groups []uint16) error {
	s.curves = groups
	return nil
}

func (s *modernSession) SetSignatureSchemes(schemes [][2]uint8) error {
	out := make([]utls.SignatureScheme, len(schemes))
	for i, pair := range schemes {
		out[i] = utls.SignatureScheme(uint16(pair[0])<<8 | uint16(pair[1]))
	}
	s.signatureSchemes = out
	return nil
}

func (s *modernSession) SetSignatureAlgorithms(algos [][2]uint8) error {
	return s.SetSignatureSchemes(algos)
}

func (s *modernSession) SetUseSNI(enabled bool, host string) error {
	s.useSNI, s.sniSet, s.sniHost = enabled, true, host
	return nil
}

func (s *modernSession) SetVerifyPeer(enabled bool) error {
	s.verifyPeer = enabled
	return nil
}

func (s *modernSession) SetExtensionEncryptThenMAC(enabled bool) error {
	s.etmEnabled = enabled
	return nil
}

func (s *modernSession) SetExtensionExtendedMasterSecret(enabled bool) error {
	s.emsEnabled = enabled
	return nil
}

func (s *modernSession) SetPreSharedKey(key []byte, identity, hint string) error {
	s.pskBytes, s.pskIdentity, s.pskHint = key, identity, hint
	return nil
}

func (s *modernSession) SetHelloCompressionMethods(methods []byte) error {
	if !s.isClient && s.roleKnown {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "crypto/tls (used for the modern backend's server role) always selects null compression"}
	}
	s.compressionMethods = methods
	return nil
}

func (s *modernSession) SetClientHelloExtensionsRaw(raw []byte) error {
	s.clientHelloExtRaw = raw
	return nil
}

func (s *modernSession) SetServerHelloExtensionsRaw(raw []byte) error {
	if s.roleKnown && !s.isClient {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "crypto/tls builds its own ServerHello extensions block and exposes no raw override"}
	}
	s.serverHelloExtRaw = raw
	return nil
}

func (s *modernSession) SetEncryptedExtensionsTLS13Raw(raw []byte) error {
	if s.roleKnown && !s.isClient {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "crypto/tls builds its own EncryptedExtensions and exposes no raw override"}
	}
	s.encryptedExtRaw = raw
	return nil
}

func (s *modernSession) SetHandshakeType(kind HandshakeType) error {
	s.handshakeType = kind
	return nil
}

func (s *modernSession) SetSessionCache(serialized string) error {
	s.sessionCache = serialized
	return nil
}

func (s *modernSession) SetEarlyData(data []byte) error {
	s.earlyData = data
	return nil
}

func (s *modernSession) SetOCSPResponderFile(path string) error {
	der, err := os.ReadFile(path)
	if err != nil {
		return &errs.ConfigError{Key: "tlsOcspResponderFile", Reason: err.Error()}
	}
	s.ocspDER = der
	return nil
}

func (s *modernSession) SetWaitForAlertSeconds(n int) error {
	s.waitForAlertSeconds = n
	return nil
}

func (s *modernSession) SetTCPReceiveTimeoutSeconds(n int) error {
	s.tcpReceiveTimeoutSecs = n
	return nil
}

func (s *modernSession) SetSecretOutput(sink KeyLogWriter) error {
	s.keyLogSink = sink
	return nil
}

// SetMessageLogger is accepted for interface completeness only: utls/
// crypto-tls expose no record-boundary hook on this backend (see "No
// per-step hooks" in the package doc), so there is nothing to feed it.
func (s *modernSession) SetMessageLogger(m *logx.MessageLogger) {}

func (s *modernSession) ForceCertificateUsage() error {
	if !s.hasCertificate {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation, Description: "no certificate configured to force"}
	}
	s.forcedCertUsage = true
	return nil
}

func (s *modernSession) OverwriteHelloVersion(v Version) error {
	if s.roleKnown && !s.isClient {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "crypto/tls (used for the modern backend's server role) derives its hello version internally"}
	}
	s.versionMajor, s.versionMinor = v.Major, v.Minor
	return nil
}

func (s *modernSession) OverwriteEllipticCurveGroup(groupID uint16) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "the modern backend never fires this hook (no per-step granularity); present only to satisfy Session"}
}

func (s *modernSession) SendRecord(contentType uint8, payload []byte) error {
	if s.state == StateHandshakeDone {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "neither crypto/tls nor utls exposes an API to emit a non-application-data record over an established connection"}
	}
	if s.rawConn == nil {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation, Description: "session not yet set up"}
	}
	hdr := wire.PlaintextHeader{Type: wire.ContentType(contentType), Version: wire.Version{Major: 3, Minor: 3}, Length: uint16(len(payload))}
	frame := append(hdr.Encode(), payload...)
	if _, err := s.rawConn.Write(frame); err != nil {
		return &errs.TransportError{Kind: errs.TransportIO, Err: err}
	}
	return nil
}

func (s *modernSession) SendHeartbeat(declaredLength uint16, payload []byte) error {
	if s.state == StateHandshakeDone {
		return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
			Description: "neither crypto/tls nor utls exposes an API to emit a non-application-data record over an established connection"}
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

func (s *modernSession) SendApplicationData(payload []byte) error {
	return s.SendApplicationDataConn(payload)
}

func (s *modernSession) SendEarlyData(payload []byte) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "driving utls's 0-RTT early-data channel is not wired; zero-RTT configs negotiate an abbreviated handshake via the shared session cache instead"}
}

func (s *modernSession) SetupSession(ctx context.Context, conn io.ReadWriteCloser, isClient bool, hooks StepHook) error {
	s.rawConn = asNetConn(conn)
	s.isClient, s.roleKnown, s.hooks = isClient, true, hooks
	s.state = StateClientHello

	if isClient {
		return s.setupClient()
	}
	return s.setupServer()
}

func (s *modernSession) setupClient() error {
	cfg := &utls.Config{
		InsecureSkipVerify: !s.verifyPeer,
		ClientSessionCache: sharedClientSessionCache,
	}
	if s.sniSet && s.useSNI {
		cfg.ServerName = s.sniHost
	}
	if len(s.caCertPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(s.caCertPEM) {
			return &errs.ConfigError{Key: "tlsCACertificateFile", Reason: "no certificates found in PEM data"}
		}
		cfg.RootCAs = pool
	}
	if s.keyLogSink != nil {
		cfg.KeyLogWriter = keyLogShim{sink: s.keyLogSink}
	}
	if s.hasCertificate {
		cfg.Certificates = []tls.Certificate{s.cert}
	}

	spec, err := s.buildClientHelloSpec()
	if err != nil {
		return err
	}

	s.uConn = utls.UClient(s.rawConn, cfg, utls.HelloCustom)
	if err := s.uConn.ApplyPreset(spec); err != nil {
		return &errs.HandshakeError{Kind: errs.HandshakeBackendError, Description: "applying ClientHelloSpec failed", Err: err}
	}
	return nil
}

func (s *modernSession) setupServer() error {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,
	}
	if s.hasCertificate {
		cert := s.cert
		if len(s.ocspDER) > 0 {
			cert.OCSPStaple = s.ocspDER
		}
		cfg.Certificates = []tls.Certificate{cert}
		if s.forcedCertUsage {
			cfg.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return &cert, nil }
		}
	}
	if s.verifyPeer {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	if len(s.caCertPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(s.caCertPEM) {
			return &errs.ConfigError{Key: "tlsCACertificateFile", Reason: "no certificates found in PEM data"}
		}
		cfg.ClientCAs = pool
	}
	if s.keyLogSink != nil {
		cfg.KeyLogWriter = keyLogShim{sink: s.keyLogSink}
	}
	s.tlsConn = tls.Server(s.rawConn, cfg)
	return nil
}

func (s *modernSession) PerformHandshake(ctx context.Context) error {
	var version uint16
	if s.uConn != nil {
		if err := s.uConn.HandshakeContext(ctx); err != nil {
			return &errs.HandshakeError{Kind: errs.HandshakeBackendError, Description: "utls handshake failed", Err: err}
		}
		version = s.uConn.ConnectionState().Version
	} else {
		if err := s.tlsConn.HandshakeContext(ctx); err != nil {
			return &errs.HandshakeError{Kind: errs.HandshakeBackendError, Description: "crypto/tls handshake failed", Err: err}
		}
		version = s.tlsConn.ConnectionState().Version
	}
	s.negotiatedVersion = versionFromGo(version)
	s.state = StateHandshakeDone
	return nil
}

func (s *modernSession) Renegotiate(ctx context.Context) error {
	return &errs.HandshakeError{Kind: errs.HandshakeUnsupportedOperation,
		Description: "TLS 1.3 has no renegotiation and utls does not implement it for earlier versions either"}
}

func (s *modernSession) SendApplicationDataConn(payload []byte) error {
	var err error
	if s.uConn != nil {
		_, err = s.uConn.Write(payload)
	} else {
		_, err = s.tlsConn.Write(payload)
	}
	if err != nil {
		return &errs.AppDataError{Reason: "write failed", Err: err}
	}
	return nil
}

func (s *modernSession) ReceiveApplicationData() ([]byte, error) {
	buf := make([]byte, 16384)
	var n int
	var err error
	if s.uConn != nil {
		n, err = s.uConn.Read(buf)
	} else {
		n, err = s.tlsConn.Read(buf)
	}
	if err != nil {
		return nil, &errs.AppDataError{Reason: "read failed", Err: err}
	}
	return buf[:n], nil
}

func (s *modernSession) Close(ctx context.Context) error {
	if s.uConn != nil {
		return s.uConn.Close()
	}
	if s.tlsConn != nil {
		return s.tlsConn.Close()
	}
	return nil
}

func (s *modernSession) CleanSession() error {
	s.uConn = nil
	s.tlsConn = nil
	s.state = StateHelloRequest
	return nil
}

func (s *modernSession) State() HandshakeState      { return s.state }
func (s *modernSession) NegotiatedVersion() Version { return s.negotiatedVersion }
func (s *modernSession) IsClient() bool             { return s.isClient }
func (s *modernSession) PreSharedKey() []byte       { return s.pskBytes }
func (s *modernSession) PSKIdentity() string        { return s.pskIdentity }

// buildClientHelloSpec is the Config-driven generalization of
// tlsfingerprint.buildClientHelloSpecFromProfile: the same extension
// order and defaults, but every field is sourced from this session's
// stored setters instead of a fixed Profile.
func (s *modernSession) buildClientHelloSpec() (*utls.ClientHelloSpec, error) {
	compression := s.compressionMethods
	if len(compression) == 0 {
		compression = []uint8{0}
	}

	extensions, err := s.clientExtensions()
	if err != nil {
		return nil, err
	}

	versMax, versMin := s.versionBounds()

	return &utls.ClientHelloSpec{
		CipherSuites:       s.cipherSuites,
		CompressionMethods: compression,
		Extensions:         extensions,
		TLSVersMax:         versMax,
		TLSVersMin:         versMin,
	}, nil
}

func (s *modernSession) versionBounds() (max, min uint16) {
	if s.versionMajor == 3 && s.versionMinor != 0 {
		v := uint16(s.versionMajor)<<8 | uint16(s.versionMinor)
		return v, v
	}
	return utls.VersionTLS13, utls.VersionTLS10
}

func (s *modernSession) clientExtensions() ([]utls.TLSExtension, error) {
	if len(s.clientHelloExtRaw) > 0 {
		return parseRawExtensions(s.clientHelloExtRaw)
	}

	curves := make([]utls.CurveID, len(s.curves))
	for i, c := range s.curves {
		curves[i] = utls.CurveID(c)
	}

	keyShareGroup := utls.X25519
	if len(curves) > 0 {
		keyShareGroup = curves[0]
	}

	extensions := []utls.TLSExtension{
		&utls.SNIExtension{},
		&utls.SupportedPointsExtension{SupportedPoints: []uint8{0, 1, 2}},
		&utls.SupportedCurvesExtension{Curves: curves},
		&utls.SessionTicketExtension{},
		&utls.ALPNExtension{AlpnProtocols: []string{"http/1.1"}},
	}
	if s.etmEnabled {
		extensions = append(extensions, &utls.GenericExtension{Id: 22})
	}
	if s.emsEnabled {
		extensions = append(extensions, &utls.ExtendedMasterSecretExtension{})
	}
	extensions = append(extensions,
		&utls.SignatureAlgorithmsExtension{SupportedSignatureAlgorithms: s.signatureSchemes},
		&utls.SupportedVersionsExtension{Versions: []uint16{utls.VersionTLS13, utls.VersionTLS12}},
		&utls.PSKKeyExchangeModesExtension{Modes: []uint8{utls.PskModeDHE}},
		&utls.KeyShareExtension{KeyShares: []utls.KeyShare{{Group: keyShareGroup}}},
	)
	return extensions, nil
}

// parseRawExtensions decodes a raw TLS extensions block (RFC 8446 §4.2:
// a sequence of (type uint16, length uint16, data) tuples, no overall
// length prefix) into the only externally constructible utls.TLSExtension
// implementation, GenericExtension, one per entry. This is how
// manipulateClientHelloExtensions reaches the wire on the modern backend.
// The ServerHello block stored by SetServerHelloExtensionsRaw is never
// applied: the server role runs on crypto/tls, which builds its own
// ServerHello extensions. utls.TLSExtension's remaining methods
// are unexported, so a custom type cannot implement it, but replaying
// the caller's raw bytes through GenericExtension per extension preserves
// the exact type/length/value triples they asked for.
func parseRawExtensions(raw []byte) ([]utls.TLSExtension, error) {
	var out []utls.TLSExtension
	pos := 0
	for pos < len(raw) {
		if pos+4 > len(raw) {
			return nil, fmt.Errorf("tlssession: truncated extension header at byte %d", pos)
		}
		id := binary.BigEndian.Uint16(raw[pos : pos+2])
		length := binary.BigEndian.Uint16(raw[pos+2 : pos+4])
		pos += 4
		if pos+int(length) > len(raw) {
			return nil, fmt.Errorf("tlssession: extension %d declares length %d past end of block", id, length)
		}
		data := append([]byte(nil), raw[pos:pos+int(length)]...)
		out = append(out, &utls.GenericExtension{Id: id, Data: data})
		pos += int(length)
	}
	return out, nil
}

