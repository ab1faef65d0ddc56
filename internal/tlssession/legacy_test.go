package tlssession

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/BSI-Bund/TaSK/internal/errs"
)

// selfSignedTestCert generates a throwaway ECDSA certificate/key pair in
// memory so tests never depend on checked-in PEM material.
func selfSignedTestCert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestLegacySessionSetVersionPinsMinMax(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	if err := s.SetVersion(Version{Major: 3, Minor: 3}); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	if s.tlsConfig.MinVersion != tls.VersionTLS12 || s.tlsConfig.MaxVersion != tls.VersionTLS12 {
		t.Fatalf("MinVersion/MaxVersion = %d/%d, want both %d", s.tlsConfig.MinVersion, s.tlsConfig.MaxVersion, tls.VersionTLS12)
	}
}

func TestLegacySessionSetVersionRejectsTLS13(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	err := s.SetVersion(Version{Major: 3, Minor: 4})
	var hsErr *errs.HandshakeError
	if !errors.As(err, &hsErr) || hsErr.Kind != errs.HandshakeUnsupportedOperation {
		t.Fatalf("SetVersion(TLS1.3) = %v, want HandshakeUnsupportedOperation", err)
	}
}

func TestLegacySessionSetCipherSuitesPacksBytes(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	if err := s.SetCipherSuites([][2]uint8{{0xc0, 0x2f}, {0x00, 0x35}}); err != nil {
		t.Fatalf("SetCipherSuites: %v", err)
	}
	want := []uint16{0xc02f, 0x0035}
	if len(s.tlsConfig.CipherSuites) != len(want) || s.tlsConfig.CipherSuites[0] != want[0] || s.tlsConfig.CipherSuites[1] != want[1] {
		t.Fatalf("CipherSuites = %x, want %x", s.tlsConfig.CipherSuites, want)
	}
}

func TestLegacySessionSetSupportedGroupsFiltersUnknown(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	if err := s.SetSupportedGroups([]uint16{29, 23}); err != nil {
		t.Fatalf("SetSupportedGroups: %v", err)
	}
	if len(s.tlsConfig.CurvePreferences) != 2 {
		t.Fatalf("CurvePreferences = %v, want 2 entries", s.tlsConfig.CurvePreferences)
	}
}

func TestLegacySessionSetSupportedGroupsAllUnknownIsUnsupported(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	err := s.SetSupportedGroups([]uint16{0xffff})
	var hsErr *errs.HandshakeError
	if !errors.As(err, &hsErr) || hsErr.Kind != errs.HandshakeUnsupportedOperation {
		t.Fatalf("SetSupportedGroups(unknown) = %v, want HandshakeUnsupportedOperation", err)
	}
}

// rawWireSetters lists every manipulation setter crypto/tls gives no public
// hook to forge, per legacy.go's file-level doc comment. Each must reject
// at invocation time rather than silently no-op (spec.md §4.3).
func TestLegacySessionRawWireSettersAreUnsupported(t *testing.T) {
	cases := []struct {
		name string
		call func(s *legacySession) error
	}{
		{"SetServerDHParams", func(s *legacySession) error { return s.SetServerDHParams(DHParams{Name: "modp14"}) }},
		{"SetSignatureSchemes", func(s *legacySession) error { return s.SetSignatureSchemes([][2]uint8{{4, 3}}) }},
		{"SetExtensionEncryptThenMAC", func(s *legacySession) error { return s.SetExtensionEncryptThenMAC(true) }},
		{"SetHelloCompressionMethods", func(s *legacySession) error { return s.SetHelloCompressionMethods([]byte{1}) }},
		{"SetClientHelloExtensionsRaw", func(s *legacySession) error { return s.SetClientHelloExtensionsRaw([]byte{0, 0, 0, 0}) }},
		{"SetServerHelloExtensionsRaw", func(s *legacySession) error { return s.SetServerHelloExtensionsRaw([]byte{0, 0, 0, 0}) }},
		{"SetEncryptedExtensionsTLS13Raw", func(s *legacySession) error { return s.SetEncryptedExtensionsTLS13Raw([]byte{0, 0, 0, 0}) }},
		{"SetEarlyData", func(s *legacySession) error { return s.SetEarlyData([]byte("x")) }},
		{"OverwriteHelloVersion", func(s *legacySession) error { return s.OverwriteHelloVersion(Version{3, 4}) }},
		{"OverwriteEllipticCurveGroup", func(s *legacySession) error { return s.OverwriteEllipticCurveGroup(29) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewLegacySession().(*legacySession)
			err := tc.call(s)
			var hsErr *errs.HandshakeError
			if !errors.As(err, &hsErr) || hsErr.Kind != errs.HandshakeUnsupportedOperation {
				t.Fatalf("%s = %v, want HandshakeUnsupportedOperation", tc.name, err)
			}
		})
	}
}

func TestLegacySessionSetPreSharedKeyRecordsButRejects(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	err := s.SetPreSharedKey([]byte{1, 2, 3}, "client-id", "hint")
	var hsErr *errs.HandshakeError
	if !errors.As(err, &hsErr) || hsErr.Kind != errs.HandshakeUnsupportedOperation {
		t.Fatalf("SetPreSharedKey = %v, want HandshakeUnsupportedOperation", err)
	}
	if s.PSKIdentity() != "client-id" {
		t.Fatalf("PSKIdentity() = %q, want recorded for observability", s.PSKIdentity())
	}
	if string(s.PreSharedKey()) != "\x01\x02\x03" {
		t.Fatalf("PreSharedKey() did not record the key bytes")
	}
}

func TestLegacySessionSetUseSNIDisabledForcesSkipVerify(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	if err := s.SetUseSNI(false, ""); err != nil {
		t.Fatalf("SetUseSNI: %v", err)
	}
	if !s.tlsConfig.InsecureSkipVerify {
		t.Fatal("disabling SNI should force InsecureSkipVerify since crypto/tls needs ServerName or the flag to verify")
	}
}

func TestLegacySessionForceCertificateUsageRequiresCertificate(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	err := s.ForceCertificateUsage()
	var hsErr *errs.HandshakeError
	if !errors.As(err, &hsErr) || hsErr.Kind != errs.HandshakeUnsupportedOperation {
		t.Fatalf("ForceCertificateUsage with no cert = %v, want HandshakeUnsupportedOperation", err)
	}
}

func TestLegacySessionForceCertificateUsageInstallsGetCertificate(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	certPEM, keyPEM := selfSignedTestCert(t)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("parsing generated keypair: %v", err)
	}
	s.cert = cert
	s.hasCertificate = true

	if err := s.ForceCertificateUsage(); err != nil {
		t.Fatalf("ForceCertificateUsage: %v", err)
	}
	if s.tlsConfig.GetCertificate == nil {
		t.Fatal("expected GetCertificate override to be installed")
	}
	got, err := s.tlsConfig.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil || got == nil {
		t.Fatalf("GetCertificate(...) = %v, %v", got, err)
	}
}

func TestLegacySessionSendRecordBeforeSetupIsUnsupported(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	err := s.SendRecord(24, []byte("payload"))
	var hsErr *errs.HandshakeError
	if !errors.As(err, &hsErr) || hsErr.Kind != errs.HandshakeUnsupportedOperation {
		t.Fatalf("SendRecord before setup = %v, want HandshakeUnsupportedOperation", err)
	}
}

func TestLegacySessionSendHeartbeatUsesDeclaredLength(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := NewLegacySession().(*legacySession)
	s.rawConn = client
	s.state = StateClientHello

	payload := []byte("heartbeat-payload")
	done := make(chan error, 1)
	go func() { done <- s.SendHeartbeat(200, payload) }()

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	// net.Pipe has no buffering: read the whole record so the writer's
	// Write (and with it SendHeartbeat) can return.
	buf := make([]byte, 5+3+len(payload)+16)
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatalf("reading heartbeat record: %v", err)
	}
	if buf[0] != 24 || buf[1] != 3 || buf[2] != 3 {
		t.Fatalf("record header = %x, want content type 24, version (3,3)", buf[:3])
	}
	recordLength := uint16(buf[3])<<8 | uint16(buf[4])
	wantRecordLength := uint16(3 + len(payload) + 16) // HeartbeatHeaderLen + payload + padding
	if recordLength != wantRecordLength {
		t.Fatalf("record length = %d, want %d (computed from the actual payload, not the declared length)", recordLength, wantRecordLength)
	}
	declaredLength := uint16(buf[6])<<8 | uint16(buf[7])
	if declaredLength != 200 {
		t.Fatalf("heartbeat payload_length = %d, want 200 (the declared length, independent of the %d-byte payload)", declaredLength, len(payload))
	}
	if err := <-done; err != nil {
		t.Fatalf("SendHeartbeat: %v", err)
	}
}

func TestLegacySessionRenegotiateIsUnsupported(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	err := s.Renegotiate(context.Background())
	var hsErr *errs.HandshakeError
	if !errors.As(err, &hsErr) || hsErr.Kind != errs.HandshakeUnsupportedOperation {
		t.Fatalf("Renegotiate = %v, want HandshakeUnsupportedOperation", err)
	}
}

func TestVersionFromGo(t *testing.T) {
	cases := map[uint16]Version{
		tls.VersionTLS10: {3, 1},
		tls.VersionTLS11: {3, 2},
		tls.VersionTLS12: {3, 3},
		tls.VersionTLS13: {3, 4},
	}
	for goVersion, want := range cases {
		if got := versionFromGo(goVersion); got != want {
			t.Errorf("versionFromGo(%d) = %+v, want %+v", goVersion, got, want)
		}
	}
}

func TestLegacySessionCleanSessionResetsState(t *testing.T) {
	s := NewLegacySession().(*legacySession)
	s.state = StateHandshakeDone
	s.tlsConn = &tls.Conn{}
	if err := s.CleanSession(); err != nil {
		t.Fatalf("CleanSession: %v", err)
	}
	if s.State() != StateHelloRequest {
		t.Fatalf("State() = %v, want StateHelloRequest", s.State())
	}
	if s.tlsConn != nil {
		t.Fatal("expected tlsConn to be cleared")
	}
}
