package manipulation

import (
	"context"
	"io"
	"testing"

	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

// fakeSession is a minimal tlssession.Session stand-in that records which
// methods were called with what arguments, for asserting hook behavior
// without a real TLS backend.
type fakeSession struct {
	isClient bool
	state    tlssession.HandshakeState

	forcedCertificateUsage bool
	compressionMethods     []byte
	clientHelloExtRaw      []byte
	serverHelloExtRaw      []byte
	overwrittenVersion     tlssession.Version
	overwrittenCurveGroup  uint16
	renegotiated           bool
	sentAppData            [][]byte
	sentRecords            []struct {
		contentType uint8
		payload     []byte
	}
	sentHeartbeats []struct {
		declaredLength uint16
		payload        []byte
	}
}

func (f *fakeSession) SetCACertificate([]byte) error                       { return nil }
func (f *fakeSession) SetCertificate([]byte, []byte) error                 { return nil }
func (f *fakeSession) SetVersion(tlssession.Version) error                 { return nil }
func (f *fakeSession) SetCipherSuites([][2]uint8) error                    { return nil }
func (f *fakeSession) SetServerDHParams(tlssession.DHParams) error         { return nil }
func (f *fakeSession) SetSupportedGroups([]uint16) error                   { return nil }
func (f *fakeSession) SetSignatureSchemes([][2]uint8) error                { return nil }
func (f *fakeSession) SetSignatureAlgorithms([][2]uint8) error             { return nil }
func (f *fakeSession) SetUseSNI(bool, string) error                        { return nil }
func (f *fakeSession) SetVerifyPeer(bool) error                            { return nil }
func (f *fakeSession) SetExtensionEncryptThenMAC(bool) error               { return nil }
func (f *fakeSession) SetExtensionExtendedMasterSecret(bool) error         { return nil }
func (f *fakeSession) SetPreSharedKey([]byte, string, string) error        { return nil }
func (f *fakeSession) SetHelloCompressionMethods(m []byte) error {
	f.compressionMethods = m
	return nil
}
func (f *fakeSession) SetClientHelloExtensionsRaw(raw []byte) error {
	f.clientHelloExtRaw = raw
	return nil
}
func (f *fakeSession) SetServerHelloExtensionsRaw(raw []byte) error {
	f.serverHelloExtRaw = raw
	return nil
}
func (f *fakeSession) SetEncryptedExtensionsTLS13Raw([]byte) error { return nil }
func (f *fakeSession) SetHandshakeType(tlssession.HandshakeType) error { return nil }
func (f *fakeSession) SetSessionCache(string) error                    { return nil }
func (f *fakeSession) SetEarlyData([]byte) error                       { return nil }
func (f *fakeSession) SetOCSPResponderFile(string) error                { return nil }
func (f *fakeSession) SetWaitForAlertSeconds(int) error                 { return nil }
func (f *fakeSession) SetTCPReceiveTimeoutSeconds(int) error            { return nil }
func (f *fakeSession) SetSecretOutput(tlssession.KeyLogWriter) error    { return nil }
func (f *fakeSession) SetMessageLogger(*logx.MessageLogger)            {}

func (f *fakeSession) ForceCertificateUsage() error {
	f.forcedCertificateUsage = true
	return nil
}
func (f *fakeSession) OverwriteHelloVersion(v tlssession.Version) error {
	f.overwrittenVersion = v
	return nil
}
func (f *fakeSession) OverwriteEllipticCurveGroup(id uint16) error {
	f.overwrittenCurveGroup = id
	return nil
}
func (f *fakeSession) SendRecord(contentType uint8, payload []byte) error {
	f.sentRecords = append(f.sentRecords, struct {
		contentType uint8
		payload     []byte
	}{contentType, payload})
	return nil
}
func (f *fakeSession) SendHeartbeat(declaredLength uint16, payload []byte) error {
	f.sentHeartbeats = append(f.sentHeartbeats, struct {
		declaredLength uint16
		payload        []byte
	}{declaredLength, payload})
	return nil
}
func (f *fakeSession) SendApplicationData(payload []byte) error {
	f.sentAppData = append(f.sentAppData, payload)
	return nil
}
func (f *fakeSession) SendEarlyData([]byte) error { return nil }

func (f *fakeSession) SetupSession(context.Context, io.ReadWriteCloser, bool, tlssession.StepHook) error {
	return nil
}
func (f *fakeSession) PerformHandshake(context.Context) error { return nil }
func (f *fakeSession) Renegotiate(context.Context) error {
	f.renegotiated = true
	return nil
}
func (f *fakeSession) SendApplicationDataConn([]byte) error       { return nil }
func (f *fakeSession) ReceiveApplicationData() ([]byte, error)    { return nil, nil }
func (f *fakeSession) Close(context.Context) error                { return nil }
func (f *fakeSession) CleanSession() error                        { return nil }

func (f *fakeSession) State() tlssession.HandshakeState    { return f.state }
func (f *fakeSession) NegotiatedVersion() tlssession.Version { return tlssession.Version{} }
func (f *fakeSession) IsClient() bool                       { return f.isClient }
func (f *fakeSession) PreSharedKey() []byte                  { return nil }
func (f *fakeSession) PSKIdentity() string                   { return "" }

var _ tlssession.Session = (*fakeSession)(nil)

type stubLogger struct{ lines []string }

func (s *stubLogger) Log(origin, message string) {
	s.lines = append(s.lines, origin+": "+message)
}

func TestForceCertificateUsageOnlyOnServer(t *testing.T) {
	hook := NewForceCertificateUsage(&stubLogger{})

	client := &fakeSession{isClient: true}
	if err := hook.ExecutePreHandshake(context.Background(), client); err != nil {
		t.Fatal(err)
	}
	if client.forcedCertificateUsage {
		t.Fatal("must not force certificate usage on the client side")
	}

	server := &fakeSession{isClient: false}
	if err := hook.ExecutePreHandshake(context.Background(), server); err != nil {
		t.Fatal(err)
	}
	if !server.forcedCertificateUsage {
		t.Fatal("expected certificate usage to be forced on the server side")
	}
}

func TestManipulateClientHelloExtensionsOnlyOnClient(t *testing.T) {
	raw := []byte{0x00, 0x0d, 0x00, 0x02, 0x01, 0x01}
	hook := NewManipulateClientHelloExtensions(raw, nil)

	server := &fakeSession{isClient: false}
	if err := hook.ExecutePreHandshake(context.Background(), server); err != nil {
		t.Fatal(err)
	}
	if server.clientHelloExtRaw != nil {
		t.Fatal("must not touch ClientHello extensions on the server side")
	}

	client := &fakeSession{isClient: true}
	if err := hook.ExecutePreHandshake(context.Background(), client); err != nil {
		t.Fatal(err)
	}
	if string(client.clientHelloExtRaw) != string(raw) {
		t.Fatalf("clientHelloExtRaw = % X, want % X", client.clientHelloExtRaw, raw)
	}
}

func TestManipulateServerHelloExtensionsOnlyOnServer(t *testing.T) {
	raw := []byte{0xff, 0x01, 0x00, 0x01, 0x00}
	hook := NewManipulateServerHelloExtensions(raw, nil)

	client := &fakeSession{isClient: true}
	if err := hook.ExecutePreHandshake(context.Background(), client); err != nil {
		t.Fatal(err)
	}
	if client.serverHelloExtRaw != nil {
		t.Fatal("must not touch ServerHello extensions on the client side")
	}

	server := &fakeSession{isClient: false}
	if err := hook.ExecutePreHandshake(context.Background(), server); err != nil {
		t.Fatal(err)
	}
	if string(server.serverHelloExtRaw) != string(raw) {
		t.Fatalf("serverHelloExtRaw = % X, want % X", server.serverHelloExtRaw, raw)
	}
}

func TestManipulateHelloVersionAppliesRegardlessOfRole(t *testing.T) {
	v := tlssession.Version{Major: 3, Minor: 1}
	hook := NewManipulateHelloVersion(v, nil)

	for _, isClient := range []bool{true, false} {
		s := &fakeSession{isClient: isClient}
		if err := hook.ExecutePreHandshake(context.Background(), s); err != nil {
			t.Fatal(err)
		}
		if s.overwrittenVersion != v {
			t.Fatalf("overwrittenVersion = %+v, want %+v", s.overwrittenVersion, v)
		}
	}
}

func TestManipulateEllipticCurveGroupFiresOnlyAtServerKeyExchange(t *testing.T) {
	hook := NewManipulateEllipticCurveGroup(29, nil) // x25519

	tooEarly := &fakeSession{isClient: false, state: tlssession.StateServerHello}
	if err := hook.ExecutePreStep(context.Background(), tooEarly); err != nil {
		t.Fatal(err)
	}
	if tooEarly.overwrittenCurveGroup != 0 {
		t.Fatal("must not fire before ServerKeyExchange")
	}

	client := &fakeSession{isClient: true, state: tlssession.StateServerKeyExchange}
	if err := hook.ExecutePreStep(context.Background(), client); err != nil {
		t.Fatal(err)
	}
	if client.overwrittenCurveGroup != 0 {
		t.Fatal("must not fire on the client side")
	}

	server := &fakeSession{isClient: false, state: tlssession.StateServerKeyExchange}
	if err := hook.ExecutePreStep(context.Background(), server); err != nil {
		t.Fatal(err)
	}
	if server.overwrittenCurveGroup != 29 {
		t.Fatalf("overwrittenCurveGroup = %d, want 29", server.overwrittenCurveGroup)
	}
}

func TestRenegotiateFiresPostHandshakeOnly(t *testing.T) {
	hook := NewRenegotiate(nil)
	s := &fakeSession{}
	if err := hook.ExecutePreHandshake(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if s.renegotiated {
		t.Fatal("must not renegotiate before the handshake finishes")
	}
	if err := hook.ExecutePostHandshake(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if !s.renegotiated {
		t.Fatal("expected renegotiation after handshake completion")
	}
}

func TestSendApplicationDataRepeatsConfiguredCount(t *testing.T) {
	payload := []byte("ping")
	hook := NewSendApplicationData(3, payload, nil)
	s := &fakeSession{}
	if err := hook.ExecutePostHandshake(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if len(s.sentAppData) != 3 {
		t.Fatalf("sent %d messages, want 3", len(s.sentAppData))
	}
	for _, got := range s.sentAppData {
		if string(got) != string(payload) {
			t.Fatalf("sent %q, want %q", got, payload)
		}
	}
}

func TestSendHeartbeatRequestBeforeAndAfterHandshake(t *testing.T) {
	payload := []byte{0xDE, 0xAD}

	before := NewSendHeartbeatRequest(HeartbeatBeforeHandshake, uint16(len(payload)), payload, nil)
	s := &fakeSession{}
	if err := before.ExecutePostHandshake(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if len(s.sentHeartbeats) != 0 {
		t.Fatal("beforeHandshake heartbeat must not fire on the post-handshake hook")
	}
	if err := before.ExecutePreHandshake(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if len(s.sentHeartbeats) != 1 {
		t.Fatalf("sentHeartbeats = %d, want 1", len(s.sentHeartbeats))
	}

	after := NewSendHeartbeatRequest(HeartbeatAfterHandshake, uint16(len(payload)), payload, nil)
	s2 := &fakeSession{}
	if err := after.ExecutePreHandshake(context.Background(), s2); err != nil {
		t.Fatal(err)
	}
	if len(s2.sentHeartbeats) != 0 {
		t.Fatal("afterHandshake heartbeat must not fire on the pre-handshake hook")
	}
	if err := after.ExecutePostHandshake(context.Background(), s2); err != nil {
		t.Fatal(err)
	}
	if len(s2.sentHeartbeats) != 1 {
		t.Fatalf("sentHeartbeats = %d, want 1", len(s2.sentHeartbeats))
	}
}

func TestSendHeartbeatRequestDeclaredLengthIndependentOfPayload(t *testing.T) {
	payload := []byte{0xAA}
	hook := NewSendHeartbeatRequest(HeartbeatBeforeHandshake, 200, payload, nil)
	s := &fakeSession{}
	if err := hook.ExecutePreHandshake(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if len(s.sentHeartbeats) != 1 {
		t.Fatalf("sentHeartbeats = %d, want 1", len(s.sentHeartbeats))
	}
	got := s.sentHeartbeats[0]
	if got.declaredLength != 200 {
		t.Fatalf("declaredLength = %d, want 200 (independent of the 1-byte payload)", got.declaredLength)
	}
	if len(got.payload) != 1 {
		t.Fatalf("payload = % X, want the unmodified 1-byte payload", got.payload)
	}
}

func TestChainRunsHooksInOrder(t *testing.T) {
	var order []string
	mk := func(name string) Hook {
		return &orderTrackingHook{base: base{name: name}, order: &order}
	}
	chain := &Chain{Hooks: []Hook{mk("first"), mk("second"), mk("third")}}
	if err := chain.PreHandshake(context.Background(), &fakeSession{}); err != nil {
		t.Fatal(err)
	}
	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

type orderTrackingHook struct {
	base
	order *[]string
}

func (h *orderTrackingHook) ExecutePreHandshake(ctx context.Context, s tlssession.Session) error {
	*h.order = append(*h.order, h.name)
	return nil
}
