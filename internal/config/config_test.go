package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.conf")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadMinimalClientConfig(t *testing.T) {
	path := writeConfigFile(t, `
mode=client
host=dut.example.com
port=4433
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeClient {
		t.Fatalf("Mode = %v, want client", cfg.Mode)
	}
	if cfg.Host != "dut.example.com" {
		t.Fatalf("Host = %q", cfg.Host)
	}
	if cfg.Port != 4433 {
		t.Fatalf("Port = %d", cfg.Port)
	}
	if cfg.Backend != BackendModern {
		t.Fatalf("Backend = %v, want modern (default)", cfg.Backend)
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfigFile(t, "mode=client\nhost=x\nport=443\nbogusKey=1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unrecognised key")
	}
}

func TestLoadRejectsMissingPort(t *testing.T) {
	path := writeConfigFile(t, "mode=server\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a missing port")
	}
}

func TestLoadRejectsClientWithoutHost(t *testing.T) {
	path := writeConfigFile(t, "mode=client\nport=443\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a client without a host")
	}
}

func TestTlsLibraryIsAppliedBeforeExtensionKeys(t *testing.T) {
	// manipulateClientHelloExtensions appears before tlsLibrary in file
	// order; the two-pass parser must still resolve backend first so the
	// raw bytes land in Config.ClientHelloExtensionRaw (modern), not in a
	// hook (legacy).
	path := writeConfigFile(t, `
manipulateClientHelloExtensions=00:0a
tlsLibrary=TLS_ATTACKER
mode=server
port=443
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendModern {
		t.Fatalf("Backend = %v, want modern", cfg.Backend)
	}
	if string(cfg.ClientHelloExtensionRaw) != "\x00\x0a" {
		t.Fatalf("ClientHelloExtensionRaw = %x", cfg.ClientHelloExtensionRaw)
	}
}

func TestLegacyBackendRegistersHookInsteadOfRawField(t *testing.T) {
	path := writeConfigFile(t, `
tlsLibrary=OpenSSL
manipulateClientHelloExtensions=00:0a
mode=server
port=443
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendLegacy {
		t.Fatalf("Backend = %v, want legacy", cfg.Backend)
	}
	if cfg.ClientHelloExtensionRaw != nil {
		t.Fatalf("ClientHelloExtensionRaw should stay empty on legacy backend")
	}
	if len(cfg.manipulations) != 1 {
		t.Fatalf("expected one manipulation hook, got %d", len(cfg.manipulations))
	}
}

func TestManipulateEncryptedExtensionsRejectedOnLegacy(t *testing.T) {
	path := writeConfigFile(t, `
tlsLibrary=OpenSSL
manipulateEncryptedExtensionsTls13=00
mode=server
port=443
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error: encrypted extensions manipulation is modern-only")
	}
}

func TestRenegotiateRejectedOnModernBackend(t *testing.T) {
	path := writeConfigFile(t, `
tlsLibrary=TLS_ATTACKER
renegotiate=true
mode=client
host=x
port=443
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error: renegotiate is unsupported on the modern backend")
	}
}

func TestLoadParsesFullManipulationCatalogue(t *testing.T) {
	path := writeConfigFile(t, `
tlsLibrary=OpenSSL
mode=server
port=443
forceCertificateUsage=true
manipulateServerHelloCompressionMethods=00
manipulateHelloVersion=(0x03,0x01)
manipulateEllipticCurveGroup=23
manipulateSendTlsApplicationData=3,aabb
manipulateSendHeartbeatRequest=afterHandshake,2,aabb
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.manipulations) != 6 {
		t.Fatalf("expected 6 manipulations, got %d", len(cfg.manipulations))
	}
}

func TestResumptionRequiresModernBackend(t *testing.T) {
	path := writeConfigFile(t, `
tlsLibrary=OpenSSL
mode=client
host=x
port=443
handshakeType=zeroRTT
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error: zero-RTT requires backend=modern")
	}
}

func TestLoadResolvesCipherSuitesAndGroups(t *testing.T) {
	path := writeConfigFile(t, `
mode=client
host=x
port=443
tlsCipherSuites=(0x00,0x9f),(0xc0,0x2f)
tlsSupportedGroups=secp256r1,P-256,x25519
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.CipherSuites) != 2 || cfg.CipherSuites[0] != [2]uint8{0x00, 0x9f} {
		t.Fatalf("CipherSuites = %v", cfg.CipherSuites)
	}
	want := []uint16{23, 23, 29}
	if len(cfg.SupportedGroups) != len(want) {
		t.Fatalf("SupportedGroups = %v", cfg.SupportedGroups)
	}
	for i, g := range want {
		if cfg.SupportedGroups[i] != g {
			t.Fatalf("SupportedGroups[%d] = %d, want %d", i, cfg.SupportedGroups[i], g)
		}
	}
}

func TestLoadRejectsEmptyCipherSuiteList(t *testing.T) {
	path := writeConfigFile(t, "mode=client\nhost=x\nport=443\ntlsCipherSuites=\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an empty cipher suite list")
	}
}

func TestDefaultTLSVersionIsTLS12(t *testing.T) {
	path := writeConfigFile(t, "mode=client\nhost=x\nport=443\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TLSVersion != (tlssession.Version{Major: 3, Minor: 3}) {
		t.Fatalf("TLSVersion = %+v", cfg.TLSVersion)
	}
	if cfg.LogLevel != logx.LevelHigh {
		t.Fatalf("LogLevel = %v, want high default", cfg.LogLevel)
	}
}
