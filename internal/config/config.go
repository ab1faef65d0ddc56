// Package config implements the harness's configuration model (spec
// component C2) and the strict key/value parser that produces it (C3),
// grounded on internal/config/config.go's nested-struct organization and
// on original_source/tlstesttool/tooling/src/configuration/Configuration.{h,cpp}
// and ConfigurationParser.cpp for the field set and validation rules.
package config

import (
	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/starttls"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

// Mode selects whether the harness drives the handshake as the TLS client
// or accepts it as the TLS server.
type Mode int

const (
	ModeClient Mode = iota
	ModeServer
)

func (m Mode) String() string {
	if m == ModeServer {
		return "server"
	}
	return "client"
}

// Backend selects which Session implementation (internal/tlssession)
// satisfies the configured handshake.
type Backend int

const (
	BackendModern Backend = iota
	BackendLegacy
)

func (b Backend) String() string {
	if b == BackendLegacy {
		return "legacy"
	}
	return "modern"
}

// Timeouts groups the four duration knobs spec.md §3 lists individually.
// All are seconds; zero means "no timeout" where the driver allows it.
type Timeouts struct {
	ListenS         int
	WaitBeforeClose int
	TCPReceiveS     int
	SessionLifetime int
}

// LogRotation is an ambient addition (SPEC_FULL.md §6): it has no
// corresponding parser key; it is set either by the TLSTESTTOOL_*
// environment overlay (ApplyEnvOverlay) or by an embedder directly on a
// loaded Config.
type LogRotation struct {
	Enabled    bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config is the fully validated, immutable-after-load configuration that
// drives the handshake driver, the session, and the manipulation chain.
type Config struct {
	Mode    Mode
	Backend Backend

	Host string
	Port uint16

	Timeouts Timeouts

	LogLevel       logx.Level
	LogFilterRegex string

	CACertificateFile string
	CertificateFile   string
	PrivateKeyFile    string

	TLSVersion   tlssession.Version
	CipherSuites [][2]uint8

	UseSNI               bool
	VerifyPeer           bool
	EncryptThenMAC       bool
	ExtendedMasterSecret bool

	ServerDHParams tlssession.DHParams // zero value means "not configured"

	SupportedGroups     []uint16
	SignatureAlgorithms  [][2]uint8
	SignatureSchemes     [][2]uint8

	SecretFile string

	PSK             []byte
	PSKIdentity     string
	PSKIdentityHint string

	HandshakeType tlssession.HandshakeType
	SessionCache  string
	EarlyData     []byte

	OCSPResponseFile string

	ClientHelloExtensionRaw []byte
	ServerHelloExtensionRaw []byte
	EncryptedExtensionsRaw  []byte

	StartTLSProtocol starttls.Protocol

	// manipulations holds the parsed manipulation descriptors in
	// configuration order. Hooks cannot be constructed at parse time
	// because they take a Logger and the structured logger is only built
	// once LogLevel/LogFilterRegex have themselves been validated; call
	// BuildManipulationChain once a Logger exists.
	manipulations []manipulationSpec

	// Ambient additions (SPEC_FULL.md §6), never required by spec.md §8.
	LogRotation LogRotation
	ServiceName string
}

// Default returns a Config with every default spec.md §3 names: backend
// modern, TLS 1.2 ((3,3)), SNI/verify-peer/EMS on, plus log level HIGH
// and service name "tlstesttool"; everything else zero.
func Default() *Config {
	return &Config{
		Backend:              BackendModern,
		LogLevel:             logx.LevelHigh,
		TLSVersion:           tlssession.Version{Major: 3, Minor: 3},
		UseSNI:               true,
		VerifyPeer:           true,
		ExtendedMasterSecret: true,
		ServiceName:          "tlstesttool",
	}
}
