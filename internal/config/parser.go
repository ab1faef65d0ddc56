package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/BSI-Bund/TaSK/internal/errs"
	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/manipulation"
	"github.com/BSI-Bund/TaSK/internal/starttls"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

// kv is one "key=value" line surviving comment/blank-line stripping.
type kv struct {
	key   string
	value string
	line  int
}

// Load reads the strict key=value configuration file at path and returns
// a fully validated Config, grounded on
// ConfigurationParser.cpp/ManipulationsParser.cpp's two-pass strategy
// (SPEC_FULL.md §5.1): tlsLibrary is located and applied before any other
// key, because manipulateClientHelloExtensions/manipulateServerHelloExtensions/
// manipulateEncryptedExtensionsTls13 branch on backend.
func Load(path string) (*Config, error) {
	pairs, err := readKeyValues(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	for _, p := range pairs {
		if p.key == "tlsLibrary" {
			b, err := parseBackend(p.value)
			if err != nil {
				return nil, err
			}
			cfg.Backend = b
		}
	}

	for _, p := range pairs {
		if p.key == "tlsLibrary" {
			continue
		}
		if err := applyKey(cfg, p); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readKeyValues(path string) ([]kv, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.ConfigError{Key: "--configFile", Reason: err.Error()}
	}
	defer f.Close()

	var out []kv
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, &errs.ConfigError{Key: fmt.Sprintf("line %d", lineNo), Reason: "expected key=value"}
		}
		out = append(out, kv{
			key:   strings.TrimSpace(line[:idx]),
			value: strings.TrimSpace(line[idx+1:]),
			line:  lineNo,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &errs.ConfigError{Key: "--configFile", Reason: err.Error()}
	}
	return out, nil
}

func parseBackend(value string) (Backend, error) {
	// TLS_ATTACKER maps to the modern backend because it is the only library in the original four-way choice that offers the
	// exact-ClientHello-construction freedom the "modern" backend models;
	// the three classic stacks all map to "legacy".
	switch value {
	case "TLS_ATTACKER":
		return BackendModern, nil
	case "mbed TLS", "OpenSSL", "GnuTLS":
		return BackendLegacy, nil
	default:
		return 0, &errs.ConfigError{Key: "tlsLibrary", Reason: "must be one of: mbed TLS, OpenSSL, GnuTLS, TLS_ATTACKER"}
	}
}

func applyKey(cfg *Config, p kv) error {
	switch {
	case p.key == "caCertificateFile":
		cfg.CACertificateFile = p.value
	case p.key == "certificateFile":
		cfg.CertificateFile = p.value
	case p.key == "privateKeyFile":
		cfg.PrivateKeyFile = p.value
	case p.key == "earlyData":
		b, err := parseHexByteString(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.EarlyData = b
	case p.key == "psk":
		b, err := parseHexByteString(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.PSK = b
	case p.key == "handshakeType":
		kind, err := parseHandshakeType(p.value)
		if err != nil {
			return err
		}
		cfg.HandshakeType = kind
	case p.key == "host":
		cfg.Host = p.value
	case p.key == "listenTimeout":
		n, err := parseIntField(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.Timeouts.ListenS = n
	case p.key == "port":
		n, err := parseIntField(p.key, p.value)
		if err != nil {
			return err
		}
		if n <= 0 || n > 65535 {
			return &errs.ConfigError{Key: p.key, Reason: "must be in 1..65535"}
		}
		cfg.Port = uint16(n)
	case p.key == "receiveTimeout":
		n, err := parseIntField(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.Timeouts.TCPReceiveS = n
	case p.key == "sessionLifetime":
		n, err := parseIntField(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.Timeouts.SessionLifetime = n
	case p.key == "waitBeforeClose":
		n, err := parseIntField(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.Timeouts.WaitBeforeClose = n
	case p.key == "logFilterRegEx":
		if _, err := regexp.Compile(p.value); err != nil {
			return &errs.ConfigError{Key: p.key, Reason: "does not compile: " + err.Error()}
		}
		cfg.LogFilterRegex = p.value
	case p.key == "logLevel":
		lvl, err := logx.ParseLevel(p.value)
		if err != nil {
			return &errs.ConfigError{Key: p.key, Reason: err.Error()}
		}
		cfg.LogLevel = lvl
	case p.key == "mode":
		switch p.value {
		case "client":
			cfg.Mode = ModeClient
		case "server":
			cfg.Mode = ModeServer
		default:
			return &errs.ConfigError{Key: p.key, Reason: "must be client or server"}
		}
	case p.key == "ocspResponseFile":
		cfg.OCSPResponseFile = p.value
	case p.key == "sessionCache":
		cfg.SessionCache = p.value
	case p.key == "tlsSecretFile":
		cfg.SecretFile = p.value
	case p.key == "tlsServerDHParams":
		primeHex, genHex, name, err := resolveDHGroup(p.value)
		if err != nil {
			return err
		}
		cfg.ServerDHParams = tlssession.DHParams{Name: name, PrimeHex: primeHex, GenHex: genHex}
	case p.key == "pskIdentity":
		cfg.PSKIdentity = p.value
	case p.key == "pskIdentityHint":
		cfg.PSKIdentityHint = p.value
	case p.key == "startTLSProtocol":
		proto, err := parseStartTLSProtocol(p.value)
		if err != nil {
			return err
		}
		cfg.StartTLSProtocol = proto
	case p.key == "tlsCipherSuites":
		pairs, err := parseHexPairList(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.CipherSuites = pairs
	case p.key == "tlsSignatureSchemes":
		pairs, err := parseHexPairList(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.SignatureSchemes = pairs
	case p.key == "tlsSignatureAlgorithms":
		pairs, err := parseDecimalPairList(p.key, p.value, 3, 6)
		if err != nil {
			return err
		}
		cfg.SignatureAlgorithms = pairs
	case p.key == "tlsSupportedGroups":
		tokens, err := parseGroupTokenList(p.key, p.value)
		if err != nil {
			return err
		}
		groups := make([]uint16, 0, len(tokens))
		for _, t := range tokens {
			id, err := resolveSupportedGroup(t)
			if err != nil {
				return err
			}
			groups = append(groups, id)
		}
		cfg.SupportedGroups = groups
	case p.key == "tlsUseSni":
		b, err := parseBool(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.UseSNI = b
	case p.key == "tlsVerifyPeer":
		b, err := parseBool(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.VerifyPeer = b
	case p.key == "tlsEncryptThenMac":
		b, err := parseBool(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.EncryptThenMAC = b
	case p.key == "tlsExtendedMasterSecret":
		b, err := parseBool(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.ExtendedMasterSecret = b
	case p.key == "tlsVersion":
		major, minor, err := parseVersionPair(p.key, p.value)
		if err != nil {
			return err
		}
		if major != 3 {
			return &errs.ConfigError{Key: p.key, Reason: "major must be 3"}
		}
		cfg.TLSVersion = tlssession.Version{Major: major, Minor: minor}
	case strings.HasPrefix(p.key, "manipulate") || p.key == "forceCertificateUsage" || p.key == "renegotiate":
		return applyManipulateKey(cfg, p)
	default:
		return &errs.ConfigError{Key: p.key, Reason: "unrecognised key"}
	}
	return nil
}

func parseIntField(key, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &errs.ConfigError{Key: key, Reason: "expected a decimal integer: " + s}
	}
	return n, nil
}

func parseHandshakeType(s string) (tlssession.HandshakeType, error) {
	switch s {
	case "normal":
		return tlssession.HandshakeNormal, nil
	case "resumptionWithSessionID":
		return tlssession.HandshakeResumeSessionID, nil
	case "resumptionWithSessionTicket":
		return tlssession.HandshakeResumeTicket, nil
	case "zeroRTT":
		return tlssession.HandshakeZeroRTT, nil
	default:
		return 0, &errs.ConfigError{Key: "handshakeType", Reason: "unrecognised value: " + s}
	}
}

func parseStartTLSProtocol(s string) (starttls.Protocol, error) {
	switch s {
	case "smtp":
		return starttls.ProtocolSMTP, nil
	case "imap":
		return starttls.ProtocolIMAP, nil
	case "pop3":
		return starttls.ProtocolPOP3, nil
	case "ftp":
		return starttls.ProtocolFTP, nil
	default:
		return starttls.ProtocolNone, &errs.ConfigError{Key: "startTLSProtocol", Reason: "unrecognised value: " + s}
	}
}

// applyManipulateKey handles forceCertificateUsage, renegotiate, and every
// manipulate* key (§4.4), appending to cfg.manipulations in file order or,
// for the raw-extension keys on the modern backend, populating the
// corresponding Config field directly (SPEC_FULL.md §5.2-3).
func applyManipulateKey(cfg *Config, p kv) error {
	switch p.key {
	case "forceCertificateUsage":
		enabled, err := parseBool(p.key, p.value)
		if err != nil {
			return err
		}
		if enabled {
			cfg.manipulations = append(cfg.manipulations, manipulationSpec{kind: manipulationForceCertificateUsage})
		}
	case "renegotiate":
		enabled, err := parseBool(p.key, p.value)
		if err != nil {
			return err
		}
		if enabled {
			if cfg.Backend == BackendModern {
				return &errs.ConfigError{Key: p.key, Reason: "renegotiation is not supported on the modern (utls) backend"}
			}
			cfg.manipulations = append(cfg.manipulations, manipulationSpec{kind: manipulationRenegotiate})
		}
	case "manipulateClientHelloCompressionMethods":
		b, err := parseHexByteString(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.manipulations = append(cfg.manipulations, manipulationSpec{kind: manipulationClientHelloCompressionMethods, bytes: b})
	case "manipulateClientHelloExtensions":
		b, err := parseHexByteString(p.key, p.value)
		if err != nil {
			return err
		}
		if cfg.Backend == BackendModern {
			cfg.ClientHelloExtensionRaw = b
		} else {
			cfg.manipulations = append(cfg.manipulations, manipulationSpec{kind: manipulationClientHelloExtensions, bytes: b})
		}
	case "manipulateServerHelloCompressionMethods":
		b, err := parseHexByteString(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.manipulations = append(cfg.manipulations, manipulationSpec{kind: manipulationServerHelloCompressionMethods, bytes: b})
	case "manipulateServerHelloExtensions":
		b, err := parseHexByteString(p.key, p.value)
		if err != nil {
			return err
		}
		if cfg.Backend == BackendModern {
			cfg.ServerHelloExtensionRaw = b
		} else {
			cfg.manipulations = append(cfg.manipulations, manipulationSpec{kind: manipulationServerHelloExtensions, bytes: b})
		}
	case "manipulateEncryptedExtensionsTls13":
		b, err := parseHexByteString(p.key, p.value)
		if err != nil {
			return err
		}
		if cfg.Backend != BackendModern {
			return &errs.ConfigError{Key: p.key, Reason: "only supported on the modern backend"}
		}
		cfg.EncryptedExtensionsRaw = b
	case "manipulateHelloVersion":
		major, minor, err := parseHexVersionPair(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.manipulations = append(cfg.manipulations, manipulationSpec{
			kind:    manipulationHelloVersion,
			version: tlssession.Version{Major: major, Minor: minor},
		})
	case "manipulateEllipticCurveGroup":
		n, err := parseUintToken(p.value)
		if err != nil {
			return &errs.ConfigError{Key: p.key, Reason: "expected an integer group id: " + p.value}
		}
		cfg.manipulations = append(cfg.manipulations, manipulationSpec{kind: manipulationEllipticCurveGroup, groupID: uint16(n)})
	case "manipulateSendTlsApplicationData":
		count, payload, err := parseCountHex(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.manipulations = append(cfg.manipulations, manipulationSpec{kind: manipulationSendApplicationData, count: count, bytes: payload})
	case "manipulateSendHeartbeatRequest":
		when, length, payload, err := parseHeartbeatValue(p.key, p.value)
		if err != nil {
			return err
		}
		cfg.manipulations = append(cfg.manipulations, manipulationSpec{kind: manipulationSendHeartbeatRequest, heartbeat: when, heartbeatLength: length, bytes: payload})
	default:
		return &errs.ConfigError{Key: p.key, Reason: "unrecognised key"}
	}
	return nil
}

// parseCountHex parses the "COUNT,HEX" grammar for
// manipulateSendTlsApplicationData.
func parseCountHex(key, s string) (uint64, []byte, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, nil, &errs.ConfigError{Key: key, Reason: "expected COUNT,HEX"}
	}
	count, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || count == 0 {
		return 0, nil, &errs.ConfigError{Key: key, Reason: "COUNT must be a positive integer"}
	}
	payload, err := parseHexByteString(key, parts[1])
	if err != nil {
		return 0, nil, err
	}
	return count, payload, nil
}

// parseHeartbeatValue parses the
// "beforeHandshake|afterHandshake,LEN,HEX" grammar for
// manipulateSendHeartbeatRequest. LEN becomes the wire payload_length field
// independent of the decoded HEX payload's actual byte count
// (SendHeartbeatRequest.cpp:64 sets payload_length from a caller-supplied
// parameter, not payload.size()): a LEN larger than the payload is the
// Heartbleed-style over-read fault this manipulation exists to inject, so
// a mismatch is not rejected here.
func parseHeartbeatValue(key, s string) (manipulation.HeartbeatWhen, uint16, []byte, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return 0, 0, nil, &errs.ConfigError{Key: key, Reason: "expected beforeHandshake|afterHandshake,LEN,HEX"}
	}
	var when manipulation.HeartbeatWhen
	switch strings.TrimSpace(parts[0]) {
	case "beforeHandshake":
		when = manipulation.HeartbeatBeforeHandshake
	case "afterHandshake":
		when = manipulation.HeartbeatAfterHandshake
	default:
		return 0, 0, nil, &errs.ConfigError{Key: key, Reason: "expected beforeHandshake or afterHandshake"}
	}
	length, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
	if err != nil {
		return 0, 0, nil, &errs.ConfigError{Key: key, Reason: "LEN must be a non-negative 16-bit integer"}
	}
	payload, err := parseHexByteString(key, parts[2])
	if err != nil {
		return 0, 0, nil, err
	}
	return when, uint16(length), payload, nil
}
