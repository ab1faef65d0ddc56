package logx

import (
	"encoding/hex"
	"regexp"
	"strings"
)

// HelloRetryRequestRandom is the fixed 32-byte ServerHello.random
// sentinel (RFC 8446 §4.1.3) that distinguishes a HelloRetryRequest from
// an ordinary ServerHello, since both share the same wire format.
var HelloRetryRequestRandom = []byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11,
	0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E,
	0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

// MessageLogger decodes handshake records into canonical `TAG=HEX` log
// lines (spec.md §4.7/C7) and writes them through an underlying Logger at
// a fixed origin.
type MessageLogger struct {
	logger *Logger
	origin string
}

// NewMessageLogger builds a protocol-message logger writing through l,
// tagged with origin (conventionally the peer role, e.g. "wire").
func NewMessageLogger(l *Logger, origin string) *MessageLogger {
	return &MessageLogger{logger: l, origin: origin}
}

// Field emits one canonical "TAG=HEX" line, with HEX as space-separated
// lowercase byte pairs, matching spec.md §4.7.
func (m *MessageLogger) Field(tag string, value []byte) {
	m.logger.LogAt(LevelHigh, m.origin, tag+"="+HexSpaced(value))
}

// FieldString emits a canonical "TAG=value" line for fields that are
// already textual (e.g. a negotiated ALPN protocol name) rather than raw
// bytes.
func (m *MessageLogger) FieldString(tag, value string) {
	m.logger.LogAt(LevelHigh, m.origin, tag+"="+value)
}

// Note emits a plain log line carrying no TAG=HEX field, for messages this
// logger only records the occurrence of (e.g. Finished once encryption
// hides its body), matching TlsMessageLogger.cpp's own FINISHED_RX_VALID/
// FINISHED_TX behavior: it never decodes verify_data either.
func (m *MessageLogger) Note(message string) {
	m.logger.LogAt(LevelHigh, m.origin, message)
}

// HexSpaced renders b as space-separated lowercase hex byte pairs, e.g.
// []byte{0x00, 0x9f} -> "00 9f".
func HexSpaced(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b)*3 - 1)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(hex.EncodeToString([]byte{v}))
	}
	return sb.String()
}

// IsHelloRetryRequest reports whether a ServerHello-shaped message's
// 32-byte random field equals the RFC 8446 HelloRetryRequest sentinel.
func IsHelloRetryRequest(random []byte) bool {
	if len(random) != len(HelloRetryRequestRandom) {
		return false
	}
	for i := range random {
		if random[i] != HelloRetryRequestRandom[i] {
			return false
		}
	}
	return true
}

// CertificateFormat distinguishes the TLS 1.2 and TLS 1.3 Certificate
// message wire formats, which share no common prefix length.
type CertificateFormat int

const (
	CertificateFormatUnknown CertificateFormat = iota
	CertificateFormatTLS12
	CertificateFormatTLS13
)

// DetectCertificateFormat chooses the TLS 1.2 vs TLS 1.3 Certificate
// branch by checking which interpretation consumes body exactly,
// matching spec.md §4.7: TLS 1.2 is a bare 24-bit-length
// certificate_list of 24-bit-length ASN.1Cert entries; TLS 1.3 adds a
// leading one-byte (usually empty) certificate_request_context, and each
// entry carries a trailing 16-bit-length extensions block.
func DetectCertificateFormat(body []byte) CertificateFormat {
	if consumesExactlyTLS12(body) {
		return CertificateFormatTLS12
	}
	if consumesExactlyTLS13(body) {
		return CertificateFormatTLS13
	}
	return CertificateFormatUnknown
}

func consumesExactlyTLS12(body []byte) bool {
	if len(body) < 3 {
		return false
	}
	listLen := int(body[0])<<16 | int(body[1])<<8 | int(body[2])
	if 3+listLen != len(body) {
		return false
	}
	pos := 3
	end := 3 + listLen
	for pos < end {
		if pos+3 > end {
			return false
		}
		certLen := int(body[pos])<<16 | int(body[pos+1])<<8 | int(body[pos+2])
		pos += 3 + certLen
		if pos > end {
			return false
		}
	}
	return pos == end
}

func consumesExactlyTLS13(body []byte) bool {
	if len(body) < 1 {
		return false
	}
	ctxLen := int(body[0])
	pos := 1 + ctxLen
	if pos+3 > len(body) {
		return false
	}
	listLen := int(body[pos])<<16 | int(body[pos+1])<<8 | int(body[pos+2])
	pos += 3
	end := pos + listLen
	if end != len(body) {
		return false
	}
	for pos < end {
		if pos+3 > end {
			return false
		}
		certLen := int(body[pos])<<16 | int(body[pos+1])<<8 | int(body[pos+2])
		pos += 3 + certLen
		if pos+2 > end || pos > end {
			return false
		}
		extLen := int(body[pos])<<8 | int(body[pos+1])
		pos += 2 + extLen
		if pos > end {
			return false
		}
	}
	return pos == end
}

// LegacyRule translates one line of human-readable backend log text into
// a canonical field, the way ManipulationsParser's filter callbacks
// translate OpenSSL/mbedTLS trace output. Pattern must have exactly one
// capturing group: the value to hex/string-encode into the canonical
// line.
type LegacyRule struct {
	Tag     string
	Pattern *regexp.Regexp
	AsHex   bool
}

// NewLegacyRule compiles pattern and panics on an invalid regex, since
// rules are built once at startup from a fixed table, never from
// untrusted input.
func NewLegacyRule(tag, pattern string, asHex bool) LegacyRule {
	return LegacyRule{Tag: tag, Pattern: regexp.MustCompile(pattern), AsHex: asHex}
}

// DefaultLegacyRules is the starter translation table for the legacy
// (crypto/tls) backend's log text, grounded on spec.md §4.7's own
// example: "server hello, received ciphersuite: 00 9f" ->
// "ServerHello.cipher_suite=00 9f".
var DefaultLegacyRules = []LegacyRule{
	NewLegacyRule("ServerHello.cipher_suite", `received ciphersuite:\s*([0-9a-fA-F]{2}\s[0-9a-fA-F]{2})`, false),
	NewLegacyRule("ServerHello.compression_method", `received compression method:\s*([0-9a-fA-F]{2})`, false),
	NewLegacyRule("Finished.verify_data", `finished, verify_data:\s*([0-9a-fA-F ]+)`, false),
}

// TranslateLegacyLine applies rules in order to raw backend log text and
// emits the first matching canonical field through m. It reports whether
// any rule matched.
func (m *MessageLogger) TranslateLegacyLine(raw string, rules []LegacyRule) bool {
	for _, rule := range rules {
		match := rule.Pattern.FindStringSubmatch(raw)
		if match == nil {
			continue
		}
		m.FieldString(rule.Tag, strings.ToLower(strings.TrimSpace(match[1])))
		return true
	}
	return false
}
