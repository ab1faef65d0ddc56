package tlssession

import (
	"fmt"
	"strconv"

	"github.com/BSI-Bund/TaSK/internal/logx"
	"github.com/BSI-Bund/TaSK/internal/wire"
)

// logHandshakeMessage feeds one plaintext handshake message body through m,
// grounded field-by-field on
// original_source/.../tls/openssl/TlsMessageLogger.cpp: ClientHello and
// ServerHello/HelloRetryRequest are decoded in full; Certificate picks its
// TLS 1.2/1.3 branch via logx.DetectCertificateFormat. Finished carries no
// legible field once encryption begins — TlsMessageLogger.cpp never
// decodes it either, only logs its presence (FINISHED_RX_VALID/FINISHED_TX) —
// so it only gets a Note, never a fabricated field.
func logHandshakeMessage(m *logx.MessageLogger, msgType wire.HandshakeType, body []byte) {
	if m == nil {
		return
	}
	switch msgType {
	case wire.HandshakeTypeClientHello:
		logClientHello(m, body)
	case wire.HandshakeTypeServerHello:
		logServerHelloOrHRR(m, body)
	case wire.HandshakeTypeCertificate:
		logCertificate(m, body)
	case wire.HandshakeTypeFinished:
		m.Note("Finished message observed.")
	}
}

func logClientHello(m *logx.MessageLogger, body []byte) {
	pos := 0
	if pos+2 > len(body) {
		return
	}
	m.Field("ClientHello.client_version", body[pos:pos+2])
	pos += 2

	if pos+32 > len(body) {
		return
	}
	m.Field("ClientHello.random", body[pos:pos+32])
	pos += 32

	if pos+1 > len(body) {
		return
	}
	sessionIDLen := int(body[pos])
	pos++
	if pos+sessionIDLen > len(body) {
		return
	}
	m.Field("ClientHello.session_id", body[pos:pos+sessionIDLen])
	pos += sessionIDLen

	if pos+2 > len(body) {
		return
	}
	cipherSuitesLen := int(body[pos])<<8 | int(body[pos+1])
	pos += 2
	if pos+cipherSuitesLen > len(body) {
		return
	}
	m.Field("ClientHello.cipher_suites", body[pos:pos+cipherSuitesLen])
	pos += cipherSuitesLen

	if pos+1 > len(body) {
		return
	}
	compressionLen := int(body[pos])
	pos++
	if pos+compressionLen > len(body) {
		return
	}
	m.Field("ClientHello.compression_methods", body[pos:pos+compressionLen])
	pos += compressionLen

	if pos+2 > len(body) {
		return
	}
	extLen := int(body[pos])<<8 | int(body[pos+1])
	pos += 2
	if pos+extLen > len(body) {
		return
	}
	m.Field("ClientHello.extensions", body[pos:pos+extLen])
}

// logServerHelloOrHRR decodes ServerHello.cipher_suite and
// ServerHello.compression_method via TranslateLegacyLine instead of a
// direct Field call: these are the exact two fields
// original_source/.../mbedtls/TlsLogFilter.cpp's debug-text regexes cover
// (logx.DefaultLegacyRules), so synthesizing the same backend-style text
// from the bytes just parsed here and running it through the translator
// exercises that path for real and proves it agrees with native decoding,
// per spec.md §4.6's "the two paths MUST produce identical canonical
// lines" requirement. HelloRetryRequest, sharing the same wire shape,
// always goes through the native Field path since DefaultLegacyRules has
// no HelloRetryRequest-prefixed rules to exercise.
func logServerHelloOrHRR(m *logx.MessageLogger, body []byte) {
	pos := 0
	if pos+2 > len(body) {
		return
	}
	versionField := body[pos : pos+2]
	pos += 2

	if pos+32 > len(body) {
		m.Field("ServerHello.server_version", versionField)
		return
	}
	random := body[pos : pos+32]
	prefix := "ServerHello"
	if logx.IsHelloRetryRequest(random) {
		prefix = "HelloRetryRequest"
	}
	m.Field(prefix+".server_version", versionField)
	m.Field(prefix+".random", random)
	pos += 32

	if pos+1 > len(body) {
		return
	}
	sessionIDLen := int(body[pos])
	pos++
	if pos+sessionIDLen > len(body) {
		return
	}
	m.Field(prefix+".session_id", body[pos:pos+sessionIDLen])
	pos += sessionIDLen

	if pos+2 > len(body) {
		return
	}
	cipherSuite := body[pos : pos+2]
	pos += 2

	if pos+1 > len(body) {
		return
	}
	compressionMethod := body[pos]
	pos++

	if prefix == "ServerHello" {
		cipherText := fmt.Sprintf("server hello, received ciphersuite: %02x %02x\n", cipherSuite[0], cipherSuite[1])
		if !m.TranslateLegacyLine(cipherText, logx.DefaultLegacyRules) {
			m.Field("ServerHello.cipher_suite", cipherSuite)
		}
		compressionText := fmt.Sprintf("received compression method: %02x\n", compressionMethod)
		if !m.TranslateLegacyLine(compressionText, logx.DefaultLegacyRules) {
			m.Field("ServerHello.compression_method", []byte{compressionMethod})
		}
	} else {
		m.Field(prefix+".cipher_suite", cipherSuite)
		m.Field(prefix+".compression_method", []byte{compressionMethod})
	}

	if pos+2 > len(body) {
		return
	}
	extLen := int(body[pos])<<8 | int(body[pos+1])
	pos += 2
	if pos+extLen > len(body) {
		return
	}
	m.Field(prefix+".extensions", body[pos:pos+extLen])
}

func logCertificate(m *logx.MessageLogger, body []byte) {
	switch logx.DetectCertificateFormat(body) {
	case logx.CertificateFormatTLS12:
		logCertificateTLS12(m, body)
	case logx.CertificateFormatTLS13:
		logCertificateTLS13(m, body)
	}
}

func logCertificateTLS12(m *logx.MessageLogger, body []byte) {
	pos := 3
	n := 0
	for pos < len(body) {
		if pos+3 > len(body) {
			return
		}
		certLen := int(body[pos])<<16 | int(body[pos+1])<<8 | int(body[pos+2])
		pos += 3
		if pos+certLen > len(body) {
			return
		}
		m.Field(fmt.Sprintf("Certificate.certificate_list[%d]", n), body[pos:pos+certLen])
		pos += certLen
		n++
	}
	m.FieldString("Certificate.certificate_list.size", strconv.Itoa(n))
}

func logCertificateTLS13(m *logx.MessageLogger, body []byte) {
	ctxLen := int(body[0])
	pos := 1 + ctxLen
	if pos+3 > len(body) {
		return
	}
	pos += 3
	n := 0
	for pos < len(body) {
		if pos+3 > len(body) {
			return
		}
		certLen := int(body[pos])<<16 | int(body[pos+1])<<8 | int(body[pos+2])
		pos += 3
		if pos+certLen > len(body) {
			return
		}
		m.Field(fmt.Sprintf("Certificate.certificate_list[%d]", n), body[pos:pos+certLen])
		pos += certLen
		if pos+2 > len(body) {
			return
		}
		extLen := int(body[pos])<<8 | int(body[pos+1])
		pos += 2
		if pos+extLen > len(body) {
			return
		}
		pos += extLen
		n++
	}
	m.FieldString("Certificate.certificate_list.size", strconv.Itoa(n))
}
