// Package wire implements the fixed-size TLS record and message headers
// that the manipulation catalogue and the protocol-message logger need to
// build and parse, independent of whichever backend owns the record layer.
package wire

import "fmt"

// ContentType is the one-byte TLSPlaintext.type field (RFC 5246 §6.2.1).
type ContentType uint8

const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
	ContentTypeHeartbeat        ContentType = 24
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeChangeCipherSpec:
		return "change_cipher_spec"
	case ContentTypeAlert:
		return "alert"
	case ContentTypeHandshake:
		return "handshake"
	case ContentTypeApplicationData:
		return "application_data"
	case ContentTypeHeartbeat:
		return "heartbeat"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// HandshakeType is the one-byte Handshake.msg_type field (RFC 5246 §7.4,
// RFC 8446 §4), restricted to the assignments this tool decodes or forges.
type HandshakeType uint8

const (
	HandshakeTypeHelloRequest       HandshakeType = 0
	HandshakeTypeClientHello       HandshakeType = 1
	HandshakeTypeServerHello       HandshakeType = 2
	HandshakeTypeNewSessionTicket  HandshakeType = 4
	HandshakeTypeEndOfEarlyData    HandshakeType = 5
	HandshakeTypeEncryptedExt      HandshakeType = 8
	HandshakeTypeCertificate       HandshakeType = 11
	HandshakeTypeServerKeyExchange HandshakeType = 12
	HandshakeTypeCertificateReq    HandshakeType = 13
	HandshakeTypeServerHelloDone   HandshakeType = 14
	HandshakeTypeCertificateVerify HandshakeType = 15
	HandshakeTypeClientKeyExchange HandshakeType = 16
	HandshakeTypeFinished          HandshakeType = 20
	HandshakeTypeCertificateStatus HandshakeType = 22
	HandshakeTypeKeyUpdate         HandshakeType = 24
)

// Version is the two-byte (major, minor) TLS record version field.
type Version struct {
	Major, Minor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%02x %02x", v.Major, v.Minor)
}

// PlaintextHeaderLen is the encoded size of a TlsPlaintextHeader (RFC 5246 §6.2.1).
const PlaintextHeaderLen = 5

// PlaintextHeader is TLSPlaintext's fixed header: content type, protocol
// version, and a 16-bit big-endian fragment length.
type PlaintextHeader struct {
	Type    ContentType
	Version Version
	Length  uint16
}

// Encode writes the 5-byte wire form of h.
func (h PlaintextHeader) Encode() []byte {
	return []byte{
		byte(h.Type),
		h.Version.Major, h.Version.Minor,
		byte(h.Length >> 8), byte(h.Length),
	}
}

// DecodePlaintextHeader parses the 5-byte TLSPlaintext header from b.
func DecodePlaintextHeader(b []byte) (PlaintextHeader, error) {
	if len(b) < PlaintextHeaderLen {
		return PlaintextHeader{}, fmt.Errorf("wire: plaintext header needs %d bytes, got %d", PlaintextHeaderLen, len(b))
	}
	return PlaintextHeader{
		Type:    ContentType(b[0]),
		Version: Version{Major: b[1], Minor: b[2]},
		Length:  uint16(b[3])<<8 | uint16(b[4]),
	}, nil
}

// HandshakeHeaderLen is the encoded size of a HandshakeHeader (RFC 5246 §7.4).
const HandshakeHeaderLen = 4

// HandshakeHeader is a Handshake message's fixed header: message type and a
// 24-bit big-endian body length.
type HandshakeHeader struct {
	MsgType HandshakeType
	Length  uint32 // 24-bit value; top byte must be zero
}

// Encode writes the 4-byte wire form of h. Length above 2^24-1 is truncated
// the same way the C++ TlsUint24 wrapper silently masks higher bits.
func (h HandshakeHeader) Encode() []byte {
	l := h.Length & 0x00FFFFFF
	return []byte{byte(h.MsgType), byte(l >> 16), byte(l >> 8), byte(l)}
}

// DecodeHandshakeHeader parses the 4-byte Handshake header from b.
func DecodeHandshakeHeader(b []byte) (HandshakeHeader, error) {
	if len(b) < HandshakeHeaderLen {
		return HandshakeHeader{}, fmt.Errorf("wire: handshake header needs %d bytes, got %d", HandshakeHeaderLen, len(b))
	}
	return HandshakeHeader{
		MsgType: HandshakeType(b[0]),
		Length:  uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]),
	}, nil
}

// HeartbeatHeaderLen is the encoded size of a HeartbeatMessageHeader (RFC 6520 §4).
const HeartbeatHeaderLen = 3

// HeartbeatHeader is a HeartbeatMessage's fixed header: heartbeat type and a
// 16-bit big-endian payload length.
type HeartbeatHeader struct {
	Type          uint8
	PayloadLength uint16
}

// Encode writes the 3-byte wire form of h.
func (h HeartbeatHeader) Encode() []byte {
	return []byte{h.Type, byte(h.PayloadLength >> 8), byte(h.PayloadLength)}
}

// DecodeHeartbeatHeader parses the 3-byte heartbeat header from b.
func DecodeHeartbeatHeader(b []byte) (HeartbeatHeader, error) {
	if len(b) < HeartbeatHeaderLen {
		return HeartbeatHeader{}, fmt.Errorf("wire: heartbeat header needs %d bytes, got %d", HeartbeatHeaderLen, len(b))
	}
	return HeartbeatHeader{
		Type:          b[0],
		PayloadLength: uint16(b[1])<<8 | uint16(b[2]),
	}, nil
}

// HeartbeatPaddingByte is the fixed padding byte SendHeartbeatRequest
// appends after the payload, independent of payload length.
const HeartbeatPaddingByte = 0xAB

// HeartbeatPaddingLen is the fixed number of padding bytes.
const HeartbeatPaddingLen = 16

// BuildHeartbeatRequest assembles a full heartbeat_request TLSPlaintext
// record: a PlaintextHeader, a HeartbeatHeader with type=1
// (heartbeat_request, RFC 6520 §3), the payload, and 16 bytes of 0xAB
// padding. recordVersion is the version field of the surrounding
// TLSPlaintext record (the manipulation catalogue always uses (3,3)).
// declaredLength becomes HeartbeatMessageHeader.payload_length; it is
// independent of len(payload), grounded on
// SendHeartbeatRequest.cpp:64 setting payload_length from a parameter the
// caller controls separately from the actual payload bytes — the
// Heartbleed-style over-read a DUT may mishandle. The surrounding
// PlaintextHeader.Length is always computed from the real assembled body.
func BuildHeartbeatRequest(recordVersion Version, declaredLength uint16, payload []byte) []byte {
	padding := make([]byte, HeartbeatPaddingLen)
	for i := range padding {
		padding[i] = HeartbeatPaddingByte
	}
	body := HeartbeatHeader{Type: 1, PayloadLength: declaredLength}.Encode()
	body = append(body, payload...)
	body = append(body, padding...)

	record := PlaintextHeader{
		Type:    ContentTypeHeartbeat,
		Version: recordVersion,
		Length:  uint16(len(body)),
	}.Encode()
	return append(record, body...)
}
