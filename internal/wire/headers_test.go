package wire

import (
	"bytes"
	"testing"
)

func TestPlaintextHeaderRoundTrip(t *testing.T) {
	cases := []PlaintextHeader{
		{Type: ContentTypeHandshake, Version: Version{3, 3}, Length: 0},
		{Type: ContentTypeHeartbeat, Version: Version{3, 1}, Length: 65535},
		{Type: ContentTypeAlert, Version: Version{3, 4}, Length: 2},
	}
	for _, h := range cases {
		got, err := DecodePlaintextHeader(h.Encode())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != h {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
		}
	}
}

func TestHandshakeHeaderRoundTrip(t *testing.T) {
	cases := []HandshakeHeader{
		{MsgType: HandshakeTypeClientHello, Length: 0},
		{MsgType: HandshakeTypeServerHello, Length: 1},
		{MsgType: HandshakeTypeCertificate, Length: 0xFFFFFE},
	}
	for _, h := range cases {
		got, err := DecodeHandshakeHeader(h.Encode())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != h {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
		}
	}
}

func TestHeartbeatHeaderRoundTrip(t *testing.T) {
	cases := []HeartbeatHeader{
		{Type: 1, PayloadLength: 0},
		{Type: 2, PayloadLength: 4},
		{Type: 1, PayloadLength: 65535},
	}
	for _, h := range cases {
		got, err := DecodeHeartbeatHeader(h.Encode())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != h {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
		}
	}
}

func TestDecodeHeaderTooShort(t *testing.T) {
	if _, err := DecodePlaintextHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short buffer")
	}
	if _, err := DecodeHandshakeHeader([]byte{1, 2}); err == nil {
		t.Fatal("expected error for short buffer")
	}
	if _, err := DecodeHeartbeatHeader([]byte{1}); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestBuildHeartbeatRequest(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	got := BuildHeartbeatRequest(Version{3, 3}, uint16(len(payload)), payload)

	want := []byte{
		0x18, 0x03, 0x03, 0x00, 0x17, // TLSPlaintext header: heartbeat, (3,3), length=23
		0x01, 0x00, 0x04, // HeartbeatMessageHeader: type=1, payload_length=4
		0xDE, 0xAD, 0xBE, 0xEF,
		0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("BuildHeartbeatRequest = % X, want % X", got, want)
	}
}

func TestBuildHeartbeatRequestDeclaredLengthIndependentOfPayload(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	got := BuildHeartbeatRequest(Version{3, 3}, 300, payload)

	hb, err := DecodeHeartbeatHeader(got[PlaintextHeaderLen:])
	if err != nil {
		t.Fatalf("DecodeHeartbeatHeader: %v", err)
	}
	if hb.PayloadLength != 300 {
		t.Fatalf("PayloadLength = %d, want 300 (the declared length, independent of the %d-byte payload)", hb.PayloadLength, len(payload))
	}
	plain, err := DecodePlaintextHeader(got)
	if err != nil {
		t.Fatalf("DecodePlaintextHeader: %v", err)
	}
	wantRecordLength := uint16(HeartbeatHeaderLen + len(payload) + HeartbeatPaddingLen)
	if plain.Length != wantRecordLength {
		t.Fatalf("record Length = %d, want %d (computed from the actual payload, not the declared length)", plain.Length, wantRecordLength)
	}
}
