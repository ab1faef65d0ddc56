package tlssession

import "github.com/BSI-Bund/TaSK/internal/wire"

// nextStateForHandshakeMsg maps a handshake message, observed either
// going out or coming in on the wire, to the HandshakeState naming that
// action. writing is true when the local role is the one producing the
// bytes (our Write), false when we are consuming bytes the peer sent
// (our Read). Certificate/Finished/ChangeCipherSpec are ambiguous by
// message type alone, so direction and role resolve them.
func nextStateForHandshakeMsg(isClient, writing bool, msgType wire.HandshakeType) (HandshakeState, bool) {
	switch msgType {
	case wire.HandshakeTypeHelloRequest:
		return StateHelloRequest, true
	case wire.HandshakeTypeClientHello:
		return StateClientHello, true
	case wire.HandshakeTypeServerHello:
		return StateServerHello, true
	case wire.HandshakeTypeNewSessionTicket:
		return StateServerFinished, true
	case wire.HandshakeTypeEndOfEarlyData:
		return StateEndOfEarlyData, true
	case wire.HandshakeTypeEncryptedExt:
		return StateEncryptedExtensions, true
	case wire.HandshakeTypeCertificate:
		if (writing && !isClient) || (!writing && isClient) {
			return StateServerCertificate, true
		}
		return StateClientCertificate, true
	case wire.HandshakeTypeServerKeyExchange:
		return StateServerKeyExchange, true
	case wire.HandshakeTypeCertificateReq:
		return StateCertificateRequest, true
	case wire.HandshakeTypeServerHelloDone:
		return StateServerHelloDone, true
	case wire.HandshakeTypeClientKeyExchange:
		return StateClientKeyExchange, true
	case wire.HandshakeTypeCertificateVerify:
		return StateCertificateVerify, true
	case wire.HandshakeTypeFinished:
		if (writing && isClient) || (!writing && !isClient) {
			return StateClientFinished, true
		}
		return StateServerFinished, true
	default:
		return 0, false
	}
}

// nextStateForChangeCipherSpec mirrors nextStateForHandshakeMsg for the
// separate ChangeCipherSpec content type, which carries no message type
// byte of its own.
func nextStateForChangeCipherSpec(isClient, writing bool) HandshakeState {
	if (writing && isClient) || (!writing && !isClient) {
		return StateClientChangeCipherSpec
	}
	return StateServerChangeCipherSpec
}
