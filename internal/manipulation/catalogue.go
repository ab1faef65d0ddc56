package manipulation

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/BSI-Bund/TaSK/internal/errs"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

// NewForceCertificateUsage grounds on ForceCertificateUsage.cpp: when
// acting as a server, makes the session send its first configured
// certificate even if none matches the negotiated key usage, instead of
// aborting the handshake.
func NewForceCertificateUsage(logger Logger) Hook {
	return &forceCertificateUsage{base: base{name: "ForceCertificateUsage", logger: logger}}
}

type forceCertificateUsage struct{ base }

func (h *forceCertificateUsage) ExecutePreHandshake(ctx context.Context, s tlssession.Session) error {
	if s.IsClient() {
		return nil
	}
	h.log("forcing certificate usage")
	return s.ForceCertificateUsage()
}

// NewManipulateClientHelloCompressionMethods grounds on
// ManipulateClientHelloCompressionMethods.cpp: overwrites
// ClientHello.compression_methods on the client side only.
func NewManipulateClientHelloCompressionMethods(methods []byte, logger Logger) Hook {
	return &manipulateClientHelloCompressionMethods{
		base:    base{name: "ManipulateClientHelloCompressionMethods", logger: logger},
		methods: methods,
	}
}

type manipulateClientHelloCompressionMethods struct {
	base
	methods []byte
}

func (h *manipulateClientHelloCompressionMethods) ExecutePreHandshake(ctx context.Context, s tlssession.Session) error {
	if !s.IsClient() {
		return nil
	}
	h.log(fmt.Sprintf("setting ClientHello.compression_methods to %s", hex.EncodeToString(h.methods)))
	return s.SetHelloCompressionMethods(h.methods)
}

// NewManipulateClientHelloExtensions grounds on
// ManipulateClientHelloExtensions.cpp: replaces the raw extensions block
// of the ClientHello on the legacy backend, where extensions are not
// otherwise config-driven. On the modern (utls) backend the same raw
// bytes are installed directly into the ClientHelloSpec at setup time and
// no hook is registered (see SPEC_FULL.md §5.2).
func NewManipulateClientHelloExtensions(raw []byte, logger Logger) Hook {
	return &manipulateClientHelloExtensions{
		base: base{name: "ManipulateClientHelloExtensions", logger: logger},
		raw:  raw,
	}
}

type manipulateClientHelloExtensions struct {
	base
	raw []byte
}

func (h *manipulateClientHelloExtensions) ExecutePreHandshake(ctx context.Context, s tlssession.Session) error {
	if !s.IsClient() {
		return nil
	}
	h.log(fmt.Sprintf("setting ClientHello.extensions to %s", hex.EncodeToString(h.raw)))
	return s.SetClientHelloExtensionsRaw(h.raw)
}

// NewManipulateServerHelloCompressionMethods grounds on
// ManipulateServerHelloCompressionMethods.cpp: overwrites
// ServerHello.compression_method on the server side only.
func NewManipulateServerHelloCompressionMethods(methods []byte, logger Logger) Hook {
	return &manipulateServerHelloCompressionMethods{
		base:    base{name: "ManipulateServerHelloCompressionMethods", logger: logger},
		methods: methods,
	}
}

type manipulateServerHelloCompressionMethods struct {
	base
	methods []byte
}

func (h *manipulateServerHelloCompressionMethods) ExecutePreHandshake(ctx context.Context, s tlssession.Session) error {
	if s.IsClient() {
		return nil
	}
	h.log("deactivating ServerHello.compression_method")
	return s.SetHelloCompressionMethods(h.methods)
}

// NewManipulateServerHelloExtensions grounds on
// ManipulateServerHelloExtensions.cpp: replaces the raw extensions block
// of the ServerHello on the server side, legacy backend only (see note
// on NewManipulateClientHelloExtensions).
func NewManipulateServerHelloExtensions(raw []byte, logger Logger) Hook {
	return &manipulateServerHelloExtensions{
		base: base{name: "ManipulateServerHelloExtensions", logger: logger},
		raw:  raw,
	}
}

type manipulateServerHelloExtensions struct {
	base
	raw []byte
}

func (h *manipulateServerHelloExtensions) ExecutePreHandshake(ctx context.Context, s tlssession.Session) error {
	if s.IsClient() {
		return nil
	}
	h.log(fmt.Sprintf("setting ServerHello.extensions to %s", hex.EncodeToString(h.raw)))
	return s.SetServerHelloExtensionsRaw(h.raw)
}

// NewManipulateHelloVersion grounds on ManipulateHelloVersion.cpp:
// overwrites ClientHello.client_version (as client) or
// ServerHello.server_version (as server) with a fixed value, regardless
// of role.
func NewManipulateHelloVersion(v tlssession.Version, logger Logger) Hook {
	return &manipulateHelloVersion{
		base:    base{name: "ManipulateHelloVersion", logger: logger},
		version: v,
	}
}

type manipulateHelloVersion struct {
	base
	version tlssession.Version
}

func (h *manipulateHelloVersion) ExecutePreHandshake(ctx context.Context, s tlssession.Session) error {
	h.log(fmt.Sprintf("setting version for hello message to (%d, %d)", h.version.Major, h.version.Minor))
	return s.OverwriteHelloVersion(h.version)
}

// NewManipulateEllipticCurveGroup grounds on
// ManipulateEllipticCurveGroup.cpp: as a server, overwrites the elliptic
// curve group used in ServerKeyExchange right before that message is
// sent, i.e. on the pre-step hook while the session is sitting at
// StateServerKeyExchange.
func NewManipulateEllipticCurveGroup(groupID uint16, logger Logger) Hook {
	return &manipulateEllipticCurveGroup{
		base:    base{name: "ManipulateEllipticCurveGroup", logger: logger},
		groupID: groupID,
	}
}

type manipulateEllipticCurveGroup struct {
	base
	groupID uint16
}

func (h *manipulateEllipticCurveGroup) ExecutePreStep(ctx context.Context, s tlssession.Session) error {
	if s.IsClient() || s.State() != tlssession.StateServerKeyExchange {
		return nil
	}
	h.log(fmt.Sprintf("setting elliptic curve group to %d before sending ServerKeyExchange", h.groupID))
	return s.OverwriteEllipticCurveGroup(h.groupID)
}

// NewRenegotiate grounds on Renegotiate.cpp: triggers a TLS
// renegotiation once the initial handshake has completed. spec.md §9
// leaves the modern-backend interaction open; this harness rejects the
// combination at config-parse time rather than at runtime (see
// DESIGN.md's Open Question decision) because utls does not implement
// renegotiation, so a runtime failure would be indistinguishable from a
// DUT-triggered one.
func NewRenegotiate(logger Logger) Hook {
	return &renegotiate{base: base{name: "Renegotiate", logger: logger}}
}

type renegotiate struct{ base }

func (h *renegotiate) ExecutePostHandshake(ctx context.Context, s tlssession.Session) error {
	h.log("renegotiating")
	return s.Renegotiate(ctx)
}

// NewSendApplicationData grounds on SendApplicationData.cpp: after the
// handshake completes, sends the configured payload count times in a row.
func NewSendApplicationData(count uint64, payload []byte, logger Logger) Hook {
	return &sendApplicationData{
		base:    base{name: "SendApplicationData", logger: logger},
		count:   count,
		payload: payload,
	}
}

type sendApplicationData struct {
	base
	count   uint64
	payload []byte
}

func (h *sendApplicationData) ExecutePostHandshake(ctx context.Context, s tlssession.Session) error {
	for i := uint64(1); i <= h.count; i++ {
		h.log(fmt.Sprintf("sending TLS application data message %d of %d", i, h.count))
		if err := s.SendApplicationData(h.payload); err != nil {
			return &errs.ManipulationError{Name: h.name, Reason: "send application data failed", Err: err}
		}
	}
	return nil
}

// HeartbeatWhen selects whether SendHeartbeatRequest fires before or
// after the handshake.
type HeartbeatWhen int

const (
	HeartbeatBeforeHandshake HeartbeatWhen = iota
	HeartbeatAfterHandshake
)

// NewSendHeartbeatRequest grounds on SendHeartbeatRequest.cpp: sends a
// heartbeat_request record either before the handshake starts (raw,
// unencrypted, via the transport directly) or after it completes (via
// the session's record layer, so it rides on top of the negotiated
// cipher). declaredLength becomes the wire payload_length field and is
// independent of len(payload) (SendHeartbeatRequest.cpp:64 sets it from a
// caller-supplied parameter, not from payload.size()) — configuring a
// declaredLength larger than the actual payload is the Heartbleed-style
// over-read probe. The wire layout is built by
// internal/wire.BuildHeartbeatRequest.
func NewSendHeartbeatRequest(when HeartbeatWhen, declaredLength uint16, payload []byte, logger Logger) Hook {
	return &sendHeartbeatRequest{
		base:           base{name: "SendHeartbeatRequest", logger: logger},
		when:           when,
		declaredLength: declaredLength,
		payload:        payload,
	}
}

type sendHeartbeatRequest struct {
	base
	when           HeartbeatWhen
	declaredLength uint16
	payload        []byte
}

func (h *sendHeartbeatRequest) ExecutePreHandshake(ctx context.Context, s tlssession.Session) error {
	if h.when != HeartbeatBeforeHandshake {
		return nil
	}
	return h.send(s)
}

func (h *sendHeartbeatRequest) ExecutePostHandshake(ctx context.Context, s tlssession.Session) error {
	if h.when != HeartbeatAfterHandshake {
		return nil
	}
	return h.send(s)
}

func (h *sendHeartbeatRequest) send(s tlssession.Session) error {
	h.log("sending HeartbeatRequest message")
	return s.SendHeartbeat(h.declaredLength, h.payload)
}
