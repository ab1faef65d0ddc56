package config

import (
	"github.com/BSI-Bund/TaSK/internal/errs"
	"github.com/BSI-Bund/TaSK/internal/manipulation"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

// manipulationKind tags which catalogue entry (§4.4) a manipulationSpec
// describes. Only the fields relevant to that kind are populated.
type manipulationKind int

const (
	manipulationForceCertificateUsage manipulationKind = iota
	manipulationClientHelloCompressionMethods
	manipulationClientHelloExtensions
	manipulationServerHelloCompressionMethods
	manipulationServerHelloExtensions
	manipulationHelloVersion
	manipulationEllipticCurveGroup
	manipulationRenegotiate
	manipulationSendApplicationData
	manipulationSendHeartbeatRequest
)

type manipulationSpec struct {
	kind            manipulationKind
	bytes           []byte
	version         tlssession.Version
	groupID         uint16
	count           uint64
	heartbeat       manipulation.HeartbeatWhen
	heartbeatLength uint16
}

// BuildManipulationChain materialises every parsed manipulation
// descriptor into a concrete manipulation.Hook (internal/manipulation's
// catalogue), in configuration order, wired to logger for the hooks'
// own trace lines. Call this once per session, after the structured
// logger has been constructed from the same Config.
func (c *Config) BuildManipulationChain(logger manipulation.Logger) (*manipulation.Chain, error) {
	chain := &manipulation.Chain{Hooks: make([]manipulation.Hook, 0, len(c.manipulations))}
	for _, m := range c.manipulations {
		switch m.kind {
		case manipulationForceCertificateUsage:
			chain.Hooks = append(chain.Hooks, manipulation.NewForceCertificateUsage(logger))
		case manipulationClientHelloCompressionMethods:
			chain.Hooks = append(chain.Hooks, manipulation.NewManipulateClientHelloCompressionMethods(m.bytes, logger))
		case manipulationClientHelloExtensions:
			chain.Hooks = append(chain.Hooks, manipulation.NewManipulateClientHelloExtensions(m.bytes, logger))
		case manipulationServerHelloCompressionMethods:
			chain.Hooks = append(chain.Hooks, manipulation.NewManipulateServerHelloCompressionMethods(m.bytes, logger))
		case manipulationServerHelloExtensions:
			chain.Hooks = append(chain.Hooks, manipulation.NewManipulateServerHelloExtensions(m.bytes, logger))
		case manipulationHelloVersion:
			chain.Hooks = append(chain.Hooks, manipulation.NewManipulateHelloVersion(m.version, logger))
		case manipulationEllipticCurveGroup:
			chain.Hooks = append(chain.Hooks, manipulation.NewManipulateEllipticCurveGroup(m.groupID, logger))
		case manipulationRenegotiate:
			chain.Hooks = append(chain.Hooks, manipulation.NewRenegotiate(logger))
		case manipulationSendApplicationData:
			chain.Hooks = append(chain.Hooks, manipulation.NewSendApplicationData(m.count, m.bytes, logger))
		case manipulationSendHeartbeatRequest:
			chain.Hooks = append(chain.Hooks, manipulation.NewSendHeartbeatRequest(m.heartbeat, m.heartbeatLength, m.bytes, logger))
		default:
			return nil, &errs.ConfigError{Key: "manipulate*", Reason: "unreachable manipulation kind"}
		}
	}
	// On the legacy backend the parser appends entries for the raw
	// ClientHello/ServerHello extension keys directly into c.manipulations
	// and rejects manipulateEncryptedExtensionsTls13; on the modern backend
	// those three keys populate Config.ClientHelloExtensionRaw /
	// ServerHelloExtensionRaw / EncryptedExtensionsRaw instead and never
	// reach this chain (SPEC_FULL.md §5.2-3).
	return chain, nil
}
