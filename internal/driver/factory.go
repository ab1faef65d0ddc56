package driver

import (
	"os"

	"github.com/BSI-Bund/TaSK/internal/config"
	"github.com/BSI-Bund/TaSK/internal/errs"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

// BuildSession constructs and fully configures a Session for cfg, picking
// the legacy (crypto/tls) or modern (utls) backend per cfg.Backend and
// applying every setter the configuration names. This is the one place
// that knows both packages, kept out of internal/tlssession itself to
// avoid an import cycle (tlssession must not depend on config, since
// config's manipulation descriptors already depend on tlssession types).
func BuildSession(cfg *config.Config) (tlssession.Session, error) {
	var s tlssession.Session
	switch cfg.Backend {
	case config.BackendLegacy:
		s = tlssession.NewLegacySession()
	default:
		s = tlssession.NewModernSession()
	}

	if cfg.CACertificateFile != "" {
		pemBytes, err := os.ReadFile(cfg.CACertificateFile)
		if err != nil {
			return nil, &errs.ConfigError{Key: "caCertificateFile", Reason: err.Error()}
		}
		if err := s.SetCACertificate(pemBytes); err != nil {
			return nil, err
		}
	}
	if cfg.CertificateFile != "" || cfg.PrivateKeyFile != "" {
		certPEM, err := os.ReadFile(cfg.CertificateFile)
		if err != nil {
			return nil, &errs.ConfigError{Key: "certificateFile", Reason: err.Error()}
		}
		keyPEM, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, &errs.ConfigError{Key: "privateKeyFile", Reason: err.Error()}
		}
		if err := s.SetCertificate(certPEM, keyPEM); err != nil {
			return nil, err
		}
	}
	if err := s.SetVersion(cfg.TLSVersion); err != nil {
		return nil, err
	}
	if len(cfg.CipherSuites) > 0 {
		if err := s.SetCipherSuites(cfg.CipherSuites); err != nil {
			return nil, err
		}
	}
	if cfg.ServerDHParams.Name != "" {
		if err := s.SetServerDHParams(cfg.ServerDHParams); err != nil {
			return nil, err
		}
	}
	if len(cfg.SupportedGroups) > 0 {
		if err := s.SetSupportedGroups(cfg.SupportedGroups); err != nil {
			return nil, err
		}
	}
	if len(cfg.SignatureSchemes) > 0 {
		if err := s.SetSignatureSchemes(cfg.SignatureSchemes); err != nil {
			return nil, err
		}
	}
	if len(cfg.SignatureAlgorithms) > 0 {
		if err := s.SetSignatureAlgorithms(cfg.SignatureAlgorithms); err != nil {
			return nil, err
		}
	}
	if err := s.SetUseSNI(cfg.UseSNI, cfg.Host); err != nil {
		return nil, err
	}
	if err := s.SetVerifyPeer(cfg.VerifyPeer); err != nil {
		return nil, err
	}
	if err := s.SetExtensionEncryptThenMAC(cfg.EncryptThenMAC); err != nil {
		return nil, err
	}
	if err := s.SetExtensionExtendedMasterSecret(cfg.ExtendedMasterSecret); err != nil {
		return nil, err
	}
	if len(cfg.PSK) > 0 {
		if err := s.SetPreSharedKey(cfg.PSK, cfg.PSKIdentity, cfg.PSKIdentityHint); err != nil {
			return nil, err
		}
	}
	if cfg.Backend == config.BackendModern {
		// On the legacy backend these same configuration keys were turned
		// into manipulation hooks at parse time instead (see
		// config.Config.BuildManipulationChain); applying them here too
		// would double-apply them.
		if len(cfg.ClientHelloExtensionRaw) > 0 {
			if err := s.SetClientHelloExtensionsRaw(cfg.ClientHelloExtensionRaw); err != nil {
				return nil, err
			}
		}
		if len(cfg.ServerHelloExtensionRaw) > 0 {
			if err := s.SetServerHelloExtensionsRaw(cfg.ServerHelloExtensionRaw); err != nil {
				return nil, err
			}
		}
		if len(cfg.EncryptedExtensionsRaw) > 0 {
			if err := s.SetEncryptedExtensionsTLS13Raw(cfg.EncryptedExtensionsRaw); err != nil {
				return nil, err
			}
		}
	}
	if err := s.SetHandshakeType(cfg.HandshakeType); err != nil {
		return nil, err
	}
	if cfg.SessionCache != "" {
		if err := s.SetSessionCache(cfg.SessionCache); err != nil {
			return nil, err
		}
	}
	if len(cfg.EarlyData) > 0 {
		if err := s.SetEarlyData(cfg.EarlyData); err != nil {
			return nil, err
		}
	}
	if cfg.OCSPResponseFile != "" {
		if err := s.SetOCSPResponderFile(cfg.OCSPResponseFile); err != nil {
			return nil, err
		}
	}
	if cfg.Timeouts.TCPReceiveS > 0 {
		if err := s.SetTCPReceiveTimeoutSeconds(cfg.Timeouts.TCPReceiveS); err != nil {
			return nil, err
		}
	}
	return s, nil
}
