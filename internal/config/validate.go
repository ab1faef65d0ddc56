package config

import (
	"github.com/BSI-Bund/TaSK/internal/errs"
	"github.com/BSI-Bund/TaSK/internal/tlssession"
)

// validate enforces the invariants spec.md §3 states that cannot be
// checked locally while a single key is being parsed.
func validate(cfg *Config) error {
	if cfg.Port == 0 {
		return &errs.ConfigError{Key: "port", Reason: "required, must be nonzero"}
	}
	if cfg.Mode == ModeClient && cfg.Host == "" {
		return &errs.ConfigError{Key: "host", Reason: "required when mode=client"}
	}
	if cfg.TLSVersion.Major != 3 {
		return &errs.ConfigError{Key: "tlsVersion", Reason: "major must be 3"}
	}
	if cfg.TLSVersion.Minor > 4 {
		return &errs.ConfigError{Key: "tlsVersion", Reason: "minor must be in 0..4"}
	}
	if cfg.HandshakeType != tlssession.HandshakeNormal && cfg.Backend != BackendModern {
		return &errs.ConfigError{Key: "handshakeType", Reason: "resumption and zero-RTT require backend=modern"}
	}
	return nil
}
