package config

import "testing"

func TestApplyEnvOverlayLeavesDefaultsUntouchedWithoutEnv(t *testing.T) {
	cfg := Default()
	cfg.ServiceName = "tlstesttool"
	ApplyEnvOverlay(cfg)
	if cfg.ServiceName != "tlstesttool" {
		t.Fatalf("ServiceName = %q, want unchanged default", cfg.ServiceName)
	}
	if cfg.LogRotation.Enabled {
		t.Fatal("LogRotation.Enabled should remain false without an env override")
	}
}

func TestApplyEnvOverlayReadsTLSTESTTOOLPrefixedVars(t *testing.T) {
	t.Setenv("TLSTESTTOOL_SERVICE_NAME", "tlstesttool-ci")
	t.Setenv("TLSTESTTOOL_LOG_ROTATION_ENABLED", "true")
	t.Setenv("TLSTESTTOOL_LOG_ROTATION_MAX_SIZE_MB", "42")

	cfg := Default()
	ApplyEnvOverlay(cfg)

	if cfg.ServiceName != "tlstesttool-ci" {
		t.Fatalf("ServiceName = %q, want %q", cfg.ServiceName, "tlstesttool-ci")
	}
	if !cfg.LogRotation.Enabled {
		t.Fatal("expected TLSTESTTOOL_LOG_ROTATION_ENABLED=true to enable rotation")
	}
	if cfg.LogRotation.MaxSizeMB != 42 {
		t.Fatalf("LogRotation.MaxSizeMB = %d, want 42", cfg.LogRotation.MaxSizeMB)
	}
}
