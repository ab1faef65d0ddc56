package config

import (
	"strings"

	"github.com/spf13/viper"
)

// ApplyEnvOverlay layers an optional TLSTESTTOOL_* environment overlay on
// top of an already-loaded Config, covering only the ambient settings
// SPEC_FULL.md §3.2/§4 adds on top of spec.md's strict key=value grammar
// (log rotation, service name) — it never touches any field the §4.2
// grammar itself owns. Grounded on the teacher's config.load's
// viper.AutomaticEnv/SetEnvKeyReplacer/SetDefault pattern, scoped down to
// a private *viper.Viper instance so this overlay cannot be confused with
// (or collide with) the strict parser's own key space.
func ApplyEnvOverlay(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("TLSTESTTOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service_name", cfg.ServiceName)
	v.SetDefault("log_rotation.enabled", cfg.LogRotation.Enabled)
	v.SetDefault("log_rotation.filename", cfg.LogRotation.Filename)
	v.SetDefault("log_rotation.max_size_mb", cfg.LogRotation.MaxSizeMB)
	v.SetDefault("log_rotation.max_backups", cfg.LogRotation.MaxBackups)
	v.SetDefault("log_rotation.max_age_days", cfg.LogRotation.MaxAgeDays)
	v.SetDefault("log_rotation.compress", cfg.LogRotation.Compress)

	cfg.ServiceName = v.GetString("service_name")
	cfg.LogRotation.Enabled = v.GetBool("log_rotation.enabled")
	cfg.LogRotation.Filename = v.GetString("log_rotation.filename")
	cfg.LogRotation.MaxSizeMB = v.GetInt("log_rotation.max_size_mb")
	cfg.LogRotation.MaxBackups = v.GetInt("log_rotation.max_backups")
	cfg.LogRotation.MaxAgeDays = v.GetInt("log_rotation.max_age_days")
	cfg.LogRotation.Compress = v.GetBool("log_rotation.compress")
}
