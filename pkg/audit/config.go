package audit

import (
	"os"
	"strconv"
	"time"
)

// Config controls audit behavior.
type Config struct {
	Enabled       bool          // Whether events are recorded. Default true.
	RetentionDays int           // How long to keep events. 0 disables cleanup. Default 90.
	CleanupEvery  time.Duration // Retention sweep interval. Default 1h.
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		RetentionDays: 90,
		CleanupEvery:  time.Hour,
	}
}

// ConfigFromEnv loads config from environment variables.
// HUANDAN_AUDIT_ENABLED, HUANDAN_AUDIT_RETENTION_DAYS
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("HUANDAN_AUDIT_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("HUANDAN_AUDIT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RetentionDays = n
		}
	}
	return cfg
}
