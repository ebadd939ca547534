package config

import (
	"strings"
	"time"

	"github.com/marmos91/nfsclient/internal/bytesize"
)

// ApplyDefaults fills in zero-valued fields with sensible defaults after a
// config has been loaded from file/env. Explicit values are always
// preserved; only the zero value of each field is replaced.
func ApplyDefaults(cfg *Config) {
	applyOptionsDefaults(&cfg.Options)
	applyPoolDefaults(&cfg.Pool)
	applyHealthDefaults(&cfg.Health)
	applyLoggingDefaults(&cfg.Logging)
}

func applyOptionsDefaults(o *Options) {
	if o.CommandTimeout == 0 {
		o.CommandTimeout = 30 * time.Second
	}
	if o.CharacterEncoding == "" {
		o.CharacterEncoding = "utf-8"
	}
	// UseHandleCache defaults to on: nearly every workload benefits from
	// it, and the resolver's TTL/invalidation rules keep it correct.
	// Its zero value is false and cannot be told apart from an explicit
	// false here, so it is set by GetDefaultConfig, and by Load when the
	// file/env give no use_handle_cache value, rather than in this function.
	if o.MaxTransferSize == 0 {
		o.MaxTransferSize = 1 * bytesize.MiB
	}
}

func applyPoolDefaults(p *PoolOptions) {
	if p.IdleTimeout == 0 {
		p.IdleTimeout = 5 * time.Minute
	}
	if p.MaintenanceInterval == 0 {
		p.MaintenanceInterval = 30 * time.Second
	}
}

func applyHealthDefaults(h *HealthOptions) {
	if h.HeartbeatInterval == 0 {
		h.HeartbeatInterval = time.Minute
	}
	if h.UnhealthyThreshold == 0 {
		h.UnhealthyThreshold = 3
	}
	if h.HealthCheckTimeout == 0 {
		h.HealthCheckTimeout = 5 * time.Second
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "INFO"
	}
	l.Level = strings.ToUpper(l.Level)
	if l.Format == "" {
		l.Format = "text"
	}
	if l.Output == "" {
		l.Output = "stdout"
	}
}

// GetDefaultConfig returns a Config with every field set to its default,
// for use when no config file is present and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Options: Options{
			UseHandleCache: true,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
