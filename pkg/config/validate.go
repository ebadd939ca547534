package config

import "fmt"

// Validate checks invariants that ApplyDefaults alone can't guarantee —
// primarily field combinations and ranges called out in the `validate:`
// struct tags on Options/PoolOptions/HealthOptions/LoggingConfig.
func Validate(cfg *Config) error {
	if err := validateOptions(&cfg.Options); err != nil {
		return err
	}
	if err := validatePool(&cfg.Pool); err != nil {
		return err
	}
	if err := validateHealth(&cfg.Health); err != nil {
		return err
	}
	return validateLogging(&cfg.Logging)
}

func validateOptions(o *Options) error {
	if o.NFSPort < 0 || o.NFSPort > 65535 {
		return fmt.Errorf("options.nfs_port must be between 0 and 65535, got %d", o.NFSPort)
	}
	if o.MountPort < 0 || o.MountPort > 65535 {
		return fmt.Errorf("options.mount_port must be between 0 and 65535, got %d", o.MountPort)
	}
	if o.CommandTimeout < 0 {
		return fmt.Errorf("options.command_timeout must not be negative, got %s", o.CommandTimeout)
	}
	return nil
}

func validatePool(p *PoolOptions) error {
	if p.MaxPoolSize < 0 {
		return fmt.Errorf("pool.max_pool_size must not be negative, got %d", p.MaxPoolSize)
	}
	if p.IdleTimeout < 0 {
		return fmt.Errorf("pool.idle_timeout must not be negative, got %s", p.IdleTimeout)
	}
	if p.EnableMaintenance && p.MaintenanceInterval <= 0 {
		return fmt.Errorf("pool.maintenance_interval must be positive when pool.enable_maintenance is set")
	}
	return nil
}

func validateHealth(h *HealthOptions) error {
	if h.UnhealthyThreshold < 0 {
		return fmt.Errorf("health.unhealthy_threshold must not be negative, got %d", h.UnhealthyThreshold)
	}
	if h.AutoHeartbeat && h.HeartbeatInterval <= 0 {
		return fmt.Errorf("health.heartbeat_interval must be positive when health.auto_heartbeat is set")
	}
	return nil
}

func validateLogging(l *LoggingConfig) error {
	switch l.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", l.Format)
	}
	if l.Output == "" {
		return fmt.Errorf("logging.output must not be empty")
	}
	return nil
}
