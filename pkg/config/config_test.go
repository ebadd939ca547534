package config

import (
	"strings"
	"testing"
	"time"
)

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected default config to validate, got: %v", err)
	}
	if !cfg.Options.UseHandleCache {
		t.Error("expected UseHandleCache to default true")
	}
	if cfg.Options.CommandTimeout != 30*time.Second {
		t.Errorf("expected 30s default command timeout, got %s", cfg.Options.CommandTimeout)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected INFO default log level, got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Options: Options{CommandTimeout: 5 * time.Second},
		Pool:    PoolOptions{MaxPoolSize: 10},
	}
	ApplyDefaults(cfg)

	if cfg.Options.CommandTimeout != 5*time.Second {
		t.Errorf("ApplyDefaults overwrote explicit CommandTimeout: got %s", cfg.Options.CommandTimeout)
	}
	if cfg.Pool.MaxPoolSize != 10 {
		t.Errorf("ApplyDefaults overwrote explicit MaxPoolSize: got %d", cfg.Pool.MaxPoolSize)
	}
	// Untouched fields still get defaults.
	if cfg.Pool.IdleTimeout != 5*time.Minute {
		t.Errorf("expected IdleTimeout default, got %s", cfg.Pool.IdleTimeout)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "TRACE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("expected error to mention logging.level, got: %v", err)
	}
}

func TestValidate_PortOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Options.NFSPort = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for out-of-range nfs_port")
	}
}

func TestValidate_MaintenanceRequiresInterval(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Pool.EnableMaintenance = true
	cfg.Pool.MaintenanceInterval = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error when maintenance enabled with zero interval")
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected missing config file to fall back to defaults, got error: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default logging level, got %q", cfg.Logging.Level)
	}
}
