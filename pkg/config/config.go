// Package config loads the client's connection, pool, and health-probe
// options the way the teacher loads server configuration: a layered
// viper.Viper (flags, then DITTOFS_*-style env vars, then file, then
// defaults) unmarshaled into plain structs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/nfsclient/internal/bytesize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Options are the per-connection settings passed to Client.Connect.
type Options struct {
	// UserID and GroupID are presented to the server as the AUTH_SYS
	// credential for every call this connection makes.
	UserID  uint32 `mapstructure:"user_id" yaml:"user_id"`
	GroupID uint32 `mapstructure:"group_id" yaml:"group_id"`

	// CommandTimeout bounds a single RPC round trip. Configured in the
	// file/env as command_timeout, a duration string such as "30s"; there
	// is no command_timeout_ms key, and a bare integer in the file is read
	// as nanoseconds.
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`

	// CharacterEncoding names the encoding filenames are assumed to be in
	// on the wire. NFS carries opaque byte strings; the client only
	// needs this to render names for logging/diagnostics.
	// Default: "utf-8"
	CharacterEncoding string `mapstructure:"character_encoding" yaml:"character_encoding"`

	// UsePrivilegedPort binds the client's outbound socket to a port below
	// 1024, which some servers require of AUTH_SYS clients.
	UsePrivilegedPort bool `mapstructure:"use_privileged_port" yaml:"use_privileged_port"`

	// UseHandleCache enables the path resolver's file-handle cache. When
	// false every path operation walks the LOOKUP chain from the root.
	UseHandleCache bool `mapstructure:"use_handle_cache" yaml:"use_handle_cache"`

	// NFSPort and MountPort override the portmapper GETPORT lookup for the
	// NFS and MOUNT programs respectively. Zero means "ask the portmapper".
	NFSPort   int `mapstructure:"nfs_port" validate:"omitempty,min=1,max=65535" yaml:"nfs_port"`
	MountPort int `mapstructure:"mount_port" validate:"omitempty,min=1,max=65535" yaml:"mount_port"`

	// MaxTransferSize caps the block_size negotiated from the server's
	// FSINFO/FSSTAT reply; Read/Write never request more than this per
	// call regardless of what the server advertises.
	// Supports human-readable sizes: "1MiB", "64KB".
	MaxTransferSize bytesize.ByteSize `mapstructure:"max_transfer_size" yaml:"max_transfer_size,omitempty"`
}

// PoolOptions configure a ConnectionPool.
type PoolOptions struct {
	// MaxPoolSize caps the number of live connections per (server, export,
	// version) key. Zero means unbounded.
	MaxPoolSize int `mapstructure:"max_pool_size" validate:"omitempty,min=0" yaml:"max_pool_size"`

	// IdleTimeout is how long a leased-and-returned connection may sit idle
	// before the maintenance sweep closes it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// EnableMaintenance starts the background sweep goroutine that evicts
	// idle and faulted connections.
	EnableMaintenance bool `mapstructure:"enable_maintenance" yaml:"enable_maintenance"`

	// MaintenanceInterval is the sweep cadence.
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval" yaml:"maintenance_interval"`
}

// HealthOptions configure a pool's background health probing.
type HealthOptions struct {
	// AutoHeartbeat makes health.NewChecker start one background goroutine
	// per Checker that periodically probes with GetAttributes(".") to drive
	// the Unknown -> Healthy -> Degraded -> Unhealthy state machine. The
	// pool itself creates no Checkers.
	AutoHeartbeat bool `mapstructure:"auto_heartbeat" yaml:"auto_heartbeat"`

	// HeartbeatInterval is the probe cadence.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`

	// UnhealthyThreshold is the number of consecutive probe failures
	// before a connection is marked Unhealthy.
	UnhealthyThreshold int `mapstructure:"unhealthy_threshold" validate:"omitempty,min=1" yaml:"unhealthy_threshold"`

	// HealthCheckTimeout bounds a single probe call.
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout" yaml:"health_check_timeout"`
}

// LoggingConfig controls the client's log output, mirroring the teacher's
// LoggingConfig shape.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format selects the rendering: "text" (TTY-colored when attached to
	// one) or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr", or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// Config is the root configuration document: connection defaults, pool
// policy, health-probe policy, and logging, loaded together so a single
// file/env namespace configures the whole client.
type Config struct {
	Options Options       `mapstructure:"options" yaml:"options"`
	Pool    PoolOptions   `mapstructure:"pool" yaml:"pool"`
	Health  HealthOptions `mapstructure:"health" yaml:"health"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// Load loads configuration from an optional file, NFSCLIENT_* environment
// variables, and defaults, in that order of increasing precedence.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NFSCLIENT_*)
//  2. Configuration file
//  3. Default values
//
// Environment variables override only keys that the configuration file
// sets. When no configuration file is found, Load returns
// GetDefaultConfig() and reads no environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if !v.IsSet("options.use_handle_cache") {
		cfg.Options.UseHandleCache = true
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// BindFlags registers the subset of Options/PoolOptions/HealthOptions that
// make sense as CLI flags on cmd and binds them into v, the way the
// teacher's cmd/dfs commands bind a viper.Viper instance before
// constructing server config. cobra flag values take precedence over
// both the env and the file once bound.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()

	flags.Uint32("user-id", 0, "AUTH_SYS uid presented to the server")
	flags.Uint32("group-id", 0, "AUTH_SYS gid presented to the server")
	flags.Duration("command-timeout", 30*time.Second, "per-call RPC timeout")
	flags.Bool("use-privileged-port", false, "bind the client socket to a port below 1024")
	flags.Bool("use-handle-cache", true, "cache resolved path -> file handle lookups")
	flags.Int("nfs-port", 0, "NFS program port (0: ask the portmapper)")
	flags.Int("mount-port", 0, "MOUNT program port (0: ask the portmapper)")

	flags.Int("max-pool-size", 0, "maximum connections per server/export/version (0: unbounded)")
	flags.Duration("idle-timeout", 5*time.Minute, "idle connection eviction threshold")

	flags.String("log-level", "INFO", "DEBUG, INFO, WARN, or ERROR")
	flags.String("log-format", "text", "text or json")

	bindings := map[string]string{
		"options.user_id":             "user-id",
		"options.group_id":            "group-id",
		"options.command_timeout":     "command-timeout",
		"options.use_privileged_port": "use-privileged-port",
		"options.use_handle_cache":    "use-handle-cache",
		"options.nfs_port":            "nfs-port",
		"options.mount_port":          "mount-port",
		"pool.max_pool_size":          "max-pool-size",
		"pool.idle_timeout":           "idle-timeout",
		"logging.level":               "log-level",
		"logging.format":              "log-format",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", flag, err)
		}
	}
	return nil
}

// setupViper configures environment variable and config file search
// behavior.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("NFSCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if present. Returns
// (fileFound, error); a missing file is not an error, it just means the
// caller should fall back to defaults.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the custom mapstructure decode hooks for
// bytesize.ByteSize and time.Duration fields.
func configDecodeHooks() mapstructureDecodeHookFunc {
	return composeDecodeHooks(byteSizeDecodeHook, durationDecodeHook)
}

// mapstructureDecodeHookFunc mirrors viper's expected hook signature
// without importing mapstructure directly; viper.DecodeHook accepts any
// function of this shape.
type mapstructureDecodeHookFunc func(reflect.Type, reflect.Type, interface{}) (interface{}, error)

func composeDecodeHooks(hooks ...mapstructureDecodeHookFunc) mapstructureDecodeHookFunc {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		var err error
		for _, hook := range hooks {
			data, err = hook(from, to, data)
			if err != nil {
				return nil, err
			}
		}
		return data, nil
	}
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize so
// config files and env vars can use human-readable sizes like "1MiB".
func byteSizeDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(bytesize.ByteSize(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return bytesize.ParseByteSize(v)
	case int:
		return bytesize.ByteSize(v), nil
	case int64:
		return bytesize.ByteSize(v), nil
	case uint64:
		return bytesize.ByteSize(v), nil
	case float64:
		return bytesize.ByteSize(v), nil
	default:
		return data, nil
	}
}

// durationDecodeHook converts strings and numbers to time.Duration so
// config files and env vars can use human-readable durations like "30s".
func durationDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Duration(v), nil
	case int64:
		return time.Duration(v), nil
	case float64:
		return time.Duration(v), nil
	default:
		return data, nil
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/nfsclient, falling back to
// ~/.config/nfsclient, or "." if the home directory can't be determined.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nfsclient")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nfsclient")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
