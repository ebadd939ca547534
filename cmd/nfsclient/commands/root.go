// Package commands implements the nfsclient CLI commands.
package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/pkg/client"
	"github.com/marmos91/nfsclient/pkg/client/engine"
	"github.com/marmos91/nfsclient/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile    string
	serverAddr string
	exportPath string
	nfsVersion int

	v = viper.New()

	activeClient *client.Client
	activeLog    *logger.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nfsclient",
	Short: "nfsclient - command-line driver for the NFS client library",
	Long: `nfsclient connects to an NFS server, mounts an export, and runs a single
file operation (ls, cat, stat, cp) against it. It exists to exercise
pkg/client by hand the way a unit test can't, not to replace the
operating system's own NFS mount.

Use "nfsclient [command] --help" for more information about a command.`,
	SilenceUsage:     true,
	SilenceErrors:    true,
	PersistentPreRunE: connect,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		disconnect()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/nfsclient/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "NFS server address (host or host:port)")
	rootCmd.PersistentFlags().StringVar(&exportPath, "export", "", "export path to mount")
	rootCmd.PersistentFlags().IntVar(&nfsVersion, "nfs-version", 3, "NFS version to speak: 2, 3, or 4")

	if err := config.BindFlags(rootCmd, v); err != nil {
		Exit("failed to bind flags: %v", err)
	}

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(cpCmd)
}

// connect loads configuration, builds a logger, and opens the Client every
// subcommand below shares. Subcommands needing none of this (currently
// none) would set cobra's PersistentPreRunE override to skip it, the way
// the teacher's own commands bypass shared setup when they don't need it.
func connect(cmd *cobra.Command, args []string) error {
	if serverAddr == "" {
		return fmt.Errorf("--addr is required")
	}
	if exportPath == "" {
		return fmt.Errorf("--export is required")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to apply flags: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	activeLog = log

	ver, err := parseVersion(nfsVersion)
	if err != nil {
		return err
	}

	c := client.New(ver, &cfg.Options, log)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(cfg))
	defer cancel()

	if err := c.Connect(ctx, serverAddr); err != nil {
		return fmt.Errorf("connect to %s: %w", serverAddr, err)
	}
	if err := c.MountDevice(ctx, exportPath); err != nil {
		_ = c.Disconnect()
		return fmt.Errorf("mount %s: %w", exportPath, err)
	}

	activeClient = c
	return nil
}

func disconnect() {
	if activeClient != nil {
		_ = activeClient.Disconnect()
		activeClient = nil
	}
}

func connectTimeout(cfg *config.Config) time.Duration {
	if cfg.Options.CommandTimeout > 0 {
		return cfg.Options.CommandTimeout
	}
	return 30 * time.Second
}

func parseVersion(n int) (engine.Version, error) {
	switch n {
	case 2:
		return engine.V2, nil
	case 3:
		return engine.V3, nil
	case 4:
		return engine.V4, nil
	default:
		return 0, fmt.Errorf("unsupported --nfs-version %d (want 2, 3, or 4)", n)
	}
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
