// Package commands implements the CLI commands for dittosftp transfers.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosftp/internal/logger"
	"github.com/marmos91/dittosftp/pkg/config"
	"github.com/marmos91/dittosftp/pkg/metrics"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"

	// Global flags.
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dittosftp",
	Short: "dittosftp - pipelined SFTP transfers",
	Long: `dittosftp is an SFTP client built around an asynchronous request engine:
reads and writes are issued as pipelined, size-capped requests whose responses
may return in any order, which keeps the wire full on high-latency links.

Use "dittosftp [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default: ./dittosftp.yaml if present)")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "override log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads and validates configuration, then initializes the
// logger and (optionally) the metrics registry.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	return cfg, nil
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("dittosftp %s (%s)\n", Version, Commit)
	},
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a sample configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "dittosftp.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		cmd.Printf("Wrote sample configuration to %s\n", path)
		return nil
	},
}
