// Package cmd holds the eventhub command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	serve := newServeCmd(flags)

	root := &cobra.Command{
		Use:   "eventhub",
		Short: "eventhub - event management API server",
		Long: `eventhub serves a REST API for managing events, categories and the
users who take part in them.

It provides:
- Account registration and JWT sign-in with rotating refresh tokens
- Category and event management for administrators
- Event participation with capacity limits
- Background cleanup of expired refresh tokens`,
		SilenceUsage: true,
		// Serve when no subcommand is given.
		RunE: serve.RunE,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file (environment variables override it)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format (json, console) (default: json)")
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(newMigrateCmd(flags))
	root.AddCommand(newCleanupTokensCmd(flags))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newHealthcheckCmd())
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the logging flags.
func (f *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.LoadWithFile(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}
	return cfg, nil
}
