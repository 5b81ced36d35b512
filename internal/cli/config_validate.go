package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/graphbatch/internal/config"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the effective configuration (file, .env and GRAPHBATCH_* variables).

This includes:
- Worker, queue, retry and limit bounds
- Duration syntax for timeouts and intervals
- Source format and column mapping
- Backend command and version constraint syntax
- Artifact backend settings`,
		Example: `  # Validate current configuration
  graphbatch config validate

  # Validate and show detailed information
  graphbatch config validate --verbose`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()

	if err := cfg.Validate(); err != nil {
		cmd.PrintErrln("Configuration errors:")
		return &ExitError{Code: ExitUsage, Reason: "configuration validation failed", Err: err}
	}

	cmd.Printf("Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Config file: %s\n", cfg.ConfigPath())
	cmd.Printf("  Source: %s\n", describeSource(cfg.Source))
	if cfg.Source.Limit > 0 {
		cmd.Printf("  Limit: %d\n", cfg.Source.Limit)
	} else {
		cmd.Println("  Limit: all records")
	}
	cmd.Printf("  Workers: %d\n", cfg.Dispatch.Workers)
	cmd.Printf("  Backend command: %s\n", cfg.Backend.Command)
	if cfg.Backend.VersionConstraint != "" {
		cmd.Printf("  Backend version: %s\n", cfg.Backend.VersionConstraint)
	}
	cmd.Printf("  Artifact backend: %s\n", cfg.Artifacts.Backend)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Log file: %s\n", cfg.Logging.File)
}
