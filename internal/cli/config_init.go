package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/graphbatch/internal/config"
)

// NewConfigInitCmd creates the config init command for initializing configuration.
// It writes the built-in defaults to the config path and drops a .gitignore
// next to it so caches and logs stay out of version control.
func NewConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

The file is written to --config when given, otherwise to $GRAPHBATCH_CONFIG or
~/.graphbatch/config.yaml. A .gitignore is created alongside it when missing.`,
		Example: `  # Create the default configuration
  graphbatch config init

  # Create configuration at a custom path, overwriting an existing file
  graphbatch config init --config ./graphbatch.yaml --force`,
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd, config.GetGlobalConfig().ConfigPath(), force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")

	return cmd
}

// initConfig writes the default configuration to configPath.
func initConfig(cmd *cobra.Command, configPath string, force bool) error {
	// Check if config already exists and force isn't set
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", configPath, err)
		}
	}

	cfg := config.Defaults()
	cfg.SetConfigPath(configPath)
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// Create .gitignore (never overwrites existing)
	created, err := config.EnsureGitignore(filepath.Dir(configPath))
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", configPath)
	if created {
		cmd.Printf("Created .gitignore to keep caches and logs out of version control\n")
	}

	return nil
}
