package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/graphbatch/internal/config"
)

const maskedValue = "********"

// NewConfigShowCmd creates the config show command, which prints the
// effective configuration as YAML with secrets masked.
func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Example: `  # Show configuration after .env and environment overrides
  graphbatch config show`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *config.GetGlobalConfig()
			if cfg.Artifacts.S3.AccessKey != "" {
				cfg.Artifacts.S3.AccessKey = maskedValue
			}
			if cfg.Artifacts.S3.SecretKey != "" {
				cfg.Artifacts.S3.SecretKey = maskedValue
			}
			if cfg.Source.DSN != "" {
				cfg.Source.DSN = maskedValue
			}

			data, err := yaml.Marshal(&cfg)
			if err != nil {
				return fmt.Errorf("marshalling config: %w", err)
			}
			cmd.Printf("# %s\n", cfg.ConfigPath())
			cmd.Print(string(data))
			return nil
		},
	}
}
