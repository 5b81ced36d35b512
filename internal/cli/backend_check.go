package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/graphbatch/internal/artifact"
	"github.com/rshade/graphbatch/internal/backend"
	"github.com/rshade/graphbatch/internal/config"
	"github.com/rshade/graphbatch/internal/logging"
)

// NewBackendCheckCmd creates the backend check command, which verifies that
// the configured parser is installed and reports its version.
func NewBackendCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the graph parser is installed and compatible",
		Long: `Looks up the configured backend command in PATH, runs it with its version
arguments and checks the reported version against backend.version_constraint.`,
		Example: `  # Check the configured parser
  graphbatch backend check`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetGlobalConfig()

			path, err := backend.FindBinary(cfg.Backend.Command)
			if err != nil {
				return &ExitError{Code: ExitDispatch, Reason: "backend not installed", Err: err}
			}

			parser, err := backend.NewExec(
				backendOptions(cfg.Backend, logging.TraceIDFromContext(ctx)),
				artifact.NewMemoryStore(),
			)
			if err != nil {
				return usageError(err)
			}

			info, err := parser.CheckVersion(ctx)
			if err != nil {
				return &ExitError{Code: ExitDispatch, Reason: "backend version check failed", Err: err}
			}

			cmd.Printf("Backend: %s\n", path)
			cmd.Printf("Version: %s\n", info.Version)
			if info.Constraint != "" {
				cmd.Printf("Constraint: %s (satisfied)\n", info.Constraint)
			}
			return nil
		},
	}
}
