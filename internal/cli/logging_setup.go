package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/graphbatch/internal/config"
	"github.com/rshade/graphbatch/internal/logging"
)

// setupLogging configures logging based on config file, environment, and CLI flags.
func setupLogging(cmd *cobra.Command) logging.LogPathResult {
	loggingCfg := config.GetLoggingConfig()

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
	}

	if envLevel := os.Getenv(config.EnvLogLevel); envLevel != "" && !debug {
		loggingCfg.Level = envLevel
	}

	// Ensure log directory exists after all overrides have been applied.
	if loggingCfg.File != "" {
		if err := config.EnsureLogDir(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not create log directory: %v\n", err)
		}
	}

	result := logging.NewLoggerWithPath(loggingCfg.ToLoggingConfig())
	logger = logging.ComponentLogger(result.Logger, "cli")

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := cmd.Context()
	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)
	ctx = logger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Info().Ctx(ctx).Str("command", cmd.Name()).Msg("command started")

	return result
}

// redirectRunLogs sends run logs to path so they do not tear the progress
// bar. The current level is kept. When the file cannot be opened the context
// is returned unchanged and a warning is printed.
func redirectRunLogs(ctx context.Context, cmd *cobra.Command, path string) (context.Context, *logging.LogPathResult) {
	current := logging.FromContext(ctx)
	result := logging.NewLoggerWithPath(logging.Config{
		Level:  current.GetLevel().String(),
		Format: logging.FormatJSON,
		Output: logging.OutputFile,
		File:   path,
	})
	if !result.UsingFile {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
		return ctx, &result
	}

	logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	fileLogger := logging.ComponentLogger(result.Logger, "cli")
	return fileLogger.WithContext(ctx), &result
}

// cleanupLogging closes the log file handle.
func cleanupLogging(logResult *logging.LogPathResult) error {
	if logResult != nil {
		return logResult.Close()
	}
	return nil
}
