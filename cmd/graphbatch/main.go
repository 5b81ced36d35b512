package main

import (
	"errors"
	"os"

	"github.com/rshade/graphbatch/internal/cli"
	"github.com/rshade/graphbatch/pkg/version"
)

func main() {
	os.Exit(extractExitCode(run()))
}

// run executes the root command. Cobra has already printed the error, if any.
func run() error {
	root := cli.NewRootCmd(version.GetVersion())
	return root.Execute()
}

// extractExitCode maps a command error to the process exit code. An
// *cli.ExitError anywhere in the chain supplies its own code; any other error
// exits with 1.
func extractExitCode(err error) int {
	if err == nil {
		return cli.ExitOK
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return cli.ExitUsage
}
