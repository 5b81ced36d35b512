package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// CommandRunner executes an external command and returns its stdout, stderr, and error.
// This interface enables testing without spawning real subprocesses.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// processWaitDelay bounds how long Run waits for output pipes after the
// process group has been killed.
const processWaitDelay = 100 * time.Millisecond

// execRunner is the default CommandRunner that uses exec.CommandContext.
// The command runs in its own process group and cancellation kills the whole
// group, so launchers that fork a JVM or other helpers do not outlive ctx.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	setProcessGroup(cmd)
	// Set WaitDelay before Start so a grandchild holding the pipes cannot block Wait.
	cmd.WaitDelay = processWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Runner is the package-level CommandRunner used when Options.Runner is nil.
var Runner CommandRunner = &execRunner{} //nolint:gochecknoglobals // Required for test injection

// FindBinary locates command in PATH.
func FindBinary(command string) (string, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBackendNotFound, command)
	}
	return path, nil
}
