// Package backend runs the external parser once per record and persists what
// it produces.
package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for structured error handling across the backend integration.
var (
	// ErrBackendNotFound indicates the backend command is not in PATH.
	ErrBackendNotFound = errors.New("backend command not found in PATH")

	// ErrBackendFailed indicates the backend exited with a non-zero status.
	ErrBackendFailed = errors.New("backend command failed")

	// ErrVersionMismatch indicates the installed backend does not satisfy the constraint.
	ErrVersionMismatch = errors.New("backend version does not satisfy constraint")

	// ErrVersionUnknown indicates no version could be parsed from the backend output.
	ErrVersionUnknown = errors.New("could not determine backend version")
)

// maxStderrLen bounds how much stderr is carried in an error message.
const maxStderrLen = 2048

// FailedError wraps ErrBackendFailed with the cause and the trimmed stderr.
func FailedError(cause error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > maxStderrLen {
		stderr = "..." + stderr[len(stderr)-maxStderrLen:]
	}
	if stderr == "" {
		return fmt.Errorf("%w: %w", ErrBackendFailed, cause)
	}
	return fmt.Errorf("%w: %w: %s", ErrBackendFailed, cause, stderr)
}
