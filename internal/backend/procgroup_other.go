//go:build !unix

package backend

import "os/exec"

// setProcessGroup is a no-op where process groups are unavailable; cancellation
// kills only the direct child.
func setProcessGroup(*exec.Cmd) {}
