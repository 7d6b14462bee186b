// SPDX-License-Identifier: MPL-2.0

//go:build windows

package command

import (
	"os"
	"os/exec"
)

// setProcAttributes is a no-op on Windows; there is no process-group signal
// delivery to configure.
func setProcAttributes(_ *exec.Cmd) {}

// Windows has no SIGINT/SIGTERM delivery to another process; every rung of
// the ladder falls through to Kill.
func interruptProcess(cmd *exec.Cmd) { killIfRunning(cmd) }
func terminateProcess(cmd *exec.Cmd) { killIfRunning(cmd) }
func killProcess(cmd *exec.Cmd)      { killIfRunning(cmd) }

func killIfRunning(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(os.Kill)
}
