// SPDX-License-Identifier: MPL-2.0

//go:build unix

package command

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttributes places the child in its own process group so the
// escalation ladder reaches grandchildren too.
func setProcAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interruptProcess(cmd *exec.Cmd) {
	signalGroup(cmd, unix.SIGINT)
}

func terminateProcess(cmd *exec.Cmd) {
	signalGroup(cmd, unix.SIGTERM)
}

func killProcess(cmd *exec.Cmd) {
	signalGroup(cmd, unix.SIGKILL)
}

// signalGroup signals the child's process group, falling back to the child
// itself when the group signal fails (e.g. the group is already gone).
func signalGroup(cmd *exec.Cmd, sig unix.Signal) {
	if cmd.Process == nil {
		return
	}
	if err := unix.Kill(-cmd.Process.Pid, sig); err != nil {
		_ = cmd.Process.Signal(sig)
	}
}
