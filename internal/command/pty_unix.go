// SPDX-License-Identifier: MPL-2.0

//go:build unix

package command

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// runInteractive attaches the child to a PTY and streams raw. The calling
// terminal is switched to raw mode for the duration when stdin is a tty.
func (r *Runner) runInteractive(ctx context.Context, cmd *exec.Cmd, req *Request, start time.Time) (*Outcome, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return &Outcome{ExitCode: -1, Duration: time.Since(start)}, classifyStartError(req.Argv[0], err)
	}
	defer func() { _ = ptmx.Close() }()

	if f, ok := req.Stdout.(*os.File); ok {
		_ = pty.InheritSize(f, ptmx)
	}

	stdin := req.Stdin
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		oldState, rawErr := term.MakeRaw(int(f.Fd()))
		if rawErr == nil {
			defer func() { _ = term.Restore(int(f.Fd()), oldState) }()
		}
	}

	if stdin != nil {
		go func() { _, _ = io.Copy(ptmx, stdin) }()
	}
	go func() { _, _ = io.Copy(orStdout(req.Stdout), ptmx) }()

	outcome := r.supervise(ctx, cmd, req)
	outcome.Duration = time.Since(start)
	return r.classify(req, outcome)
}
