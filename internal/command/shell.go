// SPDX-License-Identifier: MPL-2.0

package command

import (
	"bytes"
	"context"
	"strings"
	"time"

	"sesh-cli/internal/core"
	"sesh-cli/internal/envbuild"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// RunShell executes one shell-syntax line with the embedded POSIX
// interpreter. The line runs under the request's composed environment, so
// PATH lookups see the environment bin dir first. This keeps one-string
// commands portable to hosts without a POSIX /bin/sh.
func (r *Runner) RunShell(ctx context.Context, line string, req *Request) (*Outcome, error) {
	start := time.Now()

	prog, err := syntax.NewParser().Parse(strings.NewReader(line), "command")
	if err != nil {
		return &Outcome{ExitCode: -1, Duration: time.Since(start)},
			core.Wrap(core.KindCommandFailed, err, "shell syntax error in %q", line)
	}

	var buf bytes.Buffer
	stdout := orStdout(req.Stdout)
	stderr := orStderr(req.Stderr)
	if req.Silent {
		stdout = &buf
		stderr = &buf
	}

	opts := []interp.RunnerOption{
		interp.Dir(req.Dir),
		interp.Env(expand.ListEnviron(envbuild.ToSlice(req.Env)...)),
		interp.StdIO(req.Stdin, stdout, stderr),
	}
	sh, err := interp.New(opts...)
	if err != nil {
		return &Outcome{ExitCode: -1, Duration: time.Since(start)},
			core.Wrap(core.KindCommandFailed, err, "failed to create shell interpreter")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	runErr := sh.Run(runCtx, prog)
	outcome := &Outcome{
		Duration: time.Since(start),
		Output:   buf.String(),
	}
	if runErr == nil {
		return outcome, nil
	}
	if status, ok := interp.IsExitStatus(runErr); ok {
		outcome.ExitCode = int(status)
	} else {
		outcome.ExitCode = -1
	}
	if runCtx.Err() != nil && ctx.Err() == nil {
		outcome.TimedOut = true
	}
	return r.classify(&Request{Argv: []string{line}, SuccessCodes: req.SuccessCodes, Timeout: req.Timeout}, outcome)
}
