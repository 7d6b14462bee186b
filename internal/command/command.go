// SPDX-License-Identifier: MPL-2.0

// Package command spawns external processes with a controlled environment,
// captures output, enforces timeouts, propagates interrupts through an
// escalation ladder, and classifies exits.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"sesh-cli/internal/core"
	"sesh-cli/internal/envbuild"

	"github.com/charmbracelet/log"
)

// External-command policies for commands resolving outside the env bin dir.
const (
	// ExternalStrict fails the command without launching it.
	ExternalStrict ExternalPolicy = "strict"
	// ExternalWarn logs a warning and runs the command.
	ExternalWarn ExternalPolicy = "warn"
	// ExternalAllow runs the command silently.
	ExternalAllow ExternalPolicy = "allow"
)

// DefaultGrace is the pause between escalation steps when interrupting a
// child process (SIGINT, then SIGTERM, then SIGKILL).
const DefaultGrace = 2 * time.Second

// ErrInterrupted marks a run that ended because of a driver-level interrupt.
// The runner loop re-raises after recording the session as failed.
var ErrInterrupted = errors.New("interrupted")

type (
	// ExternalPolicy controls commands that resolve outside the environment.
	ExternalPolicy string

	// Request describes one command execution.
	Request struct {
		// Argv is the command and its arguments; must be non-empty.
		Argv []string
		// Dir is the working directory.
		Dir string
		// Env is the fully composed process environment.
		Env map[string]string
		// BinDir is the environment's scripts directory, searched before
		// PATH and used for the external-use check. Empty for host sessions.
		BinDir string
		// Stdin, Stdout, Stderr are the process's standard streams when not
		// silent. Nil Stdout/Stderr fall back to the driver's streams.
		Stdin          io.Reader
		Stdout, Stderr io.Writer
		// Silent buffers combined output instead of streaming it.
		Silent bool
		// SuccessCodes lists exit codes treated as success besides zero.
		SuccessCodes []int
		// External suppresses the external-use policy for this call.
		External bool
		// ExternalPolicy is the invocation-level policy.
		ExternalPolicy ExternalPolicy
		// Interactive attaches the child to a PTY.
		Interactive bool
		// Timeout bounds wall-clock run time; zero means no limit.
		Timeout time.Duration
		// Grace overrides DefaultGrace between escalation steps.
		Grace time.Duration
	}

	// Outcome is the classified result of one execution.
	Outcome struct {
		// ExitCode is the child's exit code; -1 when it never ran.
		ExitCode int
		// Output is the buffered combined output of a silent run.
		Output string
		// Duration is the wall-clock run time.
		Duration time.Duration
		// Interrupted reports that the run ended because of a driver-level
		// interrupt; the caller must re-raise after cleanup.
		Interrupted bool
		// TimedOut reports that the per-command timeout expired.
		TimedOut bool
	}

	// Runner executes Requests. Hooks are injectable for tests.
	Runner struct {
		// LookPath searches a single directory list for an executable.
		// When nil the default PATH-style search is used.
		LookPath func(name string, path string) (string, error)
		// Logger receives warnings (external-use, output dumps). When nil
		// the package-level charmbracelet logger is used.
		Logger *log.Logger
		// Notify registers sig handlers; swapped out in tests. Defaults to
		// signal.Notify.
		Notify func(c chan<- os.Signal, sig ...os.Signal)
	}
)

// NewRunner creates a Runner with default OS-backed hooks.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes one request and classifies the exit.
//
// The first argv element resolves as follows: explicit paths (absolute, or
// starting with "./", "/", or ".\") are used as-is; anything else searches
// the environment bin dir first, then the composed PATH. A resolution that
// lands outside the bin dir trips the external policy unless the request is
// marked External.
func (r *Runner) Run(ctx context.Context, req *Request) (*Outcome, error) {
	if len(req.Argv) == 0 {
		return nil, core.New(core.KindCommandFailed, "cannot run an empty command")
	}
	start := time.Now()

	path, external, err := r.resolveArgv0(req)
	if err != nil {
		return &Outcome{ExitCode: -1, Duration: time.Since(start)}, err
	}
	if external && !req.External && req.BinDir != "" {
		switch req.ExternalPolicy {
		case ExternalStrict:
			return &Outcome{ExitCode: -1, Duration: time.Since(start)}, core.New(
				core.KindExternalUse,
				"%q resolved outside the session environment (%s); pass external=true to run it anyway",
				req.Argv[0], path,
			)
		case ExternalWarn:
			r.logger().Warn("command is outside the session environment", "command", req.Argv[0], "resolved", path)
		}
	}

	cmd := exec.Command(path, req.Argv[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = envbuild.ToSlice(req.Env)
	setProcAttributes(cmd)

	var buf bytes.Buffer
	if req.Interactive {
		return r.runInteractive(ctx, cmd, req, start)
	}
	if req.Silent {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	} else {
		cmd.Stdout = orStdout(req.Stdout)
		cmd.Stderr = orStderr(req.Stderr)
	}
	cmd.Stdin = req.Stdin

	if err := cmd.Start(); err != nil {
		return &Outcome{ExitCode: -1, Duration: time.Since(start)}, classifyStartError(req.Argv[0], err)
	}

	outcome := r.supervise(ctx, cmd, req)
	outcome.Duration = time.Since(start)
	outcome.Output = buf.String()
	return r.classify(req, outcome)
}

// supervise waits for the child while watching for driver interrupts, the
// per-command timeout, and context cancellation. Any of the three triggers
// the escalation ladder.
func (r *Runner) supervise(ctx context.Context, cmd *exec.Cmd, req *Request) *Outcome {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	sigCh := make(chan os.Signal, 1)
	notify := r.Notify
	if notify == nil {
		notify = signal.Notify
	}
	notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	var timeoutCh <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	outcome := &Outcome{}
	var waitErr error
	select {
	case waitErr = <-done:
	case <-sigCh:
		outcome.Interrupted = true
		waitErr = r.escalate(cmd, done, req.grace())
	case <-timeoutCh:
		outcome.TimedOut = true
		waitErr = r.escalate(cmd, done, req.grace())
	case <-ctx.Done():
		outcome.Interrupted = true
		waitErr = r.escalate(cmd, done, req.grace())
	}

	outcome.ExitCode = exitCodeOf(waitErr)
	return outcome
}

// escalate interrupts the child, waits up to grace, terminates, waits again,
// then kills. It returns the child's wait error once it exits.
func (r *Runner) escalate(cmd *exec.Cmd, done chan error, grace time.Duration) error {
	interruptProcess(cmd)
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
	}
	terminateProcess(cmd)
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
	}
	killProcess(cmd)
	return <-done
}

// classify maps an outcome to its final (outcome, error) pair.
func (r *Runner) classify(req *Request, outcome *Outcome) (*Outcome, error) {
	switch {
	case outcome.Interrupted:
		return outcome, core.Wrap(core.KindCommandFailed, ErrInterrupted, "command interrupted")
	case outcome.TimedOut:
		return outcome, core.New(core.KindCommandFailed,
			"%q timed out after %s", strings.Join(req.Argv, " "), req.Timeout)
	case outcome.ExitCode == 0:
		return outcome, nil
	default:
		for _, code := range req.SuccessCodes {
			if outcome.ExitCode == code {
				return outcome, nil
			}
		}
		return outcome, core.New(core.KindCommandFailed,
			"command %s failed with exit code %d", req.Argv[0], outcome.ExitCode)
	}
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

func (req *Request) grace() time.Duration {
	if req.Grace > 0 {
		return req.Grace
	}
	return DefaultGrace
}

func classifyStartError(argv0 string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return core.Wrap(core.KindInterpreterMissing, err, "executable %q not found", argv0)
	}
	return core.Wrap(core.KindCommandFailed, err, "failed to start %q", argv0)
}

func exitCodeOf(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func orStdout(w io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return os.Stdout
}

func orStderr(w io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return os.Stderr
}
