// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"sesh-cli/internal/backend"
	"sesh-cli/internal/command"
	"sesh-cli/internal/core"
	"sesh-cli/internal/envbuild"
	"sesh-cli/internal/interpreter"
	"sesh-cli/internal/manifest"
	"sesh-cli/internal/options"
	"sesh-cli/pkg/sessfile"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

type (
	// Loop drives the manifest: one session at a time, strictly in queue
	// order, recording one Result per instance.
	Loop struct {
		// Manifest is the scheduled queue to drain.
		Manifest *manifest.Manifest
		// Opts is the frozen invocation record.
		Opts *options.Options
		// Backends manages environment lifecycle.
		Backends *backend.Manager
		// Runner executes session commands.
		Runner *command.Runner
		// Resolver locates interpreters.
		Resolver *interpreter.Resolver
		// Logger is the driver log.
		Logger *log.Logger
		// Stdout and Stderr receive streamed command output.
		Stdout, Stderr io.Writer
		// InvokedFrom is the directory the driver was started in.
		InvokedFrom string
		// CIEnv reports whether a CI environment was detected; it flips the
		// missing-interpreter default from skip to error.
		CIEnv bool
	}
)

// NewLoop wires a Loop from the invocation's collaborators.
func NewLoop(man *manifest.Manifest, opts *options.Options, logger *log.Logger) *Loop {
	cwd, _ := os.Getwd()
	return &Loop{
		Manifest:    man,
		Opts:        opts,
		Backends:    newManager(opts),
		Runner:      &command.Runner{Logger: logger},
		Resolver:    interpreter.NewResolver(),
		Logger:      logger,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		InvokedFrom: cwd,
		CIEnv:       os.Getenv("CI") != "",
	}
}

func newManager(opts *options.Options) *backend.Manager {
	m := backend.NewManager(opts.EnvDir)
	if opts.DefaultBackend != "" {
		m.DefaultBackend = opts.DefaultBackend
	}
	m.ForceBackend = opts.ForceBackend
	m.GlobalReuse = opts.ReuseMode
	return m
}

// Run drains the manifest and returns one Result per instance, in execution
// order. Setup errors (a requires cycle, a missing requires target) abort
// before any session runs.
func (l *Loop) Run(ctx context.Context) ([]*Result, error) {
	if err := l.Manifest.ScheduleRequires(); err != nil {
		return nil, err
	}

	var results []*Result
	for {
		inst := l.Manifest.Next()
		if inst == nil {
			break
		}
		result := l.runOne(ctx, inst)
		results = append(results, result)

		interrupted := result.Status == StatusFailed && result.Reason == "interrupted"
		if interrupted || (l.Opts.StopOnFirstError && result.Status == StatusFailed) {
			results = append(results, l.abortRemaining()...)
			if interrupted {
				return results, core.New(core.KindCommandFailed, "interrupted")
			}
			break
		}
	}
	return results, nil
}

// runOne executes a single instance: backend selection, environment
// creation or reuse, then the user function.
func (l *Loop) runOne(ctx context.Context, inst *sessfile.Instance) *Result {
	l.Logger.Info("Running session", "session", inst.Name)
	start := time.Now()
	result := &Result{Name: inst.Name, Args: callArgsMap(inst)}

	finish := func(status Status, reason string) *Result {
		result.Status = status
		result.Reason = reason
		result.Duration = time.Since(start)
		return result
	}

	bk, err := l.Backends.Select(inst)
	if err != nil {
		return finish(StatusFailed, err.Error())
	}

	bctx := backend.Context{
		Ctx:            ctx,
		Runner:         l.Runner,
		Resolver:       l.Resolver,
		Logger:         l.Logger,
		Stdout:         l.Stdout,
		Stderr:         l.Stderr,
		Verbose:        l.Opts.Verbose,
		DownloadPython: l.Opts.DownloadPython,
	}
	if cacheDir, cacheErr := l.Backends.CacheDir(); cacheErr == nil {
		bctx.CacheDir = cacheDir
	}

	env, err := l.Backends.Ensure(bctx, inst, bk)
	if err != nil {
		if core.IsKind(err, core.KindInterpreterMissing) && !l.errorOnMissingInterpreter() {
			l.Logger.Warn("skipping session: interpreter not found", "session", inst.Name, "python", inst.Python)
			return finish(StatusSkipped, "interpreter-missing")
		}
		if core.IsKind(err, core.KindInterpreterMissing) {
			return finish(StatusFailed, "interpreter-missing")
		}
		return finish(StatusFailed, err.Error())
	}
	if env.Reused {
		l.Logger.Debug("reusing existing environment", "session", inst.Name, "location", env.Location)
	}

	session := &Session{
		ctx:         ctx,
		inst:        inst,
		env:         env,
		bk:          bk,
		bctx:        bctx,
		runner:      l.Runner,
		logger:      l.Logger,
		opts:        l.Opts,
		manifest:    l.Manifest,
		workDir:     l.InvokedFrom,
		invokedFrom: l.InvokedFrom,
		interactive: l.stdinInteractive(),
		overlay:     make(map[string]string),
		envBuilder:  envbuild.NewBuilder(),
	}

	return l.classify(finish, session, l.invoke(inst, session))
}

// invoke runs the user function, converting a panic in user-provided code
// into an error rather than tearing the driver down.
func (l *Loop) invoke(inst *sessfile.Instance, session *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.New(core.KindCommandFailed, "session function panicked: %v", r)
		}
	}()
	if inst.Decl.Func == nil {
		return nil
	}
	return inst.Decl.Func(session)
}

// classify maps the user function's outcome onto a Result.
func (l *Loop) classify(finish func(Status, string) *Result, session *Session, err error) *Result {
	switch {
	case err == nil:
		l.Logger.Info("Session succeeded", "session", session.Name())
		return finish(StatusSuccess, "")
	case sessfile.IsSkip(err):
		l.Logger.Warn("Session skipped", "session", session.Name(), "reason", err.Error())
		return finish(StatusSkipped, err.Error())
	case errors.Is(err, command.ErrInterrupted):
		l.Logger.Error("Session interrupted", "session", session.Name())
		return finish(StatusFailed, "interrupted")
	default:
		l.Logger.Error("Session failed", "session", session.Name(), "err", err)
		return finish(StatusFailed, err.Error())
	}
}

// abortRemaining marks every still-queued instance aborted without running it.
func (l *Loop) abortRemaining() []*Result {
	var aborted []*Result
	for {
		inst := l.Manifest.Next()
		if inst == nil {
			return aborted
		}
		l.Logger.Warn("Session aborted", "session", inst.Name)
		aborted = append(aborted, &Result{
			Name:   inst.Name,
			Status: StatusAborted,
			Args:   callArgsMap(inst),
		})
	}
}

// errorOnMissingInterpreter folds the option with the CI heuristic: CI only
// supplies the default; an explicit choice from any source always wins.
func (l *Loop) errorOnMissingInterpreter() bool {
	if l.Opts.ErrorOnMissingExplicit {
		return l.Opts.ErrorOnMissingInterpreter
	}
	return l.CIEnv
}

func (l *Loop) stdinInteractive() bool {
	if l.Opts.NonInteractive {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func callArgsMap(inst *sessfile.Instance) map[string]any {
	if inst.CallArgs == nil || inst.CallArgs.Len() == 0 {
		return nil
	}
	return inst.CallArgs.Map()
}
