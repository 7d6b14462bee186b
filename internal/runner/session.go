// SPDX-License-Identifier: MPL-2.0

// Package runner drives the manifest: it creates environments, wraps them in
// the per-session handle passed to user functions, executes commands, and
// records results.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sesh-cli/internal/backend"
	"sesh-cli/internal/command"
	"sesh-cli/internal/core"
	"sesh-cli/internal/envbuild"
	"sesh-cli/internal/manifest"
	"sesh-cli/internal/options"
	"sesh-cli/internal/scriptmeta"
	"sesh-cli/pkg/sessfile"

	"github.com/charmbracelet/log"
)

type (
	// Session is the per-run façade handed to user functions. It implements
	// sessfile.Session. A Session must not leak between instances: posargs
	// and the env overlay are private to one run.
	Session struct {
		ctx      context.Context
		inst     *sessfile.Instance
		env      *backend.Environment
		bk       backend.Backend
		bctx     backend.Context
		runner   *command.Runner
		logger   *log.Logger
		opts     *options.Options
		manifest *manifest.Manifest

		workDir     string
		invokedFrom string
		interactive bool

		// overlay holds env mutations made through SetEnv/UnsetEnv; they
		// affect only subsequent commands in this instance.
		overlay map[string]string

		envBuilder *envbuild.Builder
		tmpSeq     int
	}
)

var _ sessfile.Session = (*Session)(nil)

// --- command primitives ---

// Run executes one command inside the environment. Under --install-only the
// call is skipped.
func (s *Session) Run(argv []string, opts ...sessfile.RunOption) error {
	if s.opts.InstallOnly {
		s.logger.Debug("skipping run: install-only mode", "command", strings.Join(argv, " "))
		return nil
	}
	return s.runCommand(argv, sessfile.NewRunSettings(opts...))
}

// RunInstall is Run with install semantics: skipped when the environment was
// reused and install skipping is in effect.
func (s *Session) RunInstall(argv []string, opts ...sessfile.RunOption) error {
	if s.skipInstall("run_install") {
		return nil
	}
	return s.runCommand(argv, sessfile.NewRunSettings(opts...))
}

// RunShell executes one shell-syntax line with the embedded POSIX interpreter.
func (s *Session) RunShell(line string, opts ...sessfile.RunOption) error {
	if s.opts.InstallOnly {
		s.logger.Debug("skipping run_shell: install-only mode", "line", line)
		return nil
	}
	return s.runShellLine(line, sessfile.NewRunSettings(opts...))
}

// RunShellInstall is RunShell with RunInstall's skip semantics.
func (s *Session) RunShellInstall(line string, opts ...sessfile.RunOption) error {
	if s.skipInstall("run_shell_install") {
		return nil
	}
	return s.runShellLine(line, sessfile.NewRunSettings(opts...))
}

// Install delegates to the backend's install primitive. On the passthrough
// backend this is deprecated; the backend refuses unless the caller passed
// an explicit external marker through backend params.
func (s *Session) Install(args ...string) error {
	if len(args) == 0 {
		return core.New(core.KindCommandFailed, "install needs at least one package argument")
	}
	if s.skipInstall("install") {
		return nil
	}
	install := backend.InstallOptions{Silent: !s.opts.Verbose}
	if s.bk.Name() == backend.None {
		s.logger.Warn("installing without an environment modifies the host interpreter and is deprecated",
			"session", s.inst.Name)
		// The explicit external marker in the backend params is the only way
		// to opt in to a host install.
		for _, p := range s.inst.Decl.BackendParams {
			if p == "external" {
				install.External = true
			}
		}
	}
	return s.bk.Install(s.bctx, s.env, args, install)
}

// CondaInstall installs packages with the conda-family tool.
func (s *Session) CondaInstall(channels []string, args ...string) error {
	conda, ok := s.bk.(backend.CondaBackend)
	if !ok {
		return core.New(core.KindUnsupportedOperation,
			"conda_install requires a conda-family backend; session %q uses %q", s.inst.Name, s.bk.Name())
	}
	if len(channels) == 0 {
		s.logger.Warn("conda_install without explicit channels uses the tool's defaults", "session", s.inst.Name)
	}
	if s.skipInstall("conda_install") {
		return nil
	}
	return conda.Install(s.bctx, s.env, args, backend.InstallOptions{Channels: channels})
}

// InstallAndRunScript parses the script's inline metadata block, installs the
// declared dependencies, then executes the script with the session
// interpreter.
func (s *Session) InstallAndRunScript(path string, args ...string) error {
	meta, err := scriptmeta.ParseFile(s.resolvePath(path))
	if err != nil {
		return core.Wrap(core.KindCommandFailed, err, "failed to read script metadata from %s", path)
	}
	if meta.RequiresPython != "" {
		s.logger.Debug("script declares interpreter constraint", "script", path, "requires", meta.RequiresPython)
	}
	if len(meta.Dependencies) > 0 {
		if err := s.Install(meta.Dependencies...); err != nil {
			return err
		}
	}
	argv := append([]string{s.env.InterpreterPath, s.resolvePath(path)}, args...)
	return s.runCommand(argv, sessfile.NewRunSettings())
}

// runCommand executes one argv through the command runner with the session's
// composed environment. Buffered output of a failing silent command is
// dumped to the log at warning level.
func (s *Session) runCommand(argv []string, settings *sessfile.RunSettings) error {
	req := s.buildRequest(argv, settings)
	s.logger.Info(strings.Join(argv, " "), "session", s.inst.Name)
	outcome, err := s.runner.Run(s.ctx, req)
	s.dumpOnFailure(outcome, err)
	return err
}

func (s *Session) runShellLine(line string, settings *sessfile.RunSettings) error {
	req := s.buildRequest([]string{line}, settings)
	s.logger.Info(line, "session", s.inst.Name)
	outcome, err := s.runner.RunShell(s.ctx, line, req)
	s.dumpOnFailure(outcome, err)
	return err
}

func (s *Session) buildRequest(argv []string, settings *sessfile.RunSettings) *command.Request {
	extra := make(map[string]string, len(s.overlay)+len(settings.Env))
	for k, v := range s.overlay {
		extra[k] = v
	}
	for k, v := range settings.Env {
		extra[k] = v
	}

	var overlay map[string]string
	if s.env.Location != "" {
		overlay = s.bk.Overlay(s.env.Location)
	}
	env := s.envBuilder.Build(envbuild.Spec{
		IncludeHost: settings.IncludeOuterEnv,
		BinDir:      s.env.BinDir,
		Overlay:     overlay,
		Extra:       extra,
	})

	policy := command.ExternalWarn
	if s.opts.ErrorOnExternalRun {
		policy = command.ExternalStrict
	}

	silent := settings.Silent && !s.opts.Verbose

	return &command.Request{
		Argv:           argv,
		Dir:            s.workDir,
		Env:            env,
		BinDir:         s.env.BinDir,
		Stdin:          os.Stdin,
		Silent:         silent,
		SuccessCodes:   settings.SuccessCodes,
		External:       settings.External,
		ExternalPolicy: policy,
		Interactive:    settings.Interactive && s.interactive,
		Timeout:        time.Duration(settings.TimeoutSeconds * float64(time.Second)),
	}
}

func (s *Session) dumpOnFailure(outcome *command.Outcome, err error) {
	if err == nil || outcome == nil || outcome.Output == "" {
		return
	}
	s.logger.Warn("command output", "session", s.inst.Name, "output", strings.TrimSpace(outcome.Output))
}

// skipInstall reports whether install primitives are disabled for this run:
// the environment was reused and the skip-install invocation flag is set.
func (s *Session) skipInstall(what string) bool {
	if s.env.Reused && s.opts.NoInstall {
		s.logger.Debug("skipping: environment reused with --no-install", "primitive", what, "session", s.inst.Name)
		return true
	}
	return false
}

// --- workspace primitives ---

// Chdir changes the session's working directory for subsequent commands.
// The returned restore function puts the previous directory back.
func (s *Session) Chdir(path string) (func(), error) {
	resolved := s.resolvePath(path)
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return nil, core.New(core.KindCommandFailed, "cannot chdir to %q: not a directory", path)
	}
	prev := s.workDir
	s.workDir = resolved
	return func() { s.workDir = prev }, nil
}

// CreateTmp creates a session-scoped temp directory inside the environment
// (or the system temp dir for host sessions).
func (s *Session) CreateTmp() (string, error) {
	base := s.env.Location
	if base == "" {
		base = os.TempDir()
	}
	s.tmpSeq++
	dir := filepath.Join(base, "tmp", fmt.Sprintf("%s-%d", sanitizeTmpName(s.inst.Name), s.tmpSeq))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", core.Wrap(core.KindCommandFailed, err, "failed to create temp dir")
	}
	return dir, nil
}

// Notify enqueues another session after the current one.
func (s *Session) Notify(target string, posargs []string) error {
	added, err := s.manifest.Notify(target, posargs)
	if err != nil {
		return err
	}
	if added {
		s.logger.Debug("session notified", "from", s.inst.Name, "target", target)
	}
	return nil
}

// --- logging and control flow ---

// Log writes an info-level message to the driver log.
func (s *Session) Log(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...), "session", s.inst.Name)
}

// Debug writes a debug-level message to the driver log.
func (s *Session) Debug(format string, args ...any) {
	s.logger.Debug(fmt.Sprintf(format, args...), "session", s.inst.Name)
}

// Warn writes a warning to the driver log.
func (s *Session) Warn(format string, args ...any) {
	s.logger.Warn(fmt.Sprintf(format, args...), "session", s.inst.Name)
}

// Skip returns the control-flow error that marks this session skipped.
func (s *Session) Skip(format string, args ...any) error {
	return sessfile.NewSkip(format, args...)
}

// Error returns the control-flow error that marks this session failed.
func (s *Session) Error(format string, args ...any) error {
	return sessfile.NewFailure(format, args...)
}

// --- properties ---

// Name returns the instance's canonical name.
func (s *Session) Name() string { return s.inst.Name }

// Python returns the concrete interpreter spec, or "" for host sessions.
func (s *Session) Python() string { return s.inst.Python }

// VenvBackend returns the backend name that produced the environment.
func (s *Session) VenvBackend() string { return s.bk.Name() }

// EnvDir returns the environment location, or "" for host sessions.
func (s *Session) EnvDir() string { return s.env.Location }

// Posargs returns the instance's private posargs copy.
func (s *Session) Posargs() []string { return s.inst.Posargs }

// SetPosargs replaces the instance's posargs copy.
func (s *Session) SetPosargs(args []string) {
	s.inst.Posargs = append([]string(nil), args...)
}

// CallArgs returns the instance's call spec.
func (s *Session) CallArgs() *sessfile.CallSpec { return s.inst.CallArgs }

// Interactive reports whether stdin is a terminal and interactivity was not
// disabled with --non-interactive.
func (s *Session) Interactive() bool { return s.interactive }

// InvokedFrom returns the directory the driver was invoked from.
func (s *Session) InvokedFrom() string { return s.invokedFrom }

// SetEnv overlays one environment variable for subsequent commands in this
// instance only.
func (s *Session) SetEnv(key, value string) {
	s.overlay[key] = value
}

// UnsetEnv removes key from subsequent command environments.
func (s *Session) UnsetEnv(key string) {
	s.overlay[key] = envbuild.Unset
}

// resolvePath makes a relative path absolute against the session's working
// directory.
func (s *Session) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.workDir, path)
}

func sanitizeTmpName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, name)
}
