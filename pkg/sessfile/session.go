// SPDX-License-Identifier: MPL-2.0

package sessfile

import (
	"errors"
	"fmt"
)

type (
	// Session is the per-instance handle passed to user functions. The engine
	// provides the implementation; the configuration host binds these methods
	// into the scripting surface.
	Session interface {
		// Install delegates to the backend's install primitive. It is a no-op
		// when the environment was reused and install skipping is in effect.
		Install(args ...string) error
		// CondaInstall installs packages with the conda-family tool; it fails
		// on non-conda backends. Channels may be empty.
		CondaInstall(channels []string, args ...string) error
		// Run executes one command inside the environment.
		Run(argv []string, opts ...RunOption) error
		// RunInstall is like Run but skipped when the environment was reused
		// and install skipping is in effect.
		RunInstall(argv []string, opts ...RunOption) error
		// RunShell executes one shell-syntax line with the embedded POSIX
		// interpreter, under the same environment contract as Run.
		RunShell(line string, opts ...RunOption) error
		// RunShellInstall is RunShell with RunInstall's skip semantics.
		RunShellInstall(line string, opts ...RunOption) error
		// InstallAndRunScript installs the dependencies named in the script's
		// inline metadata block, then executes the script with the session
		// interpreter.
		InstallAndRunScript(path string, args ...string) error
		// Chdir changes the session's working directory. The returned restore
		// function puts the previous directory back; it may be ignored for a
		// permanent change.
		Chdir(path string) (restore func(), err error)
		// Notify enqueues another session after the current one; a no-op when
		// the target is already queued or completed.
		Notify(target string, posargs []string) error
		// CreateTmp creates (and returns) a session-scoped temp directory
		// inside the environment.
		CreateTmp() (string, error)

		// Log, Debug, Warn write to the driver log at the respective levels.
		Log(format string, args ...any)
		Debug(format string, args ...any)
		Warn(format string, args ...any)

		// Skip returns a control-flow error marking the session skipped.
		Skip(format string, args ...any) error
		// Error returns a control-flow error marking the session failed.
		Error(format string, args ...any) error

		// Name is the instance's canonical name.
		Name() string
		// Python is the concrete interpreter spec, or "" for host sessions.
		Python() string
		// VenvBackend is the name of the backend that produced the env.
		VenvBackend() string
		// EnvDir is the environment location, or "" for host sessions.
		EnvDir() string
		// Posargs is the per-instance copy of the trailing CLI arguments.
		Posargs() []string
		// SetPosargs replaces the instance's posargs copy.
		SetPosargs(args []string)
		// CallArgs returns the instance's call spec.
		CallArgs() *CallSpec
		// Interactive reports whether stdin is a terminal and interactivity
		// was not disabled.
		Interactive() bool
		// InvokedFrom is the directory the driver was invoked from.
		InvokedFrom() string
		// SetEnv overlays one environment variable for subsequent commands in
		// this instance only. An empty value sets the key to ""; UnsetEnv
		// removes it.
		SetEnv(key, value string)
		// UnsetEnv marks key for removal from subsequent command environments.
		UnsetEnv(key string)
	}

	// RunOption mutates the settings of a single Run/RunInstall call.
	RunOption func(*RunSettings)

	// RunSettings carries the per-call knobs of the Run family.
	RunSettings struct {
		// Env overlays environment variables for this call only.
		Env map[string]string
		// Silent buffers output instead of streaming it.
		Silent bool
		// SuccessCodes lists exit codes treated as success besides zero.
		SuccessCodes []int
		// External suppresses the external-use policy for this call.
		External bool
		// IncludeOuterEnv controls whether the host environment seeds the
		// process environment. Defaults to true.
		IncludeOuterEnv bool
		// Interactive requests PTY attachment for this call.
		Interactive bool
		// TimeoutSeconds bounds the call's wall-clock run time; zero means
		// no limit.
		TimeoutSeconds float64
	}

	// skipError marks a session as skipped.
	skipError struct{ msg string }

	// failError marks a session as failed by explicit user request.
	failError struct{ msg string }
)

// Run option constructors.

// WithEnv overlays environment variables for one call.
func WithEnv(env map[string]string) RunOption {
	return func(s *RunSettings) { s.Env = env }
}

// WithSilent buffers the call's output instead of streaming it.
func WithSilent() RunOption {
	return func(s *RunSettings) { s.Silent = true }
}

// WithSuccessCodes accepts the listed exit codes as success.
func WithSuccessCodes(codes ...int) RunOption {
	return func(s *RunSettings) { s.SuccessCodes = codes }
}

// WithExternal allows the command to resolve outside the environment bin dir.
func WithExternal() RunOption {
	return func(s *RunSettings) { s.External = true }
}

// WithoutOuterEnv drops the host environment from the process environment.
func WithoutOuterEnv() RunOption {
	return func(s *RunSettings) { s.IncludeOuterEnv = false }
}

// WithInteractive requests PTY attachment for this call.
func WithInteractive() RunOption {
	return func(s *RunSettings) { s.Interactive = true }
}

// WithTimeout bounds the call's wall-clock run time in seconds.
func WithTimeout(seconds float64) RunOption {
	return func(s *RunSettings) { s.TimeoutSeconds = seconds }
}

// NewRunSettings applies opts over the defaults.
func NewRunSettings(opts ...RunOption) *RunSettings {
	s := &RunSettings{IncludeOuterEnv: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (e *skipError) Error() string { return e.msg }
func (e *failError) Error() string { return e.msg }

// NewSkip builds the control-flow error returned by Session.Skip.
func NewSkip(format string, args ...any) error {
	return &skipError{msg: fmt.Sprintf(format, args...)}
}

// NewFailure builds the control-flow error returned by Session.Error.
func NewFailure(format string, args ...any) error {
	return &failError{msg: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err (or anything it wraps) marks a skipped session.
func IsSkip(err error) bool {
	var se *skipError
	return errors.As(err, &se)
}

// IsFailure reports whether err marks an explicit user-requested failure.
func IsFailure(err error) bool {
	var fe *failError
	return errors.As(err, &fe)
}
