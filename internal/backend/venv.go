// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"path/filepath"
	"strings"

	"sesh-cli/internal/core"
	"sesh-cli/internal/platform"
)

type (
	// VirtualenvBackend creates environments with the external "virtualenv"
	// tool, invoked either as a standalone executable or through the host
	// interpreter. It is the default backend.
	VirtualenvBackend struct{}

	// VenvBackend creates environments with the interpreter's own "venv"
	// module. It requires a concrete, non-2.x interpreter.
	VenvBackend struct{}
)

// --- virtualenv ---

func (VirtualenvBackend) Name() string { return Virtualenv }

// Available reports true when the virtualenv tool or a host interpreter to
// run it through exists. The tool ships with the driver's recommended
// installation, so this is effectively always true.
func (VirtualenvBackend) Available() bool { return true }

func (VirtualenvBackend) Create(ctx Context, location, interpreter string, params []string) error {
	argv, err := virtualenvArgv(ctx, location, interpreter, params)
	if err != nil {
		return err
	}
	ctx.logger().Debug("creating virtualenv", "location", location, "interpreter", interpreter)
	return ctx.run(argv, nil)
}

func virtualenvArgv(ctx Context, location, interpreter string, params []string) ([]string, error) {
	var argv []string
	switch {
	case ctx.toolOnPath("virtualenv"):
		argv = []string{"virtualenv"}
	default:
		host, err := ctx.resolver().Resolve("")
		if err != nil {
			return nil, core.Wrap(core.KindBackendUnavailable, err,
				"virtualenv backend needs the virtualenv tool or a host interpreter")
		}
		argv = []string{host, "-m", "virtualenv"}
	}
	if interpreter != "" {
		resolved, err := ctx.resolver().Resolve(interpreter)
		if err != nil {
			return nil, err
		}
		argv = append(argv, "-p", resolved)
	}
	argv = append(argv, params...)
	return append(argv, location), nil
}

func (VirtualenvBackend) BinDir(location string) string { return venvBinDir(location) }

func (VirtualenvBackend) InterpreterPath(location string) string { return venvInterpreter(location) }

func (VirtualenvBackend) Overlay(location string) map[string]string { return venvOverlay(location) }

func (b VirtualenvBackend) Install(ctx Context, env *Environment, args []string, _ InstallOptions) error {
	return pipInstall(ctx, env, args)
}

// --- venv ---

func (VenvBackend) Name() string { return Venv }

// Available reports true: the venv module ships with every supported
// interpreter, so availability is decided per-session by the interpreter
// check in Create.
func (VenvBackend) Available() bool { return true }

func (VenvBackend) Create(ctx Context, location, interpreter string, params []string) error {
	if strings.HasPrefix(interpreter, "2") || strings.HasPrefix(interpreter, "pypy-2") {
		return core.New(core.KindBackendUnavailable,
			"the venv backend requires a non-2.x interpreter, got %q", interpreter)
	}
	resolved, err := ctx.resolver().Resolve(interpreter)
	if err != nil {
		return err
	}
	argv := append([]string{resolved, "-m", "venv"}, params...)
	argv = append(argv, location)
	ctx.logger().Debug("creating venv", "location", location, "interpreter", resolved)
	return ctx.run(argv, nil)
}

func (VenvBackend) BinDir(location string) string { return venvBinDir(location) }

func (VenvBackend) InterpreterPath(location string) string { return venvInterpreter(location) }

func (VenvBackend) Overlay(location string) map[string]string { return venvOverlay(location) }

func (b VenvBackend) Install(ctx Context, env *Environment, args []string, _ InstallOptions) error {
	return pipInstall(ctx, env, args)
}

// --- shared venv-family helpers ---

func venvBinDir(location string) string {
	if platform.IsWindows() {
		return filepath.Join(location, "Scripts")
	}
	return filepath.Join(location, "bin")
}

func venvInterpreter(location string) string {
	if platform.IsWindows() {
		return filepath.Join(location, "Scripts", "python.exe")
	}
	return filepath.Join(location, "bin", "python")
}

func venvOverlay(location string) map[string]string {
	return map[string]string{
		"VIRTUAL_ENV": location,
		"PATH":        venvBinDir(location),
	}
}

// pipInstall runs the environment's own pip.
func pipInstall(ctx Context, env *Environment, args []string) error {
	argv := append([]string{env.InterpreterPath, "-m", "pip", "install"}, args...)
	return ctx.run(argv, map[string]string{"VIRTUAL_ENV": env.Location})
}
