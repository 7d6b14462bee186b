// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"os"
	"path/filepath"
	"regexp"

	"sesh-cli/internal/platform"
)

// condaVersionRe extracts the plain version from a conda interpreter spec;
// conda wants "python=3.12", not an executable name.
var condaVersionRe = regexp.MustCompile(`^\d(\.\d+)*$`)

type (
	// CondaBackend creates environments with a conda-family tool: conda,
	// mamba, or micromamba. The tool must be on PATH.
	CondaBackend struct {
		// Tool is the conda-family executable name.
		Tool string
	}
)

// NewConda returns the backend for one conda-family tool name.
func NewConda(tool string) CondaBackend {
	return CondaBackend{Tool: tool}
}

func (b CondaBackend) Name() string { return b.Tool }

// Available reports whether the tool is on PATH.
func (b CondaBackend) Available() bool {
	return Context{}.toolOnPath(b.Tool)
}

// Create builds a conda prefix environment. A stale environment is removed
// with `remove --all` first so the create starts clean.
func (b CondaBackend) Create(ctx Context, location, interpreter string, params []string) error {
	if _, err := ctx.lookPath(b.Tool); err != nil {
		return wrapUnavailable(b.Tool, err)
	}
	if dirExists(location) {
		remove := []string{b.Tool, "remove", "--yes", "--prefix", location, "--all"}
		if err := ctx.run(remove, nil); err != nil {
			ctx.logger().Debug("conda remove failed; recreating over it", "location", location, "err", err)
		}
	}
	argv := []string{b.Tool, "create", "--yes", "--prefix", location}
	argv = append(argv, params...)
	if spec := condaPythonSpec(interpreter); spec != "" {
		argv = append(argv, spec)
	}
	ctx.logger().Debug("creating conda environment", "tool", b.Tool, "location", location)
	return ctx.run(argv, nil)
}

func condaPythonSpec(interpreter string) string {
	if interpreter == "" {
		return "python"
	}
	if condaVersionRe.MatchString(interpreter) {
		return "python=" + interpreter
	}
	// Non-version specs (pypy, explicit paths) are outside what conda can
	// request; fall back to an unpinned python and let install steps refine.
	return "python"
}

func (b CondaBackend) BinDir(location string) string {
	if platform.IsWindows() {
		return filepath.Join(location, "Scripts")
	}
	return filepath.Join(location, "bin")
}

func (b CondaBackend) InterpreterPath(location string) string {
	if platform.IsWindows() {
		return filepath.Join(location, "python.exe")
	}
	return filepath.Join(location, "bin", "python")
}

func (b CondaBackend) Overlay(location string) map[string]string {
	return map[string]string{
		"CONDA_PREFIX":      location,
		"CONDA_DEFAULT_ENV": location,
		"PATH":              b.BinDir(location),
	}
}

// Install runs `<tool> install --prefix`. Channels come from the caller;
// when none are given the tool's configured defaults apply.
func (b CondaBackend) Install(ctx Context, env *Environment, args []string, opts InstallOptions) error {
	argv := []string{b.Tool, "install", "--yes", "--prefix", env.Location}
	for _, channel := range opts.Channels {
		argv = append(argv, "--channel", channel)
	}
	argv = append(argv, args...)
	return ctx.run(argv, b.Overlay(env.Location))
}

// PipInstall installs with the environment's pip without resolving
// dependencies, for packages conda channels do not carry.
func (b CondaBackend) PipInstall(ctx Context, env *Environment, args []string) error {
	argv := append([]string{env.InterpreterPath, "-m", "pip", "install", "--no-deps"}, args...)
	return ctx.run(argv, b.Overlay(env.Location))
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
