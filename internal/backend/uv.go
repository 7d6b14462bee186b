// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"path/filepath"
)

type (
	// UVBackend creates environments with the uv resolver's own venv
	// command. uv can download interpreters it does not find locally; the
	// download-python policy gates that.
	UVBackend struct{}
)

func (UVBackend) Name() string { return UV }

// Available reports whether uv is on PATH.
func (UVBackend) Available() bool {
	return Context{}.toolOnPath("uv")
}

func (UVBackend) Create(ctx Context, location, interpreter string, params []string) error {
	if _, err := ctx.lookPath("uv"); err != nil {
		return wrapUnavailable("uv", err)
	}
	argv := []string{"uv", "venv"}
	if interpreter != "" {
		argv = append(argv, "--python", interpreter)
	}
	argv = append(argv, params...)
	argv = append(argv, location)

	overlay := map[string]string{
		"UV_PYTHON_DOWNLOADS": uvDownloadPolicy(ctx.DownloadPython),
	}
	if ctx.CacheDir != "" {
		// Downloaded interpreters are shared across sessions; creation may
		// write there, so serialize writers across driver processes.
		overlay["UV_PYTHON_INSTALL_DIR"] = filepath.Join(ctx.CacheDir, "pythons")
		if lock, err := acquireCacheLock(ctx.CacheDir); err == nil {
			defer lock.Release()
		}
	}

	ctx.logger().Debug("creating uv venv", "location", location, "interpreter", interpreter)
	return ctx.run(argv, overlay)
}

// uvDownloadPolicy maps the driver's download-python option to uv's
// UV_PYTHON_DOWNLOADS values.
func uvDownloadPolicy(policy string) string {
	switch policy {
	case "never":
		return "never"
	case "always", "auto", "":
		return "automatic"
	default:
		return "automatic"
	}
}

func (UVBackend) BinDir(location string) string { return venvBinDir(location) }

func (UVBackend) InterpreterPath(location string) string { return venvInterpreter(location) }

func (UVBackend) Overlay(location string) map[string]string { return venvOverlay(location) }

// Install runs uv's pip-compatible installer against the environment. uv
// venvs ship without pip, so a request that names pip itself is honored by
// installing it into the environment like any other package.
func (UVBackend) Install(ctx Context, env *Environment, args []string, _ InstallOptions) error {
	argv := append([]string{"uv", "pip", "install"}, args...)
	return ctx.run(argv, map[string]string{
		"VIRTUAL_ENV": env.Location,
		"PATH":        venvBinDir(env.Location),
	})
}
