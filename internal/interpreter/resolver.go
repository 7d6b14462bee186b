// SPDX-License-Identifier: MPL-2.0

// Package interpreter maps user-facing interpreter specs such as "3.12",
// "3.12-32", "pypy-3.10" or "python3.12t" to concrete executables.
package interpreter

import (
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"sesh-cli/internal/core"
	"sesh-cli/internal/platform"
)

// versionRe matches bare CPython version specs: "3", "3.12", "3.12-32".
var versionRe = regexp.MustCompile(`^\d(\.\d+)?(\.\d+)?(-32|-64)?$`)

type (
	// Resolver locates interpreter executables. The lookup hooks are
	// injectable so tests can resolve without touching the host.
	Resolver struct {
		// LookPath searches PATH for an executable. Defaults to exec.LookPath.
		LookPath func(name string) (string, error)
		// QueryLauncher asks the Windows "py" launcher for the executable
		// behind a version spec, returning "" when the launcher cannot
		// provide one. Defaults to querying `py -<spec> -c ...`.
		QueryLauncher func(spec string) string
	}
)

// NewResolver creates a Resolver with the default OS-backed hooks.
func NewResolver() *Resolver {
	r := &Resolver{LookPath: exec.LookPath}
	r.QueryLauncher = r.queryPyLauncher
	return r
}

// Resolve maps spec to a concrete executable path. The empty spec resolves
// to the first python3/python found on PATH (the "current interpreter"
// placeholder used when a declaration names no interpreter).
func (r *Resolver) Resolve(spec string) (string, error) {
	for _, candidate := range r.candidates(spec) {
		if path, err := r.lookPath(candidate); err == nil {
			return path, nil
		}
	}
	if platform.IsWindows() && versionRe.MatchString(spec) {
		if path := r.queryLauncher(spec); path != "" {
			return path, nil
		}
	}
	return "", core.New(core.KindInterpreterMissing, "no interpreter found for %q", specOrDefault(spec))
}

// candidates returns the executable names to try, most specific first.
func (r *Resolver) candidates(spec string) []string {
	switch {
	case spec == "":
		return []string{"python3", "python"}
	case filepath.IsAbs(spec) || strings.ContainsRune(spec, filepath.Separator) || strings.ContainsRune(spec, '/'):
		// Explicit path: use as-is.
		return []string{spec}
	case strings.HasPrefix(spec, "pypy"):
		// "pypy-3.10" -> pypy3.10, pypy3
		version := strings.TrimPrefix(strings.TrimPrefix(spec, "pypy"), "-")
		if version == "" {
			return []string{"pypy3", "pypy"}
		}
		return []string{"pypy" + version, "pypy" + strings.SplitN(version, ".", 2)[0]}
	case versionRe.MatchString(spec):
		// "3.12" -> python3.12; bitness suffixes only matter to the Windows
		// launcher, so strip them for PATH lookup.
		version := strings.TrimSuffix(strings.TrimSuffix(spec, "-32"), "-64")
		return []string{"python" + version}
	default:
		// "python3.12t", "jython", full command names: use as-is.
		return []string{spec}
	}
}

func (r *Resolver) lookPath(name string) (string, error) {
	if r.LookPath != nil {
		return r.LookPath(name)
	}
	return exec.LookPath(name)
}

func (r *Resolver) queryLauncher(spec string) string {
	if r.QueryLauncher != nil {
		return r.QueryLauncher(spec)
	}
	return r.queryPyLauncher(spec)
}

// queryPyLauncher resolves a version spec through the Windows "py" launcher,
// which knows about installations that are not on PATH.
func (r *Resolver) queryPyLauncher(spec string) string {
	py, err := r.lookPath("py")
	if err != nil {
		return ""
	}
	out, err := exec.Command(py, "-"+spec, "-c", "import sys; print(sys.executable)").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func specOrDefault(spec string) string {
	if spec == "" {
		return "python3"
	}
	return spec
}
