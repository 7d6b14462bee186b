// SPDX-License-Identifier: MPL-2.0

package command

import (
	"os"
	"path/filepath"
	"strings"

	"sesh-cli/internal/core"
	"sesh-cli/internal/platform"
)

// resolveArgv0 locates the executable for the request's first argv element.
// It returns the resolved path and whether the resolution landed outside the
// environment bin dir.
func (r *Runner) resolveArgv0(req *Request) (path string, external bool, err error) {
	argv0 := req.Argv[0]

	if isExplicitPath(argv0) {
		abs := argv0
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(req.Dir, argv0)
		}
		if !isExecutable(abs) {
			return "", false, core.New(core.KindInterpreterMissing, "executable %q not found", argv0)
		}
		return abs, !insideDir(abs, req.BinDir), nil
	}

	// Composed search path: env bin dir first, then the inherited PATH.
	searchPath := req.Env["PATH"]
	if req.BinDir != "" {
		if searchPath == "" {
			searchPath = req.BinDir
		} else if !strings.HasPrefix(searchPath, req.BinDir+string(os.PathListSeparator)) && searchPath != req.BinDir {
			searchPath = req.BinDir + string(os.PathListSeparator) + searchPath
		}
	}

	lookPath := r.LookPath
	if lookPath == nil {
		lookPath = lookPathIn
	}
	resolved, lookErr := lookPath(argv0, searchPath)
	if lookErr != nil {
		return "", false, core.Wrap(core.KindInterpreterMissing, lookErr, "executable %q not found", argv0)
	}
	return resolved, !insideDir(resolved, req.BinDir), nil
}

// isExplicitPath reports whether argv0 opts out of PATH resolution:
// absolute paths and paths starting with "./" or ".\".
func isExplicitPath(argv0 string) bool {
	if filepath.IsAbs(argv0) {
		return true
	}
	return strings.HasPrefix(argv0, "./") || strings.HasPrefix(argv0, ".\\") ||
		strings.HasPrefix(argv0, "/")
}

// lookPathIn searches an explicit PATH-style directory list for name.
func lookPathIn(name, searchPath string) (string, error) {
	var exts []string
	if platform.IsWindows() {
		exts = windowsExts()
	}
	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
		for _, ext := range exts {
			if isExecutable(candidate + ext) {
				return candidate + ext, nil
			}
		}
	}
	return "", os.ErrNotExist
}

func windowsExts() []string {
	pathext := os.Getenv("PATHEXT")
	if pathext == "" {
		return []string{".exe", ".bat", ".cmd", ".com"}
	}
	var exts []string
	for _, ext := range filepath.SplitList(pathext) {
		if ext != "" {
			exts = append(exts, strings.ToLower(ext))
		}
	}
	return exts
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if platform.IsWindows() {
		return true
	}
	return info.Mode()&0o111 != 0
}

// insideDir reports whether path lives directly under dir. An empty dir
// means there is no environment, so nothing counts as inside.
func insideDir(path, dir string) bool {
	if dir == "" {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(absPath) == absDir
}
