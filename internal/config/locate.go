// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"

	"sesh-cli/internal/core"
)

// ScriptFileName is the canonical configuration-script filename searched for
// when no explicit path is given.
const ScriptFileName = "sesh.lua"

// LocateScript finds the configuration script. An explicit path is used
// as-is; otherwise the search walks upward from startDir to the filesystem
// root looking for the canonical filename.
func LocateScript(explicit, startDir string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", core.Wrap(core.KindConfigLoad, err, "invalid configuration path %q", explicit)
		}
		if _, err := os.Stat(abs); err != nil {
			return "", core.Wrap(core.KindConfigLoad, err, "configuration script not found: %s", explicit)
		}
		return abs, nil
	}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", core.Wrap(core.KindConfigLoad, err, "cannot resolve start directory")
	}
	for {
		candidate := filepath.Join(dir, ScriptFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", core.New(core.KindConfigLoad,
				"no %s found in %s or any parent directory", ScriptFileName, startDir)
		}
		dir = parent
	}
}
