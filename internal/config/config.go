// SPDX-License-Identifier: MPL-2.0

// Package config loads the app-level configuration file: persistent defaults
// for the option set, kept in a CUE file under the user's config directory.
// Per-invocation options and per-project configuration scripts always win
// over these values.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"sesh-cli/internal/platform"
	"sesh-cli/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

const (
	// AppName is the application name.
	AppName = "sesh"
	// ConfigFileName is the config file name.
	ConfigFileName = "config.cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the sesh configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application
// Support, and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Load reads and validates the app config, returning its values as a map of
// option-key defaults plus the resolved path. A missing file is not an
// error: the map is empty and the path is "".
func Load() (map[string]any, string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(cfgDir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		return map[string]any{}, "", nil
	}
	values, err := LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return values, path, nil
}

// LoadFile parses one CUE config file and validates it against the embedded
// #Config schema.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return nil, cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, cueutil.FormatError(err, path)
	}

	var values map[string]any
	if err := unified.Decode(&values); err != nil {
		return nil, cueutil.FormatError(err, path)
	}
	return values, nil
}
