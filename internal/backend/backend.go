// SPDX-License-Identifier: MPL-2.0

// Package backend provides pluggable virtual-environment providers: the
// virtualenv tool, the interpreter's own venv module, the conda family, the
// uv resolver, and a passthrough that runs sessions on the host.
package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sesh-cli/internal/core"
)

// Backend names. These double as the values of the backend-selection options.
const (
	Virtualenv = "virtualenv"
	Venv       = "venv"
	Conda      = "conda"
	Mamba      = "mamba"
	Micromamba = "micromamba"
	UV         = "uv"
	None       = "none"
)

// digestFile is the hidden metadata file recording the creation digest inside
// each environment directory.
const digestFile = ".sesh-digest.json"

type (
	// Environment is the per-instance filesystem state produced by a backend.
	Environment struct {
		// Location is the absolute environment directory, "" for host runs.
		Location string
		// Kind names the backend that produced the environment.
		Kind string
		// InterpreterPath is the resolved executable inside the environment,
		// or the host interpreter for passthrough sessions.
		InterpreterPath string
		// BinDir is the platform-specific scripts directory, "" for host runs.
		BinDir string
		// Reused reports whether this run reused a prior environment.
		Reused bool
	}

	// Digest is the persisted creation fingerprint used for staleness
	// detection.
	Digest struct {
		Backend     string `json:"backend"`
		Interpreter string `json:"interpreter"`
		ParamsHash  string `json:"params_hash"`
	}

	// InstallOptions carries the knobs of the install primitives.
	InstallOptions struct {
		// Channels are conda channels; ignored by other backends.
		Channels []string
		// External marks a host install explicitly requested on the
		// passthrough backend.
		External bool
		// Silent buffers installer output.
		Silent bool
	}

	// Backend is the capability set common to every provider.
	Backend interface {
		// Name returns the backend name.
		Name() string
		// Available reports whether the backend can be used on this host.
		Available() bool
		// Create builds a fresh environment at location for the given
		// interpreter spec and extra creation params.
		Create(ctx Context, location, interpreter string, params []string) error
		// BinDir computes the platform scripts directory for a location.
		BinDir(location string) string
		// InterpreterPath computes the environment's interpreter executable.
		InterpreterPath(location string) string
		// Overlay returns the process-env keys the backend wants injected.
		Overlay(location string) map[string]string
		// Install runs the backend's install primitive inside env.
		Install(ctx Context, env *Environment, args []string, opts InstallOptions) error
	}
)

// alwaysAvailable reports whether name is a backend that Available() can
// never rule out; such backends may only appear last in a preference chain.
func alwaysAvailable(name string) bool {
	switch name {
	case Venv, Virtualenv, None:
		return true
	}
	return false
}

// ValidateChain checks a backend preference chain: every name must be known,
// and an always-available backend may only appear last (anything after it
// could never be reached).
func ValidateChain(chain []string) error {
	for i, name := range chain {
		if !knownBackend(name) {
			return core.New(core.KindInvalidOption, "unknown backend %q", name)
		}
		if alwaysAvailable(name) && i != len(chain)-1 {
			return core.New(core.KindInvalidOption,
				"backend %q is always available and may only appear last in a fallback chain", name)
		}
	}
	return nil
}

func knownBackend(name string) bool {
	switch name {
	case Virtualenv, Venv, Conda, Mamba, Micromamba, UV, None:
		return true
	}
	return false
}

// ComputeDigest builds the creation fingerprint for a requested
// backend+interpreter+params combination.
func ComputeDigest(backendName, interpreter string, params []string) Digest {
	sum := sha256.Sum256([]byte(strings.Join(params, "\x00")))
	return Digest{
		Backend:     backendName,
		Interpreter: interpreter,
		ParamsHash:  hex.EncodeToString(sum[:8]),
	}
}

// ReadDigest loads the digest persisted in an environment directory.
func ReadDigest(location string) (Digest, error) {
	data, err := os.ReadFile(filepath.Join(location, digestFile))
	if err != nil {
		return Digest{}, err
	}
	var d Digest
	if err := json.Unmarshal(data, &d); err != nil {
		return Digest{}, fmt.Errorf("corrupt digest file in %s: %w", location, err)
	}
	return d, nil
}

// WriteDigest persists the digest next to the backend's own artifacts.
func WriteDigest(location string, d Digest) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(location, digestFile), data, 0o644)
}

// ExistsAndIsFresh reports whether location holds an environment whose
// persisted digest matches want.
func ExistsAndIsFresh(location string, want Digest) bool {
	got, err := ReadDigest(location)
	if err != nil {
		return false
	}
	return got == want
}
