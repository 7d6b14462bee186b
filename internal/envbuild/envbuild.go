// SPDX-License-Identifier: MPL-2.0

// Package envbuild composes the process environment handed to commands
// running inside an ephemeral environment. The composition is layered:
// host environment minus the deny-list, then the backend overlay, then
// caller-supplied keys. PATH entries are prepended rather than replaced.
package envbuild

import (
	"os"
	"strings"
)

// Unset is the marker value that removes a key from the composed
// environment instead of setting it.
const Unset = "\x00sesh:unset"

// DenyList is the fixed set of host environment variables stripped before
// launching any subprocess in an ephemeral environment: the variables
// virtual-environment tools use to auto-discover a pre-existing environment,
// plus the ones that force system-wide interpreter selection. Additions are
// a minor version bump.
var DenyList = []string{
	"PIP_RESPECT_VIRTUALENV",
	"PIP_REQUIRE_VIRTUALENV",
	"__PYVENV_LAUNCHER__",
	"UV_SYSTEM_PYTHON",
	"VIRTUAL_ENV",
	"CONDA_PREFIX",
	"CONDA_DEFAULT_ENV",
	"PYTHONHOME",
}

type (
	// Spec describes one composition request.
	Spec struct {
		// IncludeHost seeds the result with the (deny-list filtered) host
		// environment.
		IncludeHost bool
		// BinDir, when set, is prepended to PATH.
		BinDir string
		// Overlay is the backend-provided layer (VIRTUAL_ENV, CONDA_PREFIX,
		// ...). A PATH key here is prepended to the inherited PATH.
		Overlay map[string]string
		// Extra is the caller-supplied layer; values equal to Unset remove
		// the key. A PATH key here replaces PATH outright, matching the
		// per-call contract.
		Extra map[string]string
	}

	// Builder composes environments. Environ is injectable for tests.
	Builder struct {
		// Environ returns the host environment as "KEY=VALUE" strings.
		// When nil, os.Environ() is used.
		Environ func() []string
	}
)

// NewBuilder creates a Builder backed by the real host environment.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build composes one environment map according to spec.
func (b *Builder) Build(spec Spec) map[string]string {
	env := make(map[string]string)

	if spec.IncludeHost {
		environ := os.Environ
		if b.Environ != nil {
			environ = b.Environ
		}
		for _, kv := range environ() {
			idx := strings.IndexByte(kv, '=')
			if idx <= 0 {
				continue
			}
			env[kv[:idx]] = kv[idx+1:]
		}
		for _, key := range DenyList {
			delete(env, key)
		}
	}

	for k, v := range spec.Overlay {
		if k == "PATH" {
			env["PATH"] = prependPath(v, env["PATH"])
			continue
		}
		env[k] = v
	}

	if spec.BinDir != "" {
		env["PATH"] = prependPath(spec.BinDir, env["PATH"])
	}

	for k, v := range spec.Extra {
		if v == Unset {
			delete(env, k)
			continue
		}
		env[k] = v
	}

	return env
}

// ToSlice converts an environment map to "KEY=VALUE" form for exec.Cmd.
func ToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func prependPath(head, tail string) string {
	if tail == "" {
		return head
	}
	if head == "" {
		return tail
	}
	return head + string(os.PathListSeparator) + tail
}
