// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"sesh-cli/internal/core"
)

type (
	// PassthroughBackend runs sessions with the host interpreter and no
	// environment of their own. Creation is a no-op; installs are disallowed
	// unless the caller passes an explicit external marker, because they
	// would mutate the host installation.
	PassthroughBackend struct{}
)

func (PassthroughBackend) Name() string { return None }

// Available always reports true.
func (PassthroughBackend) Available() bool { return true }

// Create is a no-op: passthrough sessions own no directory.
func (PassthroughBackend) Create(_ Context, _, _ string, _ []string) error { return nil }

func (PassthroughBackend) BinDir(string) string { return "" }

// InterpreterPath returns "" here; the manager resolves the host interpreter
// directly since there is no environment to look inside.
func (PassthroughBackend) InterpreterPath(string) string { return "" }

func (PassthroughBackend) Overlay(string) map[string]string { return nil }

// Install refuses unless explicitly marked external, then runs the host
// interpreter's pip.
func (PassthroughBackend) Install(ctx Context, env *Environment, args []string, opts InstallOptions) error {
	if !opts.External {
		return core.New(core.KindUnsupportedOperation,
			"session has no environment; installing would modify the host interpreter (pass external=true to do it anyway)")
	}
	argv := append([]string{env.InterpreterPath, "-m", "pip", "install"}, args...)
	return ctx.run(argv, nil)
}
