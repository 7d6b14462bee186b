// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"context"
	"io"
	"os/exec"

	"sesh-cli/internal/command"
	"sesh-cli/internal/envbuild"
	"sesh-cli/internal/interpreter"

	"github.com/charmbracelet/log"
)

type (
	// Context bundles the collaborators a backend needs to do its work:
	// the command runner for its creation and install tools, the interpreter
	// resolver for outer interpreters, and the driver's log sinks.
	Context struct {
		// Ctx is the cancellation context.
		Ctx context.Context
		// Runner executes the backend's tool invocations.
		Runner *command.Runner
		// Resolver locates interpreters outside any environment.
		Resolver *interpreter.Resolver
		// Logger receives backend progress messages.
		Logger *log.Logger
		// Stdout and Stderr are the streams tool output goes to when the
		// driver runs verbose; otherwise tools run silent.
		Stdout, Stderr io.Writer
		// Verbose streams tool output instead of buffering it.
		Verbose bool
		// DownloadPython is the interpreter auto-download policy
		// (auto, always, never); only the uv backend consults it.
		DownloadPython string
		// CacheDir is the shared cross-session cache directory under the
		// env root; backends that download artifacts place them here.
		CacheDir string
		// LookPath is injectable for tests; defaults to exec.LookPath.
		LookPath func(name string) (string, error)
	}
)

// lookPath resolves a tool name on the host PATH.
func (c Context) lookPath(name string) (string, error) {
	if c.LookPath != nil {
		return c.LookPath(name)
	}
	return exec.LookPath(name)
}

// toolOnPath reports whether a host tool exists.
func (c Context) toolOnPath(name string) bool {
	_, err := c.lookPath(name)
	return err == nil
}

// run executes one backend tool invocation on the host environment plus the
// given overlay. Tool output streams only in verbose mode.
func (c Context) run(argv []string, overlay map[string]string) error {
	builder := envbuild.NewBuilder()
	env := builder.Build(envbuild.Spec{IncludeHost: true, Overlay: overlay})
	outcome, err := c.runner().Run(c.ctx(), &command.Request{
		Argv:     argv,
		Env:      env,
		Stdout:   c.Stdout,
		Stderr:   c.Stderr,
		Silent:   !c.Verbose,
		External: true,
	})
	if err != nil && outcome != nil && outcome.Output != "" {
		c.logger().Warn("tool output", "command", argv[0], "output", outcome.Output)
	}
	return err
}

func (c Context) runner() *command.Runner {
	if c.Runner != nil {
		return c.Runner
	}
	return command.NewRunner()
}

func (c Context) ctx() context.Context {
	if c.Ctx != nil {
		return c.Ctx
	}
	return context.Background()
}

func (c Context) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func (c Context) resolver() *interpreter.Resolver {
	if c.Resolver != nil {
		return c.Resolver
	}
	return interpreter.NewResolver()
}
