// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"os"

	"sesh-cli/internal/options"
	"sesh-cli/internal/report"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootCmd is the whole CLI: sesh is a single command driven by flags, with
// trailing arguments after "--" passed through to sessions as posargs.
var rootCmd = &cobra.Command{
	Use:   "sesh [flags] [-- posargs...]",
	Short: "A session-based task automation driver",
	Long: report.TitleStyle.Render("sesh") + report.SubtitleStyle.Render(" - a session-based task automation driver") + `

sesh runs the task sessions declared in a sesh.lua configuration script.
Each session gets its own isolated environment (virtualenv, venv, conda,
mamba, micromamba, uv, or none) and runs its commands inside it.

` + report.SubtitleStyle.Render("Examples:") + `
  sesh                      Run all default sessions
  sesh -s tests -s lint     Run the tests and lint sessions, in order
  sesh -s "tests(old)"      Run one parametric expansion
  sesh -p 3.12              Run sessions for one interpreter
  sesh -l                   List sessions without running anything
  sesh -s tests -- -x -v    Forward posargs to the session`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// flag variables that need post-processing beyond the viper binding.
var (
	flagSeshfile     string
	flagList         bool
	flagJSON         bool
	flagLong         bool
	flagReuse        bool
	flagReuseInstall bool
	flagNoVenv       bool
	flagForcePython  string

	// negative variants; resolved against their positive twins in applyFlagOverrides.
	flagNoStopOnFirstError bool
	flagNoErrorOnMissing   bool
	flagNoErrorOnExternal  bool
)

// optionSet is the invocation's option merge state; flags bind into it.
var optionSet *options.Set

func init() {
	flags := rootCmd.Flags()

	flags.StringSliceP("sessions", "s", nil, "select sessions by name or pattern (repeatable)")
	// pflag allows one shorthand per flag, so the historical -e spelling is
	// a separate flag merged into the same selection in applyFlagOverrides.
	flags.StringSliceP("session", "e", nil, "alias for --sessions")
	flags.StringSliceP("python", "p", nil, "select sessions by interpreter version")
	flags.StringP("keywords", "k", "", "select sessions by a boolean keyword expression")
	flags.StringSliceP("tags", "t", nil, "select sessions carrying any of the given tags")

	flags.BoolVarP(&flagList, "list", "l", false, "list sessions instead of running them")
	flags.BoolVar(&flagJSON, "json", false, "machine-readable output for --list")
	flags.BoolVar(&flagLong, "long", false, "full session descriptions for --list")

	flags.StringVarP(&flagSeshfile, "seshfile", "f", "", "path to the configuration script")
	flags.String("envdir", "", "root directory for session environments")

	flags.String("reuse-venv", "", "environment reuse policy: yes, no, always, never")
	flags.BoolVarP(&flagReuse, "reuse-existing-virtualenvs", "r", false, "shorthand for --reuse-venv yes")
	flags.BoolVarP(&flagReuseInstall, "no-install-reuse", "R", false, "shorthand for -r --no-install")
	flags.Bool("no-install", false, "skip install primitives when an environment is reused")

	flags.String("default-venv-backend", "", "backend used when a session declares none")
	flags.String("force-venv-backend", "", "backend overriding every session declaration")
	flags.BoolVar(&flagNoVenv, "no-venv", false, "run every session on the host (force the none backend)")

	flags.Bool("error-on-missing-interpreters", false, "fail instead of skipping when an interpreter is missing")
	flags.BoolVar(&flagNoErrorOnMissing, "no-error-on-missing-interpreters", false, "skip sessions with missing interpreters")
	flags.Bool("error-on-external-run", false, "fail commands that resolve outside the session environment")
	flags.BoolVar(&flagNoErrorOnExternal, "no-error-on-external-run", false, "allow commands outside the session environment")

	flags.String("download-python", "", "interpreter auto-download policy: auto, always, never")
	flags.String("report", "", "write a JSON status report to this path")
	flags.Bool("install-only", false, "run install primitives, skip run commands")

	flags.Bool("non-interactive", false, "treat stdin as non-interactive regardless of tty")
	flags.Bool("forcecolor", false, "force color output")
	flags.Bool("nocolor", false, "disable color output")
	flags.BoolP("verbose", "v", false, "show all command output, not just failures")
	flags.Bool("add-timestamp", false, "prefix log lines with timestamps")

	flags.Bool("stop-on-first-error", false, "abort remaining sessions after the first failure")
	flags.BoolVar(&flagNoStopOnFirstError, "no-stop-on-first-error", false, "keep running sessions after a failure")

	flags.StringSlice("extra-pythons", nil, "extend every session's interpreter list")
	flags.StringVar(&flagForcePython, "force-python", "", "replace every session's interpreter")

	flags.String("script-mode", "", "evaluator dependency policy: reuse, fresh, none")
	flags.String("script-venv-backend", "", "backend for the evaluator's own dependencies")

	optionSet = options.NewSet()
	bindings := map[string]string{
		options.KeyEnvDir:           "envdir",
		options.KeySessions:         "sessions",
		options.KeyPythons:          "python",
		options.KeyKeywords:         "keywords",
		options.KeyTags:             "tags",
		options.KeyDefaultBackend:   "default-venv-backend",
		options.KeyForceBackend:     "force-venv-backend",
		options.KeyReuseMode:        "reuse-venv",
		options.KeyNoInstall:        "no-install",
		options.KeyStopOnFirstError: "stop-on-first-error",
		options.KeyErrorOnMissing:   "error-on-missing-interpreters",
		options.KeyErrorOnExternal:  "error-on-external-run",
		options.KeyDownloadPython:   "download-python",
		options.KeyReportPath:       "report",
		options.KeyVerbose:          "verbose",
		options.KeyNonInteractive:   "non-interactive",
		options.KeyNoColor:          "nocolor",
		options.KeyForceColor:       "forcecolor",
		options.KeyAddTimestamp:     "add-timestamp",
		options.KeyInstallOnly:      "install-only",
		options.KeyScriptMode:       "script-mode",
		options.KeyScriptBackend:    "script-venv-backend",
		options.KeyExtraPythons:     "extra-pythons",
	}
	for key, flagName := range bindings {
		if err := optionSet.BindFlag(key, flags.Lookup(flagName)); err != nil {
			panic(err)
		}
	}
}

// applyFlagOverrides folds flag shorthands and negative variants into the
// option set at flag precedence.
func applyFlagOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("session") {
		alias, _ := cmd.Flags().GetStringSlice("session")
		selected, _ := cmd.Flags().GetStringSlice("sessions")
		optionSet.Override(options.KeySessions, append(selected, alias...))
	}
	if flagReuse || flagReuseInstall {
		optionSet.Override(options.KeyReuseMode, "yes")
	}
	if flagReuseInstall {
		optionSet.Override(options.KeyNoInstall, true)
	}
	if cmd.Flags().Changed("reuse-venv") {
		value, _ := cmd.Flags().GetString("reuse-venv")
		optionSet.Override(options.KeyReuseMode, value)
	}
	if flagNoVenv {
		optionSet.Override(options.KeyForceBackend, "none")
	}
	if flagNoStopOnFirstError {
		optionSet.Override(options.KeyStopOnFirstError, false)
	}
	if flagNoErrorOnMissing {
		optionSet.Override(options.KeyErrorOnMissing, false)
	}
	if flagNoErrorOnExternal {
		optionSet.Override(options.KeyErrorOnExternal, false)
	}
	if flagForcePython != "" {
		optionSet.Override(options.KeyForcePythons, []string{flagForcePython})
	}
}

// Execute runs the CLI and exits with the driver's exit code.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitUsage)
	}
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return Version + " (commit: " + Commit + ", built: " + BuildDate + ")"
}
