// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	"sesh-cli/internal/config"
	"sesh-cli/internal/core"
	"sesh-cli/internal/luahost"
	"sesh-cli/internal/manifest"
	"sesh-cli/internal/options"
	"sesh-cli/internal/registry"
	"sesh-cli/internal/report"
	"sesh-cli/internal/runner"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

// runRoot is the whole invocation pipeline: options, script evaluation,
// expansion, selection, scheduling, the runner loop, and reporting.
func runRoot(cmd *cobra.Command, args []string) error {
	applyFlagOverrides(cmd)

	// Everything after "--" is posargs for the sessions.
	var posargs []string
	if at := cmd.ArgsLenAtDash(); at >= 0 {
		posargs = args[at:]
		args = args[:at]
	}
	if len(args) > 0 {
		return &ExitError{Code: ExitUsage, Err: core.New(core.KindInvalidOption,
			"unexpected arguments %v; session selection uses -s, posargs go after --", args)}
	}

	// App-level config contributes defaults below every other source.
	if values, _, err := config.Load(); err == nil {
		optionSet.LoadConfigDefaults(values)
	} else {
		log.Warn("ignoring unreadable app config", "err", err)
	}

	logger := newLogger(cmd)

	// Locate and evaluate the configuration script.
	cwd, err := os.Getwd()
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}
	scriptPath, err := config.LocateScript(flagSeshfile, cwd)
	if err != nil {
		printCard(err)
		logger.Error(err.Error())
		return &ExitError{Code: ExitConfigLoad, Err: err}
	}

	host := luahost.NewHost(optionSet, logger, Version)
	defer host.Close()
	reg, err := host.Evaluate(scriptPath)
	if err != nil {
		printCard(err)
		logger.Error(err.Error())
		return &ExitError{Code: exitCodeFor(err), Err: err}
	}

	// Freeze the option record now that the script has contributed.
	opts, err := optionSet.Snapshot()
	if err != nil {
		logger.Error(err.Error())
		return &ExitError{Code: ExitUsage, Err: err}
	}
	opts.Posargs = posargs
	syncLoggerOptions(logger, opts)

	// Expand declarations into instances and build the manifest.
	instances, err := registry.Expand(reg.Snapshot(), registry.ExpandConfig{
		ExtraPythons: opts.ExtraPythons,
		ForcePythons: opts.ForcePythons,
		NoVenv:       opts.ForceBackend == "none",
		Posargs:      posargs,
		Logger:       logger,
	})
	if err != nil {
		logger.Error(err.Error())
		return &ExitError{Code: ExitFailure, Err: err}
	}

	man := manifest.New(instances)
	if err := manifest.Select(man, opts, luahost.MatchKeywords); err != nil {
		printCard(err)
		logger.Error(err.Error())
		return &ExitError{Code: ExitFailure, Err: err}
	}

	// Listing mode, or nothing selected: print the listing and stop.
	if flagList || len(man.Queue()) == 0 {
		return runList(man)
	}

	// Drive the manifest.
	loop := runner.NewLoop(man, opts, logger)
	results, runErr := loop.Run(cmd.Context())
	if runErr != nil && len(results) == 0 {
		// Setup failure: nothing ran.
		printCard(runErr)
		logger.Error(runErr.Error())
		return &ExitError{Code: ExitFailure, Err: runErr}
	}

	report.Summary(os.Stderr, results)
	if opts.ReportPath != "" {
		if err := report.WriteJSON(opts.ReportPath, results); err != nil {
			logger.Error("failed to write report", "path", opts.ReportPath, "err", err)
			return &ExitError{Code: ExitFailure, Err: err}
		}
	}

	if runErr != nil || !runner.AllOK(results) {
		return &ExitError{Code: ExitFailure}
	}
	return nil
}

// runList prints the session listing in the requested form and succeeds.
func runList(man *manifest.Manifest) error {
	switch {
	case flagJSON:
		return report.ListJSON(os.Stdout, man)
	case flagLong:
		report.ListLong(os.Stdout, man)
	default:
		report.List(os.Stdout, man)
	}
	return nil
}

// newLogger builds the driver logger from the pre-snapshot flag state; the
// final option record refines it in syncLoggerOptions.
func newLogger(cmd *cobra.Command) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: flagChanged(cmd, "add-timestamp"),
	})
	if flagChanged(cmd, "verbose") {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func syncLoggerOptions(logger *log.Logger, opts *options.Options) {
	if opts.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if opts.AddTimestamp {
		logger.SetReportTimestamp(true)
	}
	switch {
	case opts.NoColor:
		lipgloss.SetColorProfile(termenv.Ascii)
		logger.SetColorProfile(termenv.Ascii)
	case opts.ForceColor:
		lipgloss.SetColorProfile(termenv.TrueColor)
		logger.SetColorProfile(termenv.TrueColor)
	}
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// printCard shows the help card for the error's kind, when the catalog has
// one.
func printCard(err error) {
	// The card is advisory; rendering failures just fall back to the log
	// line that follows.
	if card, ok := issueCard(err); ok {
		if rendered, renderErr := card.Render(); renderErr == nil {
			os.Stderr.WriteString(rendered)
		}
	}
}

func exitCodeFor(err error) int {
	switch core.KindOf(err) {
	case core.KindConfigLoad, core.KindVersionMismatch:
		return ExitConfigLoad
	case core.KindInvalidOption:
		return ExitUsage
	default:
		return ExitFailure
	}
}
