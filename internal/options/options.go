// SPDX-License-Identifier: MPL-2.0

// Package options merges the three sources of invocation options with fixed
// precedence: command-line flags beat SESH_* environment variables, which
// beat assignments performed by the configuration script, which beat the
// app-level config file. The merged state is snapshotted into an immutable
// Options record before any session runs.
package options

import (
	"strings"

	"sesh-cli/internal/core"
	"sesh-cli/pkg/sessfile"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Option keys. These are the canonical names across all three sources:
// flag values bind to them, environment variables map to them
// (SESH_ENV_DIR and so on), and the configuration script assigns them.
const (
	KeyEnvDir           = "env_dir"
	KeySessions         = "sessions"
	KeyPythons          = "pythons"
	KeyKeywords         = "keywords"
	KeyTags             = "tags"
	KeyDefaultBackend   = "default_backend"
	KeyForceBackend     = "force_backend"
	KeyReuseMode        = "reuse_mode"
	KeyNoInstall        = "no_install"
	KeyStopOnFirstError = "stop_on_first_error"
	KeyErrorOnMissing   = "error_on_missing_interpreter"
	KeyErrorOnExternal  = "error_on_external_run"
	KeyDownloadPython   = "download_python"
	KeyReportPath       = "report_path"
	KeyVerbose          = "verbose"
	KeyNonInteractive   = "non_interactive"
	KeyNoColor          = "no_color"
	KeyForceColor       = "force_color"
	KeyAddTimestamp     = "add_timestamp"
	KeyInstallOnly      = "install_only"
	KeyScriptMode       = "script_mode"
	KeyScriptBackend    = "script_backend"
	KeyExtraPythons     = "extra_pythons"
	KeyForcePythons     = "force_pythons"
)

// scriptAssignable lists the keys a configuration script may set through the
// options record. Anything else is an invalid-option error.
var scriptAssignable = map[string]bool{
	KeyEnvDir: true, KeySessions: true, KeyPythons: true, KeyKeywords: true,
	KeyTags: true, KeyDefaultBackend: true, KeyForceBackend: true,
	KeyReuseMode: true, KeyStopOnFirstError: true, KeyErrorOnMissing: true,
	KeyErrorOnExternal: true, KeyDownloadPython: true, KeyReportPath: true,
	KeyVerbose: true, KeyInstallOnly: true, KeyScriptMode: true,
}

type (
	// Options is the immutable merged record.
	Options struct {
		EnvDir                    string
		Sessions                  []string
		Pythons                   []string
		Keywords                  string
		Tags                      []string
		DefaultBackend            string
		ForceBackend              string
		ReuseMode                 sessfile.ReusePolicy
		NoInstall                 bool
		StopOnFirstError          bool
		ErrorOnMissingInterpreter bool
		ErrorOnExternalRun        bool
		DownloadPython            string
		ReportPath                string
		Verbose                   bool
		NonInteractive            bool
		NoColor                   bool
		ForceColor                bool
		AddTimestamp              bool
		InstallOnly               bool
		ScriptMode                string
		ScriptBackend             string
		ExtraPythons              []string
		ForcePythons              []string

		// SessionsExplicit distinguishes "no selection given" from an
		// explicit empty selection (script sets sessions = {}): the latter
		// lists and runs nothing.
		SessionsExplicit bool

		// ErrorOnMissingExplicit records whether the missing-interpreter
		// policy was set by any source. When false, the CI heuristic may
		// supply the default; an explicit choice is never overridden.
		ErrorOnMissingExplicit bool

		// Posargs is everything after "--" on the command line; it is not an
		// option source but travels with the record.
		Posargs []string
	}

	// Set is the mutable merge state.
	Set struct {
		v *viper.Viper
	}
)

// NewSet creates a Set with defaults registered and SESH_* environment
// lookup enabled.
func NewSet() *Set {
	v := viper.New()
	v.SetEnvPrefix("SESH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyEnvDir, ".sesh")
	v.SetDefault(KeyDefaultBackend, "virtualenv")
	v.SetDefault(KeyReuseMode, string(sessfile.ReuseNo))
	v.SetDefault(KeyDownloadPython, "auto")
	v.SetDefault(KeyScriptMode, "reuse")
	v.SetDefault(KeyScriptBackend, "virtualenv")
	return &Set{v: v}
}

// BindFlag attaches one cobra/pflag flag to an option key; the flag wins
// over every other source once the user passes it.
func (s *Set) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return core.New(core.KindInvalidOption, "no flag registered for option %q", key)
	}
	return s.v.BindPFlag(key, flag)
}

// LoadConfigDefaults merges the app-level config file values (lowest
// precedence above built-in defaults).
func (s *Set) LoadConfigDefaults(values map[string]any) {
	for key, value := range values {
		s.v.SetDefault(key, value)
	}
}

// ApplyScriptOption records one assignment performed by the configuration
// script. Script assignments rank below flags and environment variables.
func (s *Set) ApplyScriptOption(key string, value any) error {
	key = strings.ReplaceAll(key, "-", "_")
	if !scriptAssignable[key] {
		return core.New(core.KindInvalidOption, "option %q cannot be set from the configuration script", key)
	}
	return s.v.MergeConfigMap(map[string]any{key: value})
}

// Override forces a value at the highest precedence. The CLI uses it for
// negative flag variants (--no-stop-on-first-error) and flag combinations
// (-R implies reuse plus no-install).
func (s *Set) Override(key string, value any) {
	s.v.Set(key, value)
}

// Snapshot validates and freezes the merged state.
func (s *Set) Snapshot() (*Options, error) {
	opts := &Options{
		EnvDir:                    s.v.GetString(KeyEnvDir),
		Sessions:                  s.v.GetStringSlice(KeySessions),
		Pythons:                   s.v.GetStringSlice(KeyPythons),
		Keywords:                  s.v.GetString(KeyKeywords),
		Tags:                      s.v.GetStringSlice(KeyTags),
		DefaultBackend:            s.v.GetString(KeyDefaultBackend),
		ForceBackend:              s.v.GetString(KeyForceBackend),
		ReuseMode:                 sessfile.ReusePolicy(s.v.GetString(KeyReuseMode)),
		NoInstall:                 s.v.GetBool(KeyNoInstall),
		StopOnFirstError:          s.v.GetBool(KeyStopOnFirstError),
		ErrorOnMissingInterpreter: s.v.GetBool(KeyErrorOnMissing),
		ErrorOnExternalRun:        s.v.GetBool(KeyErrorOnExternal),
		DownloadPython:            s.v.GetString(KeyDownloadPython),
		ReportPath:                s.v.GetString(KeyReportPath),
		Verbose:                   s.v.GetBool(KeyVerbose),
		NonInteractive:            s.v.GetBool(KeyNonInteractive),
		NoColor:                   s.v.GetBool(KeyNoColor),
		ForceColor:                s.v.GetBool(KeyForceColor),
		AddTimestamp:              s.v.GetBool(KeyAddTimestamp),
		InstallOnly:               s.v.GetBool(KeyInstallOnly),
		ScriptMode:                s.v.GetString(KeyScriptMode),
		ScriptBackend:             s.v.GetString(KeyScriptBackend),
		ExtraPythons:              s.v.GetStringSlice(KeyExtraPythons),
		ForcePythons:              s.v.GetStringSlice(KeyForcePythons),
		SessionsExplicit:          s.v.IsSet(KeySessions),
		ErrorOnMissingExplicit:    s.v.IsSet(KeyErrorOnMissing),
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) validate() error {
	switch o.ReuseMode {
	case sessfile.ReuseAlways, sessfile.ReuseYes, sessfile.ReuseNo, sessfile.ReuseNever:
	default:
		return core.New(core.KindInvalidOption,
			"reuse_mode must be one of always, yes, no, never; got %q", o.ReuseMode)
	}
	switch o.DownloadPython {
	case "auto", "always", "never":
	default:
		return core.New(core.KindInvalidOption,
			"download_python must be one of auto, always, never; got %q", o.DownloadPython)
	}
	switch o.ScriptMode {
	case "reuse", "fresh", "none":
	default:
		return core.New(core.KindInvalidOption,
			"script_mode must be one of reuse, fresh, none; got %q", o.ScriptMode)
	}
	return nil
}

// ExternalPolicy maps the error-on-external-run toggle to the command
// runner's policy value.
func (o *Options) ExternalPolicy() string {
	if o.ErrorOnExternalRun {
		return "strict"
	}
	return "warn"
}
