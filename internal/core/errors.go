// SPDX-License-Identifier: MPL-2.0

// Package core defines the driver's error taxonomy. Every failure the engine
// raises carries one of the kinds below so callers can branch on errors.As
// without string matching.
package core

import (
	"errors"
	"fmt"
)

// Error kinds raised by the engine.
const (
	// KindConfigLoad marks a configuration script that could not be located
	// or failed to evaluate.
	KindConfigLoad Kind = "config-load"
	// KindInvalidSession marks a selector that matched nothing the user
	// explicitly asked for, or a name missing from the registry.
	KindInvalidSession Kind = "invalid-session"
	// KindRequiresCycle marks a cycle in the requires graph.
	KindRequiresCycle Kind = "requires-cycle"
	// KindRequiresMissing marks a requires template with no matching session.
	KindRequiresMissing Kind = "requires-missing"
	// KindBackendUnavailable marks an exhausted backend preference chain.
	KindBackendUnavailable Kind = "backend-unavailable"
	// KindInterpreterMissing marks an interpreter that could not be located.
	KindInterpreterMissing Kind = "interpreter-missing"
	// KindCommandFailed marks a subprocess that exited non-zero, timed out,
	// or died on a signal.
	KindCommandFailed Kind = "command-failed"
	// KindExternalUse marks a command resolved outside the environment while
	// the external policy is strict.
	KindExternalUse Kind = "external-use"
	// KindUnsupportedOperation marks a primitive invoked on a backend that
	// does not provide it.
	KindUnsupportedOperation Kind = "unsupported-operation"
	// KindInvalidOption marks an unrecognized or ill-typed option value.
	KindInvalidOption Kind = "invalid-option"
	// KindVersionMismatch marks an unsatisfied needs_version assertion.
	KindVersionMismatch Kind = "version-mismatch"
)

type (
	// Kind classifies an engine error.
	Kind string

	// Error is the engine's typed error. It wraps an optional cause and is
	// matchable with errors.As.
	Error struct {
		// Kind classifies the failure.
		Kind Kind
		// Msg is the human-readable description.
		Msg string
		// Cause is the underlying error, if any.
		Cause error
	}
)

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the cause for errors.Is/As traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind carried by err, or "" when err carries none.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
