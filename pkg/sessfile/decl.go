// SPDX-License-Identifier: MPL-2.0

package sessfile

import (
	"errors"
	"fmt"
	"strings"
)

// Reuse policy constants controlling when an existing environment is rebuilt.
const (
	// ReuseAlways reuses the environment even when its stored digest no
	// longer matches the requested configuration.
	ReuseAlways ReusePolicy = "always"
	// ReuseYes reuses the environment when the stored digest matches.
	ReuseYes ReusePolicy = "yes"
	// ReuseNo rebuilds the environment unless reuse is forced globally.
	ReuseNo ReusePolicy = "no"
	// ReuseNever rebuilds the environment even when reuse is forced globally.
	ReuseNever ReusePolicy = "never"
)

// ErrInvalidDecl is the sentinel error wrapped by declaration validation failures.
var ErrInvalidDecl = errors.New("invalid session declaration")

type (
	// ReusePolicy is one of {always, yes, no, never}.
	ReusePolicy string

	// InterpreterAxis describes the interpreter dimension of a declaration.
	// Exactly one of the three shapes applies:
	//
	//   - Values non-empty: one session instance per interpreter spec.
	//   - Host true: no backend at all; commands run on the host interpreter.
	//   - neither: a single environment built with the driver's own interpreter.
	InterpreterAxis struct {
		// Values holds interpreter specs such as "3.12" or "pypy-3.10",
		// in declaration order.
		Values []string
		// List records that Values came from a list in the declaration.
		// Instance names suffix the interpreter exactly when the axis was
		// declared as a list, even a one-element one; a scalar value never
		// suffixes.
		List bool
		// Host disables environment creation entirely (python=false).
		Host bool
	}

	// Decl is an immutable session declaration captured from the
	// configuration script.
	Decl struct {
		// Name is the explicit session name; when empty the function
		// identifier FuncID is used.
		Name string
		// FuncID is the identifier of the registered function.
		FuncID string
		// Interpreters is the interpreter axis for this declaration.
		Interpreters InterpreterAxis
		// Reuse controls environment rebuild for this session; empty means
		// "inherit the invocation-level setting".
		Reuse ReusePolicy
		// BackendPreference is an ordered fallback chain of backend names;
		// the first available backend wins.
		BackendPreference []string
		// BackendParams is an opaque argument list passed to the backend at
		// environment creation time.
		BackendParams []string
		// Tags is the set of labels attached to the declaration.
		Tags []string
		// DefaultSelected reports whether a bare invocation includes this
		// session.
		DefaultSelected bool
		// Requires lists session-name templates that must run before this
		// session. Templates may contain the "{python}" placeholder.
		Requires []string
		// Doc is the session docstring; the first line is the short
		// description.
		Doc string
		// Parametrize holds the stacked parametrization layers in source
		// order. Layers compose by Cartesian product.
		Parametrize []Parametrization
		// Func is the user function executed for each expanded instance.
		Func Func
	}
)

// Func is the user session function. Implementations receive the per-instance
// session handle and report the outcome as an error: nil for success, a value
// satisfying IsSkip for a skipped session, anything else for failure.
type Func func(s Session) error

// BaseName returns the declaration's effective name: Name when set, else the
// function identifier.
func (d *Decl) BaseName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.FuncID
}

// Description returns the first line of the docstring.
func (d *Decl) Description() string {
	doc := strings.TrimSpace(d.Doc)
	if doc == "" {
		return ""
	}
	if idx := strings.IndexByte(doc, '\n'); idx >= 0 {
		return strings.TrimSpace(doc[:idx])
	}
	return doc
}

// Validate checks declaration-level invariants:
//
//   - the declaration must have a usable name;
//   - a parametrization targeting the "python" parameter must not be combined
//     with a non-empty interpreter list;
//   - the reuse policy, when set, must be a known value.
func (d *Decl) Validate() error {
	if d.BaseName() == "" {
		return fmt.Errorf("%w: session has no name", ErrInvalidDecl)
	}
	if d.Reuse != "" {
		switch d.Reuse {
		case ReuseAlways, ReuseYes, ReuseNo, ReuseNever:
		default:
			return fmt.Errorf("%w: unknown reuse policy %q for session %q", ErrInvalidDecl, d.Reuse, d.BaseName())
		}
	}
	if d.parametrizesPython() && len(d.Interpreters.Values) > 0 {
		return fmt.Errorf(
			"%w: session %q parametrizes %q and also declares interpreters; use one or the other",
			ErrInvalidDecl, d.BaseName(), pythonParam,
		)
	}
	return nil
}

func (d *Decl) parametrizesPython() bool {
	for _, layer := range d.Parametrize {
		for _, key := range layer.Keys {
			if key == pythonParam {
				return true
			}
		}
	}
	return false
}
