// SPDX-License-Identifier: MPL-2.0

package sessfile

import (
	"fmt"
)

type (
	// Registry collects session declarations during one configuration-script
	// evaluation. Declaration order is preserved; it becomes the default run
	// order. The host creates a Registry, evaluates the script against it,
	// and snapshots the result.
	Registry struct {
		decls []*Decl
		names map[string]bool
		warns []string
	}
)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Add validates and records one declaration. Registering a second declaration
// with the same effective name records a duplicate warning; the declaration
// is still kept so both expansions are visible to the selector.
func (r *Registry) Add(decl *Decl) error {
	if err := decl.Validate(); err != nil {
		return err
	}
	name := decl.BaseName()
	if r.names[name] {
		r.warns = append(r.warns, fmt.Sprintf(
			"session %q is declared more than once; duplicate session names will become an error in a future release", name))
	}
	r.names[name] = true
	r.decls = append(r.decls, decl)
	return nil
}

// Snapshot returns the collected declarations in registration order.
func (r *Registry) Snapshot() []*Decl {
	return append([]*Decl(nil), r.decls...)
}

// Warnings returns the duplicate-name warnings accumulated so far.
func (r *Registry) Warnings() []string {
	return append([]string(nil), r.warns...)
}

// Len returns the number of registered declarations.
func (r *Registry) Len() int {
	return len(r.decls)
}
