// SPDX-License-Identifier: MPL-2.0

package sessfile

import "strings"

type (
	// Instance is one fully-parameterized, runnable session unit.
	Instance struct {
		// Name is the canonical instance name, e.g. "lint-3.12(django='2.0')".
		Name string
		// Python is the concrete interpreter spec, or "" when the instance
		// runs without one (host sessions and "current interpreter" envs).
		Python string
		// Host marks a session that runs without any environment backend.
		Host bool
		// CallArgs maps parameter names to values, insertion order preserved.
		CallArgs *CallSpec
		// Tags is the union of declaration tags and parameter-bundle tags.
		Tags []string
		// Decl is the declaration this instance was expanded from.
		Decl *Decl
		// Posargs is this instance's private copy of the trailing CLI
		// arguments. Sessions may mutate it without affecting siblings.
		Posargs []string
		// Multi reports whether the declaration expanded over several
		// interpreters (its base name alone then matches all of them).
		Multi bool
	}
)

// BaseName returns the declaration-level name without parametric suffixes.
func (i *Instance) BaseName() string {
	return i.Decl.BaseName()
}

// HasTag reports whether the instance carries the given tag.
func (i *Instance) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Matches reports whether pattern selects this instance. A pattern matches
// the full canonical name (under argument-bundle equality), the base name
// (which selects every parametric expansion), or the base name plus
// interpreter suffix.
func (i *Instance) Matches(pattern string) bool {
	if NamesEqual(i.Name, pattern) {
		return true
	}
	if pattern == i.BaseName() {
		return true
	}
	if i.Python != "" && pattern == i.BaseName()+"-"+i.Python {
		return true
	}
	return false
}

// Requires returns the declaration's requires templates with the "{python}"
// placeholder substituted by this instance's interpreter.
func (i *Instance) Requires() []string {
	if len(i.Decl.Requires) == 0 {
		return nil
	}
	out := make([]string, 0, len(i.Decl.Requires))
	for _, tmpl := range i.Decl.Requires {
		out = append(out, strings.ReplaceAll(tmpl, "{python}", i.Python))
	}
	return out
}

// Clone returns a deep-enough copy for re-enqueueing: posargs and call args
// are copied so the new run cannot corrupt the original.
func (i *Instance) Clone() *Instance {
	out := *i
	out.Posargs = append([]string(nil), i.Posargs...)
	if i.CallArgs != nil {
		out.CallArgs = i.CallArgs.Clone()
	}
	out.Tags = append([]string(nil), i.Tags...)
	return &out
}
