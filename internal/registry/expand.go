// SPDX-License-Identifier: MPL-2.0

// Package registry turns the declarations collected during script evaluation
// into the flat, ordered list of runnable session instances: it expands the
// interpreter axis, composes stacked parametrizations, extracts the special
// "python" parameter, and assigns canonical names.
package registry

import (
	"strings"

	"sesh-cli/pkg/sessfile"

	"github.com/charmbracelet/log"
)

type (
	// ExpandConfig carries the invocation-level inputs of expansion.
	ExpandConfig struct {
		// ExtraPythons extends every multi-interpreter axis.
		ExtraPythons []string
		// ForcePythons replaces the interpreter axis of every non-host
		// declaration.
		ForcePythons []string
		// NoVenv reports that the forced backend is "none"; interpreter
		// lists are ignored with a warning in that case.
		NoVenv bool
		// Posargs seeds each instance's private posargs copy.
		Posargs []string
		// Logger receives expansion warnings. Nil uses the default logger.
		Logger *log.Logger
	}
)

// Expand produces instances for every declaration, preserving declaration
// order: the interpreter axis varies outermost, parameter bundles innermost.
func Expand(decls []*sessfile.Decl, cfg ExpandConfig) ([]*sessfile.Instance, error) {
	var instances []*sessfile.Instance
	for _, decl := range decls {
		expanded, err := expandDecl(decl, cfg)
		if err != nil {
			return nil, err
		}
		instances = append(instances, expanded...)
	}
	return instances, nil
}

func expandDecl(decl *sessfile.Decl, cfg ExpandConfig) ([]*sessfile.Instance, error) {
	axis, multi := interpreterAxis(decl, cfg)

	combos := sessfile.Expand(decl.Parametrize)
	parametrized := len(decl.Parametrize) > 0

	var instances []*sessfile.Instance
	for _, python := range axis {
		for _, combo := range combos {
			spec := combo.Spec.Clone()
			instPython := python
			instMulti := multi
			if v, ok := spec.Get("python"); ok {
				// A parametrized "python" supplies the interpreter, not a
				// call argument.
				spec.Delete("python")
				instPython = pythonString(v)
				instMulti = true
			}
			inst := &sessfile.Instance{
				Python:   instPython,
				Host:     decl.Interpreters.Host,
				CallArgs: spec,
				Tags:     unionTags(decl.Tags, combo.Tags),
				Decl:     decl,
				Posargs:  append([]string(nil), cfg.Posargs...),
				Multi:    instMulti,
			}
			inst.Name = canonicalName(decl, inst, combo, parametrized)
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

// interpreterAxis computes the interpreter values to expand over and whether
// the axis was declared as a list (and thus suffixes names). A one-element
// list still suffixes; only a scalar value does not.
func interpreterAxis(decl *sessfile.Decl, cfg ExpandConfig) (values []string, multi bool) {
	if decl.Interpreters.Host {
		return []string{""}, false
	}
	if len(cfg.ForcePythons) > 0 {
		return cfg.ForcePythons, len(cfg.ForcePythons) > 1
	}
	axis := decl.Interpreters.Values
	if len(axis) == 0 {
		return []string{""}, false
	}
	isList := decl.Interpreters.List || len(axis) > 1
	if cfg.NoVenv {
		if isList {
			logger(cfg).Warn("forced backend is none; declared interpreters are ignored",
				"session", decl.BaseName(), "interpreters", axis)
		}
		return []string{""}, false
	}
	if isList {
		axis = append(append([]string(nil), axis...), cfg.ExtraPythons...)
		return axis, true
	}
	return axis, false
}

// canonicalName renders the stable instance name: the base, an interpreter
// suffix when the axis was a list, and the parametric tail. Bundles with
// custom ids render the ids joined in stacking order; otherwise the call
// arguments render as key='value' pairs in insertion order.
func canonicalName(decl *sessfile.Decl, inst *sessfile.Instance, combo sessfile.ExpandedBundle, parametrized bool) string {
	name := decl.BaseName()
	if inst.Multi && inst.Python != "" {
		name += "-" + inst.Python
	}
	if !parametrized {
		return name
	}

	var fragments []string
	for i, layer := range decl.Parametrize {
		if i < len(combo.IDs) && combo.IDs[i] != "" {
			fragments = append(fragments, combo.IDs[i])
			continue
		}
		for _, key := range layer.Keys {
			if key == "python" {
				continue
			}
			if v, ok := inst.CallArgs.Get(key); ok {
				fragments = append(fragments, key+"="+sessfile.FormatValue(v))
			}
		}
	}
	if len(fragments) == 0 {
		// Every parameter fed the interpreter axis; nothing left to render.
		return name
	}
	return name + "(" + strings.Join(fragments, ", ") + ")"
}

func pythonString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSuffix(strings.TrimPrefix(sessfile.FormatValue(v), "'"), "'")
}

func unionTags(a, b []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range append(append([]string(nil), a...), b...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func logger(cfg ExpandConfig) *log.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return log.Default()
}
