// SPDX-License-Identifier: MPL-2.0

// Package luahost evaluates the user's configuration script (sesh.lua) in an
// embedded Lua interpreter and yields the registered session declarations.
// The engine never depends on how the script was evaluated; this package is
// the one place that knows the configuration is Lua.
package luahost

import (
	"errors"
	"fmt"
	"strings"

	"sesh-cli/internal/core"
	"sesh-cli/internal/options"
	"sesh-cli/pkg/sessfile"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"
)

// paramMarker tags the Lua tables produced by param().
const paramMarker = "__sesh_param"

// wrapperMarker tags the Lua tables produced by parametrize().
const wrapperMarker = "__sesh_layers"

type (
	// Host owns one Lua state and the registry it fills during evaluation.
	// The state stays open after evaluation: the registered session
	// functions are Lua closures that run inside it, strictly sequentially.
	Host struct {
		// Options receives script-level option assignments.
		Options *options.Set
		// Logger receives host warnings.
		Logger *log.Logger
		// Version is the driver version needs_version checks against.
		Version string

		state    *lua.LState
		registry *sessfile.Registry
	}
)

// NewHost creates a Host around a fresh Lua state.
func NewHost(opts *options.Set, logger *log.Logger, version string) *Host {
	return &Host{
		Options: opts,
		Logger:  logger,
		Version: version,
	}
}

// Close releases the Lua state. Call it only after every session has run.
func (h *Host) Close() {
	if h.state != nil {
		h.state.Close()
		h.state = nil
	}
}

// Evaluate runs the configuration script and returns the collected registry.
// Failures surface as config-load errors pointing at the file.
func (h *Host) Evaluate(path string) (*sessfile.Registry, error) {
	h.state = lua.NewState()
	h.registry = sessfile.NewRegistry()

	L := h.state
	L.SetGlobal("session", L.NewFunction(h.luaSession))
	L.SetGlobal("parametrize", L.NewFunction(h.luaParametrize))
	L.SetGlobal("param", L.NewFunction(h.luaParam))
	L.SetGlobal("needs_version", L.NewFunction(h.luaNeedsVersion))
	L.SetGlobal("options", h.newOptionsProxy(L))

	if err := L.DoFile(path); err != nil {
		// Typed errors raised by the bindings (version-mismatch,
		// invalid-option) pass through; anything else is a script failure.
		var apiErr *lua.ApiError
		if errors.As(err, &apiErr) {
			if ud, ok := apiErr.Object.(*lua.LUserData); ok {
				if goErr, ok := ud.Value.(error); ok {
					return nil, goErr
				}
			}
		}
		return nil, core.Wrap(core.KindConfigLoad, err, "failed to evaluate %s", path)
	}
	for _, warning := range h.registry.Warnings() {
		h.logger().Warn(warning)
	}
	return h.registry, nil
}

// luaSession implements session(name, [opts], fn). fn may be a plain
// function or the wrapper returned by parametrize().
func (h *Host) luaSession(L *lua.LState) int {
	name := L.CheckString(1)

	var opts *lua.LTable
	fnArg := L.Get(2)
	if tbl, ok := fnArg.(*lua.LTable); ok && !isWrapper(tbl) {
		opts = tbl
		fnArg = L.Get(3)
	}

	layers, fn, err := unwrapFunction(fnArg)
	if err != nil {
		L.RaiseError("session %q: %s", name, err.Error())
		return 0
	}

	decl := &sessfile.Decl{
		Name:            name,
		FuncID:          name,
		DefaultSelected: true,
		Parametrize:     layers,
		Func:            h.wrapFunc(fn),
	}
	if opts != nil {
		if err := h.applySessionOpts(decl, opts); err != nil {
			L.RaiseError("session %q: %s", name, err.Error())
			return 0
		}
	}
	if err := h.registry.Add(decl); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// applySessionOpts maps the option table onto the declaration.
func (h *Host) applySessionOpts(decl *sessfile.Decl, opts *lua.LTable) error {
	var err error
	opts.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			err = fmt.Errorf("option keys must be strings, got %s", k.Type())
			return
		}
		err = h.applySessionOpt(decl, string(key), v)
	})
	return err
}

func (h *Host) applySessionOpt(decl *sessfile.Decl, key string, v lua.LValue) error {
	switch key {
	case "name":
		decl.Name = lua.LVAsString(v)
	case "python":
		axis, err := interpreterAxis(v)
		if err != nil {
			return err
		}
		decl.Interpreters = axis
	case "reuse", "reuse_venv":
		decl.Reuse = sessfile.ReusePolicy(lua.LVAsString(v))
	case "venv_backend":
		chain, err := stringOrList(v)
		if err != nil {
			return fmt.Errorf("venv_backend: %w", err)
		}
		decl.BackendPreference = chain
	case "venv_params":
		params, err := stringList(v)
		if err != nil {
			return fmt.Errorf("venv_params: %w", err)
		}
		decl.BackendParams = params
	case "tags":
		tags, err := stringList(v)
		if err != nil {
			return fmt.Errorf("tags: %w", err)
		}
		decl.Tags = tags
	case "default":
		decl.DefaultSelected = lua.LVAsBool(v)
	case "requires":
		requires, err := stringList(v)
		if err != nil {
			return fmt.Errorf("requires: %w", err)
		}
		decl.Requires = requires
	case "description", "doc":
		decl.Doc = lua.LVAsString(v)
	default:
		return fmt.Errorf("unknown session option %q", key)
	}
	return nil
}

// interpreterAxis decodes the "python" option: a string, a list of strings,
// or false for a host session.
func interpreterAxis(v lua.LValue) (sessfile.InterpreterAxis, error) {
	switch val := v.(type) {
	case lua.LBool:
		if bool(val) {
			return sessfile.InterpreterAxis{}, fmt.Errorf("python = true is meaningless; use a version string or false")
		}
		return sessfile.InterpreterAxis{Host: true}, nil
	case lua.LString:
		if string(val) == "none" {
			return sessfile.InterpreterAxis{Host: true}, nil
		}
		return sessfile.InterpreterAxis{Values: []string{string(val)}}, nil
	case *lua.LTable:
		values, err := stringList(val)
		if err != nil {
			return sessfile.InterpreterAxis{}, fmt.Errorf("python: %w", err)
		}
		return sessfile.InterpreterAxis{Values: values, List: true}, nil
	default:
		return sessfile.InterpreterAxis{}, fmt.Errorf("python must be a string, list, or false; got %s", v.Type())
	}
}

// luaParametrize implements parametrize(names, values, [opts], inner),
// returning a wrapper that session() unwraps. Stacking nests wrappers; the
// outermost call is the slowest-varying layer.
func (h *Host) luaParametrize(L *lua.LState) int {
	names := parseArgNames(L.CheckAny(1))
	if len(names) == 0 {
		L.RaiseError("parametrize: no parameter names given")
		return 0
	}
	valuesTbl := L.CheckTable(2)

	var optsTbl *lua.LTable
	innerArg := L.Get(3)
	if tbl, ok := innerArg.(*lua.LTable); ok && !isWrapper(tbl) {
		optsTbl = tbl
		innerArg = L.Get(4)
	}

	var ids []string
	var tags []string
	if optsTbl != nil {
		if idsVal := optsTbl.RawGetString("ids"); idsVal != lua.LNil {
			list, err := stringList(idsVal)
			if err != nil {
				L.RaiseError("parametrize ids: %s", err.Error())
				return 0
			}
			ids = list
		}
		if tagsVal := optsTbl.RawGetString("tags"); tagsVal != lua.LNil {
			list, err := stringList(tagsVal)
			if err != nil {
				L.RaiseError("parametrize tags: %s", err.Error())
				return 0
			}
			tags = list
		}
	}

	values := decodeParamValues(names, valuesTbl, ids, tags)
	layer := sessfile.NewParametrization(names, values)

	innerLayers, fn, err := unwrapFunction(innerArg)
	if err != nil {
		L.RaiseError("parametrize: %s", err.Error())
		return 0
	}

	wrapper := L.NewTable()
	wrapper.RawSetString(wrapperMarker, lua.LBool(true))
	ud := L.NewUserData()
	ud.Value = wrapperPayload{
		layers: append([]sessfile.Parametrization{layer}, innerLayers...),
		fn:     fn,
	}
	wrapper.RawSetString("payload", ud)
	L.Push(wrapper)
	return 1
}

// luaParam implements param(value, [opts]): it wraps one parametrize value
// with an id and tags.
func (h *Host) luaParam(L *lua.LState) int {
	value := L.CheckAny(1)
	tbl := L.NewTable()
	tbl.RawSetString(paramMarker, lua.LBool(true))
	tbl.RawSetString("value", value)
	if opts := L.OptTable(2, nil); opts != nil {
		tbl.RawSetString("id", opts.RawGetString("id"))
		tbl.RawSetString("tags", opts.RawGetString("tags"))
	}
	L.Push(tbl)
	return 1
}

// luaNeedsVersion implements needs_version(spec): it fails evaluation fast
// when the running driver does not satisfy the version constraint.
func (h *Host) luaNeedsVersion(L *lua.LState) int {
	spec := L.CheckString(1)
	ok, err := versionSatisfies(h.Version, spec)
	if err != nil {
		L.RaiseError("needs_version: %s", err.Error())
		return 0
	}
	if !ok {
		ud := L.NewUserData()
		ud.Value = core.New(core.KindVersionMismatch,
			"this configuration requires sesh %s, but %s is running", spec, h.Version)
		L.Error(ud, 1)
	}
	return 0
}

// newOptionsProxy builds the global options record: assignments flow into
// the option set at script precedence.
func (h *Host) newOptionsProxy(L *lua.LState) *lua.LTable {
	proxy := L.NewTable()
	meta := L.NewTable()
	meta.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(2)
		value := toGoValue(L.Get(3))
		if err := h.Options.ApplyScriptOption(key, value); err != nil {
			ud := L.NewUserData()
			ud.Value = err
			L.Error(ud, 1)
		}
		return 0
	}))
	L.SetMetatable(proxy, meta)
	return proxy
}

type wrapperPayload struct {
	layers []sessfile.Parametrization
	fn     *lua.LFunction
}

func isWrapper(tbl *lua.LTable) bool {
	return lua.LVAsBool(tbl.RawGetString(wrapperMarker))
}

// unwrapFunction accepts a plain Lua function or a parametrize wrapper and
// returns the accumulated layers plus the innermost function.
func unwrapFunction(v lua.LValue) ([]sessfile.Parametrization, *lua.LFunction, error) {
	switch val := v.(type) {
	case *lua.LFunction:
		return nil, val, nil
	case *lua.LTable:
		if !isWrapper(val) {
			return nil, nil, fmt.Errorf("expected a function or parametrize(...), got a table")
		}
		ud, ok := val.RawGetString("payload").(*lua.LUserData)
		if !ok {
			return nil, nil, fmt.Errorf("malformed parametrize wrapper")
		}
		payload, ok := ud.Value.(wrapperPayload)
		if !ok {
			return nil, nil, fmt.Errorf("malformed parametrize wrapper")
		}
		return payload.layers, payload.fn, nil
	default:
		return nil, nil, fmt.Errorf("expected a function, got %s", v.Type())
	}
}

// parseArgNames accepts "arg", "arg,arg2", or a list of names.
func parseArgNames(v lua.LValue) []string {
	switch val := v.(type) {
	case lua.LString:
		var names []string
		for _, part := range strings.Split(string(val), ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				names = append(names, trimmed)
			}
		}
		return names
	case *lua.LTable:
		names, err := stringList(val)
		if err != nil {
			return nil
		}
		return names
	default:
		return nil
	}
}

// decodeParamValues converts the Lua value rows into the data-model form,
// folding positional ids and layer tags into Param wrappers.
func decodeParamValues(names []string, valuesTbl *lua.LTable, ids, tags []string) []any {
	var values []any
	i := 0
	valuesTbl.ForEach(func(_, v lua.LValue) {
		value := decodeParamCell(names, v)
		if i < len(ids) || len(tags) > 0 {
			p := sessfile.Param{Value: value, Tags: tags}
			if existing, ok := value.(sessfile.Param); ok {
				p = existing
				p.Tags = append(p.Tags, tags...)
			}
			if i < len(ids) && p.ID == "" {
				p.ID = ids[i]
			}
			value = p
		}
		values = append(values, value)
		i++
	})
	return values
}

// decodeParamCell converts one row: a scalar, a param() wrapper, or (for
// multi-name layers) a list of per-name cells.
func decodeParamCell(names []string, v lua.LValue) any {
	if tbl, ok := v.(*lua.LTable); ok {
		if lua.LVAsBool(tbl.RawGetString(paramMarker)) {
			p := sessfile.Param{Value: toGoValue(tbl.RawGetString("value"))}
			if id := tbl.RawGetString("id"); id != lua.LNil {
				p.ID = lua.LVAsString(id)
			}
			if tagsVal := tbl.RawGetString("tags"); tagsVal != lua.LNil {
				if tags, err := stringList(tagsVal); err == nil {
					p.Tags = tags
				}
			}
			return p
		}
		if len(names) > 1 {
			var row []any
			tbl.ForEach(func(_, cell lua.LValue) {
				row = append(row, decodeParamCell(names[:1], cell))
			})
			return row
		}
	}
	return toGoValue(v)
}

func (h *Host) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}
