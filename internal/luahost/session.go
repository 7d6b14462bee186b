// SPDX-License-Identifier: MPL-2.0

package luahost

import (
	"errors"
	"strings"

	"sesh-cli/pkg/sessfile"

	lua "github.com/yuin/gopher-lua"
)

// sessionTypeName is the metatable name of the session handle userdata.
const sessionTypeName = "sesh.session"

// wrapFunc adapts a Lua session function into the engine's sessfile.Func.
// Lua errors raised by the binding carry the typed Go error in userdata;
// everything else becomes a plain failure.
func (h *Host) wrapFunc(fn *lua.LFunction) sessfile.Func {
	return func(s sessfile.Session) error {
		L := h.state
		ud := h.newSessionUD(L, s)
		err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, ud)
		if err != nil {
			return mapLuaError(err)
		}
		return nil
	}
}

// mapLuaError unwraps the Go error a binding raised through the Lua error
// path, or converts a plain script error into a failure.
func mapLuaError(err error) error {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return sessfile.NewFailure("%s", err.Error())
	}
	if ud, ok := apiErr.Object.(*lua.LUserData); ok {
		if goErr, ok := ud.Value.(error); ok {
			return goErr
		}
	}
	return sessfile.NewFailure("%s", strings.TrimSpace(apiErr.Error()))
}

// raiseGoError aborts the running Lua function with a Go error attached, so
// the adapter can recover it typed.
func raiseGoError(L *lua.LState, err error) {
	ud := L.NewUserData()
	ud.Value = err
	L.Error(ud, 1)
}

// newSessionUD wraps the engine session handle for Lua. Methods use colon
// call syntax (s:run(...)); properties read through __index.
func (h *Host) newSessionUD(L *lua.LState, s sessfile.Session) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = s

	mt := L.NewTypeMetatable(sessionTypeName)
	mt.RawSetString("__index", L.NewFunction(sessionIndex))
	mt.RawSetString("__newindex", L.NewFunction(sessionNewIndex))
	L.SetMetatable(ud, mt)
	return ud
}

// checkSession extracts the Go handle from the method receiver.
func checkSession(L *lua.LState) sessfile.Session {
	ud := L.CheckUserData(1)
	if s, ok := ud.Value.(sessfile.Session); ok {
		return s
	}
	L.ArgError(1, "session handle expected")
	return nil
}

// sessionMethods maps Lua method names to bindings.
var sessionMethods = map[string]lua.LGFunction{
	"install":                sessionInstall,
	"conda_install":          sessionCondaInstall,
	"run":                    sessionRun,
	"run_install":            sessionRunInstall,
	"run_shell":              sessionRunShell,
	"run_shell_install":      sessionRunShellInstall,
	"install_and_run_script": sessionInstallAndRunScript,
	"chdir":                  sessionChdir,
	"notify":                 sessionNotify,
	"create_tmp":             sessionCreateTmp,
	"log":                    sessionLog,
	"debug":                  sessionDebug,
	"warn":                   sessionWarn,
	"skip":                   sessionSkip,
	"error":                  sessionError,
}

// sessionIndex serves both methods and read-only properties.
func sessionIndex(L *lua.LState) int {
	s := checkSession(L)
	key := L.CheckString(2)

	if method, ok := sessionMethods[key]; ok {
		L.Push(L.NewFunction(method))
		return 1
	}

	switch key {
	case "name":
		L.Push(lua.LString(s.Name()))
	case "python":
		if s.Python() == "" {
			L.Push(lua.LNil)
		} else {
			L.Push(lua.LString(s.Python()))
		}
	case "venv_backend":
		L.Push(lua.LString(s.VenvBackend()))
	case "env_dir":
		L.Push(lua.LString(s.EnvDir()))
	case "posargs":
		L.Push(luaStrings(L, s.Posargs()))
	case "interactive":
		L.Push(lua.LBool(s.Interactive()))
	case "invoked_from":
		L.Push(lua.LString(s.InvokedFrom()))
	case "call_args":
		tbl := L.NewTable()
		spec := s.CallArgs()
		if spec != nil {
			for _, k := range spec.Keys() {
				v, _ := spec.Get(k)
				tbl.RawSetString(k, goToLua(L, v))
			}
		}
		L.Push(tbl)
	default:
		L.Push(lua.LNil)
	}
	return 1
}

// sessionNewIndex supports env mutation (s.env = {K = "v", GONE = false})
// and posargs replacement.
func sessionNewIndex(L *lua.LState) int {
	s := checkSession(L)
	key := L.CheckString(2)
	switch key {
	case "env":
		tbl := L.CheckTable(3)
		tbl.ForEach(func(k, v lua.LValue) {
			name := lua.LVAsString(k)
			if v == lua.LFalse {
				s.UnsetEnv(name)
				return
			}
			s.SetEnv(name, lua.LVAsString(v))
		})
	case "posargs":
		args, err := stringList(L.Get(3))
		if err != nil {
			L.ArgError(3, err.Error())
		}
		s.SetPosargs(args)
	default:
		L.ArgError(2, "unknown assignable session field "+key)
	}
	return 0
}

func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case nil:
		return lua.LNil
	default:
		return lua.LString(sessfile.FormatValue(val))
	}
}

// --- method bindings ---

func sessionInstall(L *lua.LState) int {
	s := checkSession(L)
	args := varargStrings(L, 2)
	if err := s.Install(args...); err != nil {
		raiseGoError(L, err)
	}
	return 0
}

// sessionCondaInstall accepts an optional leading {channels = {...}} table.
func sessionCondaInstall(L *lua.LState) int {
	s := checkSession(L)
	var channels []string
	start := 2
	if tbl, ok := L.Get(2).(*lua.LTable); ok {
		if chVal := tbl.RawGetString("channels"); chVal != lua.LNil {
			list, err := stringList(chVal)
			if err != nil {
				L.ArgError(2, err.Error())
			}
			channels = list
			start = 3
		}
	}
	args := varargStrings(L, start)
	if err := s.CondaInstall(channels, args...); err != nil {
		raiseGoError(L, err)
	}
	return 0
}

func sessionRun(L *lua.LState) int {
	return runBinding(L, func(s sessfile.Session, argv []string, opts []sessfile.RunOption) error {
		return s.Run(argv, opts...)
	})
}

func sessionRunInstall(L *lua.LState) int {
	return runBinding(L, func(s sessfile.Session, argv []string, opts []sessfile.RunOption) error {
		return s.RunInstall(argv, opts...)
	})
}

// runBinding implements run-family calls: trailing table arguments carry the
// per-call options.
func runBinding(L *lua.LState, call func(sessfile.Session, []string, []sessfile.RunOption) error) int {
	s := checkSession(L)
	argv, opts := runArgs(L, 2)
	if len(argv) == 0 {
		L.ArgError(2, "run needs at least one argument")
	}
	if err := call(s, argv, opts); err != nil {
		raiseGoError(L, err)
	}
	return 0
}

func sessionRunShell(L *lua.LState) int {
	s := checkSession(L)
	line := L.CheckString(2)
	opts := runOptsFrom(L, L.Get(3))
	if err := s.RunShell(line, opts...); err != nil {
		raiseGoError(L, err)
	}
	return 0
}

func sessionRunShellInstall(L *lua.LState) int {
	s := checkSession(L)
	line := L.CheckString(2)
	opts := runOptsFrom(L, L.Get(3))
	if err := s.RunShellInstall(line, opts...); err != nil {
		raiseGoError(L, err)
	}
	return 0
}

func sessionInstallAndRunScript(L *lua.LState) int {
	s := checkSession(L)
	path := L.CheckString(2)
	args := varargStrings(L, 3)
	if err := s.InstallAndRunScript(path, args...); err != nil {
		raiseGoError(L, err)
	}
	return 0
}

// sessionChdir changes directory; with a function argument the change is
// scoped and the previous directory is restored afterwards.
func sessionChdir(L *lua.LState) int {
	s := checkSession(L)
	path := L.CheckString(2)
	restore, err := s.Chdir(path)
	if err != nil {
		raiseGoError(L, err)
		return 0
	}
	if fn, ok := L.Get(3).(*lua.LFunction); ok {
		defer restore()
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, L.Get(1)); err != nil {
			raiseGoError(L, mapLuaError(err))
		}
	}
	return 0
}

func sessionNotify(L *lua.LState) int {
	s := checkSession(L)
	target := L.CheckString(2)
	var posargs []string
	if tbl, ok := L.Get(3).(*lua.LTable); ok {
		list, err := stringList(tbl)
		if err != nil {
			L.ArgError(3, err.Error())
		}
		posargs = list
	}
	if err := s.Notify(target, posargs); err != nil {
		raiseGoError(L, err)
	}
	return 0
}

func sessionCreateTmp(L *lua.LState) int {
	s := checkSession(L)
	dir, err := s.CreateTmp()
	if err != nil {
		raiseGoError(L, err)
		return 0
	}
	L.Push(lua.LString(dir))
	return 1
}

func sessionLog(L *lua.LState) int {
	checkSession(L).Log("%s", L.CheckString(2))
	return 0
}

func sessionDebug(L *lua.LState) int {
	checkSession(L).Debug("%s", L.CheckString(2))
	return 0
}

func sessionWarn(L *lua.LState) int {
	checkSession(L).Warn("%s", L.CheckString(2))
	return 0
}

func sessionSkip(L *lua.LState) int {
	s := checkSession(L)
	msg := L.OptString(2, "skipped")
	raiseGoError(L, s.Skip("%s", msg))
	return 0
}

func sessionError(L *lua.LState) int {
	s := checkSession(L)
	msg := L.OptString(2, "failed")
	raiseGoError(L, s.Error("%s", msg))
	return 0
}

// --- argument decoding helpers ---

// varargStrings collects string arguments from position start.
func varargStrings(L *lua.LState, start int) []string {
	var out []string
	for i := start; i <= L.GetTop(); i++ {
		out = append(out, L.CheckString(i))
	}
	return out
}

// runArgs collects argv strings and a trailing options table, if present.
func runArgs(L *lua.LState, start int) ([]string, []sessfile.RunOption) {
	var argv []string
	var opts []sessfile.RunOption
	for i := start; i <= L.GetTop(); i++ {
		v := L.Get(i)
		if tbl, ok := v.(*lua.LTable); ok && i == L.GetTop() {
			opts = runOptsFrom(L, tbl)
			break
		}
		argv = append(argv, L.CheckString(i))
	}
	return argv, opts
}

// runOptsFrom decodes a per-call options table: env, silent, success_codes,
// external, include_outer_env, interactive, timeout.
func runOptsFrom(L *lua.LState, v lua.LValue) []sessfile.RunOption {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	var opts []sessfile.RunOption
	if envVal, ok := tbl.RawGetString("env").(*lua.LTable); ok {
		env := make(map[string]string)
		envVal.ForEach(func(k, val lua.LValue) {
			env[lua.LVAsString(k)] = lua.LVAsString(val)
		})
		opts = append(opts, sessfile.WithEnv(env))
	}
	if lua.LVAsBool(tbl.RawGetString("silent")) {
		opts = append(opts, sessfile.WithSilent())
	}
	if codesVal, ok := tbl.RawGetString("success_codes").(*lua.LTable); ok {
		var codes []int
		codesVal.ForEach(func(_, val lua.LValue) {
			if n, ok := val.(lua.LNumber); ok {
				codes = append(codes, int(n))
			}
		})
		opts = append(opts, sessfile.WithSuccessCodes(codes...))
	}
	if lua.LVAsBool(tbl.RawGetString("external")) {
		opts = append(opts, sessfile.WithExternal())
	}
	if incl := tbl.RawGetString("include_outer_env"); incl == lua.LFalse {
		opts = append(opts, sessfile.WithoutOuterEnv())
	}
	if lua.LVAsBool(tbl.RawGetString("interactive")) {
		opts = append(opts, sessfile.WithInteractive())
	}
	if t, ok := tbl.RawGetString("timeout").(lua.LNumber); ok {
		opts = append(opts, sessfile.WithTimeout(float64(t)))
	}
	return opts
}
