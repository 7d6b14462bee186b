// SPDX-License-Identifier: MPL-2.0

package luahost

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// MatchKeywords evaluates a pytest-style keyword expression against a set of
// candidate strings (session names and tags). Identifiers in the expression
// resolve to true when they are a substring of any candidate; the boolean
// operators and parentheses are Lua's own (and, or, not).
//
// Each evaluation runs in a throwaway Lua state so keyword filtering stays
// independent of the configuration script's state.
func MatchKeywords(expr string, candidates []string) (bool, error) {
	L := lua.NewState()
	defer L.Close()

	env := L.NewTable()
	meta := L.NewTable()
	meta.RawSetString("__index", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(2)
		for _, candidate := range candidates {
			if strings.Contains(candidate, name) {
				L.Push(lua.LTrue)
				return 1
			}
		}
		L.Push(lua.LFalse)
		return 1
	}))
	L.SetMetatable(env, meta)

	fn, err := L.LoadString("return (" + expr + ")")
	if err != nil {
		return false, fmt.Errorf("invalid keyword expression: %w", err)
	}
	fn.Env = env
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return false, fmt.Errorf("keyword expression failed: %w", err)
	}
	result := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(result), nil
}
