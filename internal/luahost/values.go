// SPDX-License-Identifier: MPL-2.0

package luahost

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// toGoValue converts a Lua value to its Go counterpart. Tables convert to
// []any for array-shaped tables and map[string]any otherwise; functions and
// userdata convert to nil.
func toGoValue(lv lua.LValue) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		return tableToGo(v)
	case *lua.LNilType:
		return nil
	default:
		return nil
	}
}

// tableToGo converts a Lua table to a Go slice when it is a contiguous
// array (sequential integer keys from 1), a map otherwise.
func tableToGo(t *lua.LTable) any {
	length := t.Len()
	if length > 0 {
		arr := make([]any, 0, length)
		isArray := true
		count := 0
		t.ForEach(func(k, _ lua.LValue) {
			count++
			if kn, ok := k.(lua.LNumber); !ok || float64(kn) != float64(int(kn)) || int(kn) < 1 || int(kn) > length {
				isArray = false
			}
		})
		if isArray && count == length {
			for i := 1; i <= length; i++ {
				arr = append(arr, toGoValue(t.RawGetInt(i)))
			}
			return arr
		}
	}
	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		m[lua.LVAsString(k)] = toGoValue(v)
	})
	return m
}

// stringList decodes a Lua list of strings.
func stringList(v lua.LValue) ([]string, error) {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("expected a list of strings, got %s", v.Type())
	}
	var out []string
	var err error
	tbl.ForEach(func(_, item lua.LValue) {
		if err != nil {
			return
		}
		s, ok := item.(lua.LString)
		if !ok {
			err = fmt.Errorf("expected a string, got %s", item.Type())
			return
		}
		out = append(out, string(s))
	})
	return out, err
}

// stringOrList decodes either one string or a list of strings.
func stringOrList(v lua.LValue) ([]string, error) {
	if s, ok := v.(lua.LString); ok {
		return []string{string(s)}, nil
	}
	return stringList(v)
}

// luaStrings converts a Go string slice to a fresh Lua table.
func luaStrings(L *lua.LState, values []string) *lua.LTable {
	tbl := L.NewTable()
	for _, v := range values {
		tbl.Append(lua.LString(v))
	}
	return tbl
}
