package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// Argument helpers for Go functions exposed to Lua. A missing argument raises
// "Invalid number of arguments".

func requireArg(L *lua.LState, n int) {
	if L.GetTop() < n {
		L.RaiseError("Invalid number of arguments")
	}
}

// ArgBool returns required boolean argument n.
func ArgBool(L *lua.LState, n int) bool {
	requireArg(L, n)
	return L.CheckBool(n)
}

// ArgNumber returns required number argument n.
func ArgNumber(L *lua.LState, n int) float64 {
	requireArg(L, n)
	return float64(L.CheckNumber(n))
}

// ArgString returns required argument n as a string. Numbers are converted.
func ArgString(L *lua.LState, n int) string {
	requireArg(L, n)
	return toString(L, n)
}

func toString(L *lua.LState, n int) string {
	switch v := L.Get(n).(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return v.String()
	default:
		L.RaiseError("Invalid argument, must be a string or a number")
		return ""
	}
}
