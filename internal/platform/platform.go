// Package platform provides the Lua libraries the firmware preloads:
// "luaplatform" for the shell's periodic-callback switches and "arduino" for
// board timing.
package platform

import (
	lua "github.com/yuin/gopher-lua"

	"luashell/internal/version"
)

// Library names as seen by require.
const (
	PlatformLibName = "luaplatform"
	ArduinoLibName  = "arduino"
)

// Toggles are the callback switches owned by the shell session.
type Toggles interface {
	ExecEnabled() bool
	SetExecEnabled(enabled bool)
	HousekeepingEnabled() bool
	SetHousekeepingEnabled(enabled bool)
}

// PlatformLoader returns the luaplatform module loader bound to t.
func PlatformLoader(t Toggles) lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"execEnabled": func(L *lua.LState) int {
				L.Push(lua.LBool(t.ExecEnabled()))
				return 1
			},
			"housekeepingEnabled": func(L *lua.LState) int {
				L.Push(lua.LBool(t.HousekeepingEnabled()))
				return 1
			},
			"setExecEnabled": func(L *lua.LState) int {
				t.SetExecEnabled(ArgBool(L, 1))
				return 0
			},
			"setHousekeepingEnabled": func(L *lua.LState) int {
				t.SetHousekeepingEnabled(ArgBool(L, 1))
				return 0
			},
			"version": func(L *lua.LState) int {
				L.Push(lua.LString(version.GetVersion()))
				return 1
			},
			// versionCompatible(">= 0.3") lets a module check the shell it runs on.
			"versionCompatible": func(L *lua.LState) int {
				L.Push(lua.LBool(version.IsCompatible(ArgString(L, 1))))
				return 1
			},
		})
		L.Push(mod)
		return 1
	}
}
