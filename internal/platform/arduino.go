package platform

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"luashell/internal/clock"
)

// ArduinoLoader returns the arduino module loader. millis and micros count
// from boot, the moment the shell started.
func ArduinoLoader(boot time.Time) lua.LGFunction {
	a := &arduino{boot: boot}
	return func(L *lua.LState) int {
		mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"millis":            a.millis,
			"micros":            a.micros,
			"delay":             a.delay,
			"delayMicroseconds": a.delayMicroseconds,
		})
		L.Push(mod)
		return 1
	}
}

type arduino struct {
	boot time.Time
}

// Lua numbers are doubles, so the unsigned counters are returned as numbers.
func (a *arduino) millis(L *lua.LState) int {
	L.Push(lua.LNumber(clock.Now().Sub(a.boot).Milliseconds()))
	return 1
}

func (a *arduino) micros(L *lua.LState) int {
	L.Push(lua.LNumber(clock.Now().Sub(a.boot).Microseconds()))
	return 1
}

func (a *arduino) delay(L *lua.LState) int {
	sleep(L, time.Millisecond)
	return 0
}

func (a *arduino) delayMicroseconds(L *lua.LState) int {
	sleep(L, time.Microsecond)
	return 0
}

func sleep(L *lua.LState, unit time.Duration) {
	t := ArgNumber(L, 1)
	if t < 0 {
		L.RaiseError("Delay time cannot be negative")
	}
	clock.Sleep(time.Duration(t * float64(unit)))
}
