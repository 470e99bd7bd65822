// Package clock is the single time source for the tick loop and the Lua time bindings.
package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// SleepFunc blocks for the given duration. Override in tests to avoid real delays.
var SleepFunc = time.Sleep

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Sleep is a thin wrapper around SleepFunc.
func Sleep(d time.Duration) { SleepFunc(d) }
