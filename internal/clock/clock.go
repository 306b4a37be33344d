// Package clock is the engine time source; tests may freeze it.
package clock

import "time"

// NowFunc returns the current time.
var NowFunc = time.Now

// Now returns NowFunc().
func Now() time.Time { return NowFunc() }

// Since returns the time elapsed since t according to NowFunc.
func Since(t time.Time) time.Duration { return Now().Sub(t) }

// Freeze pins Now to t until the returned restore function is called.
func Freeze(t time.Time) (restore func()) {
	previous := NowFunc
	NowFunc = func() time.Time { return t }
	return func() { NowFunc = previous }
}
