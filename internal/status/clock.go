package status

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already ran
	// or was already stopped.
	Stop() bool
}

// Clock schedules callbacks. It exists so tests can drive expiry deterministically.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
func (SystemClock) Now() time.Time                            { return time.Now() }
