package splice

import "time"

// Clock exposes the media pipeline's running time. Implementations return an
// error wrapping ErrClockUnavailable until data has started flowing.
type Clock interface {
	RunningTime() (time.Duration, error)
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() (time.Duration, error)

func (f ClockFunc) RunningTime() (time.Duration, error) { return f() }

// Timer is a single-shot deferred action. Stop reports whether the call
// prevented the action from running; calling it more than once is harmless.
type Timer interface {
	Stop() bool
}

// Timers arms deferred actions. The default implementation wraps
// time.AfterFunc; tests substitute a manually advanced one.
type Timers interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemTimers schedules actions on the Go runtime timer wheel.
type SystemTimers struct{}

func (SystemTimers) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
