package splice

import "errors"

var (
	// ErrClockUnavailable reports that the pipeline has no running time yet.
	ErrClockUnavailable = errors.New("running time unavailable")
	// ErrTargetUnavailable reports that the multiplexer handle was torn down.
	ErrTargetUnavailable = errors.New("multiplexer unavailable")
	// ErrInjection reports a live multiplexer that failed to write a section.
	ErrInjection = errors.New("section injection failed")
	// ErrInvalidDuration reports a negative break duration.
	ErrInvalidDuration = errors.New("invalid splice duration")
	// ErrEncoding reports a splice section that could not be framed.
	ErrEncoding = errors.New("splice section encoding failed")
	// ErrWindowActive reports a splice-out request rejected because an ad
	// window is already open.
	ErrWindowActive = errors.New("ad window already active")
	// ErrStopped reports a request made after the scheduler was stopped.
	ErrStopped = errors.New("scheduler stopped")
)

// ErrorKind returns a stable classification string for errors produced by
// this package. Unknown errors map to "internal"; nil maps to "".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrClockUnavailable):
		return "clock_unavailable"
	case errors.Is(err, ErrTargetUnavailable):
		return "target_unavailable"
	case errors.Is(err, ErrInjection):
		return "injection_failed"
	case errors.Is(err, ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrWindowActive):
		return "window_active"
	case errors.Is(err, ErrStopped):
		return "stopped"
	default:
		return "internal"
	}
}
