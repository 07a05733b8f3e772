package splice

import (
	"sync"
	"time"
)

// WindowState enumerates the ad window states.
type WindowState uint8

const (
	WindowIdle WindowState = iota
	WindowActive
)

func (s WindowState) String() string {
	if s == WindowActive {
		return "active"
	}
	return "idle"
}

// WindowSnapshot is a point-in-time copy of the ad window.
type WindowSnapshot struct {
	State   WindowState
	StartID EventID
	EndTime time.Duration
}

// AdWindow guards against overlapping ad breaks. Only two transitions exist:
// Idle to Active when a splice-out is issued, and Active back to Idle when
// the matching splice-in is issued.
type AdWindow struct {
	mu      sync.Mutex
	state   WindowState
	startID EventID
	endTime time.Duration
}

// NewAdWindow returns an idle window.
func NewAdWindow() *AdWindow {
	return &AdWindow{}
}

// Open moves the window to Active. It returns false, leaving the window
// untouched, when a break is already open.
func (w *AdWindow) Open(id EventID, end time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WindowIdle {
		return false
	}
	w.state = WindowActive
	w.startID = id
	w.endTime = end
	return true
}

// Close returns the window to Idle if it is the break opened by startID.
func (w *AdWindow) Close(startID EventID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WindowActive || w.startID != startID {
		return false
	}
	w.state = WindowIdle
	w.startID = 0
	w.endTime = 0
	return true
}

// Active reports whether an ad break is open.
func (w *AdWindow) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == WindowActive
}

// Snapshot returns the current window contents.
func (w *AdWindow) Snapshot() WindowSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WindowSnapshot{State: w.state, StartID: w.startID, EndTime: w.endTime}
}
