package pipeline

import (
	"fmt"
	"sync"
	"time"

	"splicer/internal/splice"
)

// State is the pipeline playback state.
type State int

const (
	StateNull State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "null"
	}
}

// RunningClock reports pipeline running time: wall time spent playing since
// the first Play, excluding paused intervals. It is unavailable until the
// first Play and after Stop.
type RunningClock struct {
	now func() time.Time

	mu      sync.Mutex
	state   State
	base    time.Duration
	resumed time.Time
}

// ClockOption customises a RunningClock.
type ClockOption func(*RunningClock)

// WithNow overrides the wall clock (primarily for tests).
func WithNow(now func() time.Time) ClockOption {
	return func(c *RunningClock) {
		if now != nil {
			c.now = now
		}
	}
}

// NewRunningClock returns a clock in the null state.
func NewRunningClock(opts ...ClockOption) *RunningClock {
	c := &RunningClock{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Play starts or resumes running time.
func (c *RunningClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePlaying {
		return
	}
	c.state = StatePlaying
	c.resumed = c.now()
}

// Pause freezes running time. Pausing a clock that never played is a no-op.
func (c *RunningClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying {
		return
	}
	c.base += c.now().Sub(c.resumed)
	c.state = StatePaused
}

// Stop resets the clock to the null state.
func (c *RunningClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateNull
	c.base = 0
	c.resumed = time.Time{}
}

// State returns the playback state.
func (c *RunningClock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RunningTime implements splice.Clock.
func (c *RunningClock) RunningTime() (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePlaying:
		return c.base + c.now().Sub(c.resumed), nil
	case StatePaused:
		return c.base, nil
	default:
		return 0, fmt.Errorf("pipeline %s: %w", c.state, splice.ErrClockUnavailable)
	}
}
