package testsupport

import (
	"sort"
	"sync"
	"time"

	"splicer/internal/splice"
)

// ManualClock is a settable running-time source. It reports
// splice.ErrClockUnavailable until Set is called or after Unset.
type ManualClock struct {
	mu    sync.Mutex
	now   time.Duration
	valid bool
}

// NewManualClock returns a clock already reading start.
func NewManualClock(start time.Duration) *ManualClock {
	return &ManualClock{now: start, valid: true}
}

func (c *ManualClock) RunningTime() (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return 0, splice.ErrClockUnavailable
	}
	return c.now, nil
}

// Set moves the clock to d and marks it available.
func (c *ManualClock) Set(d time.Duration) {
	c.mu.Lock()
	c.now = d
	c.valid = true
	c.mu.Unlock()
}

// Unset makes the clock unavailable.
func (c *ManualClock) Unset() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// ManualTimers fires deferred actions only when Advance moves its virtual
// time past their deadline. Actions never run inside AfterFunc.
type ManualTimers struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*manualTimer
	// OnFire, when set, runs before each action with the action's deadline.
	OnFire func(at time.Duration)
}

type manualTimer struct {
	owner *ManualTimers
	at    time.Duration
	seq   int
	fn    func()
	done  bool
}

// NewManualTimers returns timers at virtual time zero.
func NewManualTimers() *ManualTimers {
	return &ManualTimers{}
}

func (m *ManualTimers) AfterFunc(d time.Duration, fn func()) splice.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{owner: m, at: m.now + d, seq: m.seq, fn: fn}
	m.pending = append(m.pending, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.owner.removeLocked(t)
	return true
}

func (m *ManualTimers) removeLocked(target *manualTimer) {
	for i, t := range m.pending {
		if t == target {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// Now returns the virtual time.
func (m *ManualTimers) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending reports the number of armed actions.
func (m *ManualTimers) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves virtual time forward by d, firing due actions in deadline
// order. Actions armed by a firing action run too if they fall due within d.
func (m *ManualTimers) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	for {
		next := m.nextDueLocked(target)
		if next == nil {
			break
		}
		next.done = true
		m.removeLocked(next)
		m.now = next.at
		onFire := m.OnFire
		m.mu.Unlock()
		if onFire != nil {
			onFire(next.at)
		}
		next.fn()
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

func (m *ManualTimers) nextDueLocked(limit time.Duration) *manualTimer {
	due := make([]*manualTimer, 0, len(m.pending))
	for _, t := range m.pending {
		if t.at <= limit {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	return due[0]
}

// Injection is one section captured by RecordingMux.
type Injection struct {
	Data []byte
	PID  uint16
}

// RecordingMux captures injected sections. Setting Err makes subsequent
// injections fail.
type RecordingMux struct {
	mu         sync.Mutex
	injections []Injection
	err        error
}

func (r *RecordingMux) InjectSection(data []byte, pid uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := append([]byte(nil), data...)
	r.injections = append(r.injections, Injection{Data: cp, PID: pid})
	return nil
}

// Fail makes subsequent injections return err; nil restores success.
func (r *RecordingMux) Fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Injections returns a copy of the captured sections.
func (r *RecordingMux) Injections() []Injection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Injection(nil), r.injections...)
}

// Events decodes every captured section.
func (r *RecordingMux) Events(t interface {
	Helper()
	Fatalf(string, ...any)
}) []splice.Event {
	t.Helper()
	var out []splice.Event
	for i, inj := range r.Injections() {
		ev, err := splice.DecodeSection(inj.Data)
		if err != nil {
			t.Fatalf("decode injection %d: %v", i, err)
		}
		out = append(out, ev)
	}
	return out
}

// ChannelDetector is a Detector fed by tests.
type ChannelDetector struct {
	C chan splice.Match
}

// NewChannelDetector returns a detector with an unbuffered match channel.
func NewChannelDetector() *ChannelDetector {
	return &ChannelDetector{C: make(chan splice.Match)}
}

func (d *ChannelDetector) Matches() <-chan splice.Match { return d.C }
