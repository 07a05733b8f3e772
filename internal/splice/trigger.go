package splice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"splicer/internal/logging"
)

// Trigger source names recorded on every request.
const (
	SourcePeriodic     = "periodic"
	SourceContentMatch = "content_match"
	SourceManual       = "manual"
)

// Request asks the scheduler for a splice-out Ahead of the current running
// time, covering an ad break of Duration.
type Request struct {
	Ahead    time.Duration
	Duration time.Duration
	Source   string
}

// Sink receives splice-out requests from a trigger and reports whether the
// request was queued.
type Sink func(Request) bool

// Trigger produces splice-out requests. Start must not block; Stop is
// idempotent.
type Trigger interface {
	Name() string
	Start(ctx context.Context, sink Sink) error
	Stop()
}

// WindowReader exposes whether an ad break is open.
type WindowReader interface {
	Active() bool
}

// Periodic fires a request every Period regardless of content.
type Periodic struct {
	period   time.Duration
	ahead    time.Duration
	duration time.Duration
	timers   Timers

	mu      sync.Mutex
	timer   Timer
	stopped bool
}

// NewPeriodic returns a trigger firing every period. A nil timers value uses
// the system timers.
func NewPeriodic(period, ahead, duration time.Duration, timers Timers) *Periodic {
	if timers == nil {
		timers = SystemTimers{}
	}
	return &Periodic{period: period, ahead: ahead, duration: duration, timers: timers}
}

func (p *Periodic) Name() string { return SourcePeriodic }

// Start arms the first tick one period from now.
func (p *Periodic) Start(ctx context.Context, sink Sink) error {
	if p.period <= 0 {
		return errors.New("periodic trigger: period must be positive")
	}
	if sink == nil {
		return errors.New("periodic trigger: sink is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = false
	p.armLocked(ctx, sink)
	return nil
}

func (p *Periodic) armLocked(ctx context.Context, sink Sink) {
	p.timer = p.timers.AfterFunc(p.period, func() {
		p.mu.Lock()
		if p.stopped || ctx.Err() != nil {
			p.mu.Unlock()
			return
		}
		p.armLocked(ctx, sink)
		p.mu.Unlock()
		sink(Request{Ahead: p.ahead, Duration: p.duration, Source: SourcePeriodic})
	})
}

func (p *Periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Match is one detector report against the configured reference.
type Match struct {
	Reference string
	At        time.Time
}

// Detector delivers asynchronous match notifications from an external
// comparator.
type Detector interface {
	Matches() <-chan Match
}

// ContentMatch forwards detector matches as requests while no ad break is
// open. Matches that arrive during a break are dropped.
type ContentMatch struct {
	detector  Detector
	window    WindowReader
	reference string
	ahead     time.Duration
	duration  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewContentMatch builds a content-match trigger. When reference is set,
// matches reporting a different reference are ignored.
func NewContentMatch(detector Detector, window WindowReader, reference string, ahead, duration time.Duration, logger *slog.Logger) *ContentMatch {
	return &ContentMatch{
		detector:  detector,
		window:    window,
		reference: reference,
		ahead:     ahead,
		duration:  duration,
		logger:    logging.NewComponentLogger(logger, "content-match"),
	}
}

func (c *ContentMatch) Name() string { return SourceContentMatch }

func (c *ContentMatch) Start(ctx context.Context, sink Sink) error {
	if c.detector == nil {
		return errors.New("content match trigger: detector is required")
	}
	if sink == nil {
		return errors.New("content match trigger: sink is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("content match trigger: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, sink, c.done)
	return nil
}

func (c *ContentMatch) run(ctx context.Context, sink Sink, done chan struct{}) {
	defer close(done)
	matches := c.detector.Matches()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-matches:
			if !ok {
				return
			}
			c.handle(m, sink)
		}
	}
}

func (c *ContentMatch) handle(m Match, sink Sink) {
	if c.reference != "" && m.Reference != "" && m.Reference != c.reference {
		c.logger.Debug("match for foreign reference ignored",
			logging.String("reference", m.Reference),
			logging.String("expected_reference", c.reference),
		)
		return
	}
	if c.window != nil && c.window.Active() {
		c.logger.Debug("match dropped during active ad window",
			logging.String("reference", m.Reference),
		)
		return
	}
	sink(Request{Ahead: c.ahead, Duration: c.duration, Source: SourceContentMatch})
}

func (c *ContentMatch) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Manual forwards operator-issued requests.
type Manual struct {
	mu   sync.Mutex
	sink Sink
}

// NewManual returns an operator trigger.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Name() string { return SourceManual }

func (m *Manual) Start(_ context.Context, sink Sink) error {
	if sink == nil {
		return errors.New("manual trigger: sink is required")
	}
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
	return nil
}

// Fire submits one request. It reports false when the trigger is not started
// or the sink refused the request.
func (m *Manual) Fire(ahead, duration time.Duration) bool {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink == nil {
		return false
	}
	return sink(Request{Ahead: ahead, Duration: duration, Source: SourceManual})
}

func (m *Manual) Stop() {
	m.mu.Lock()
	m.sink = nil
	m.mu.Unlock()
}
