package splice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"splicer/internal/logging"
)

// DefaultQueueSize bounds pending trigger requests awaiting the scheduler.
const DefaultQueueSize = 16

// TriggerConfig selects and parameterises the active triggers.
type TriggerConfig struct {
	Periodic          bool
	ContentMatch      bool
	Period            time.Duration
	LeadTime          time.Duration
	AdDuration        time.Duration
	DetectorReference string
}

// Options carries the coordinator's collaborators.
type Options struct {
	Clock          Clock
	Detector       Detector
	Handle         *Handle
	PID            uint16
	Section        SectionOptions
	SpliceInOnStop bool
	Timers         Timers
	Logger         *slog.Logger
	Observers      []Observer
	QueueSize      int
}

// Status summarises a running coordinator.
type Status struct {
	Running   bool
	Triggers  []string
	Scheduler SchedulerStatus
	Dropped   uint64
}

// Coordinator owns the scheduler and its triggers. Trigger requests are
// queued and applied by a single loop goroutine.
type Coordinator struct {
	cfg       TriggerConfig
	handle    *Handle
	scheduler *Scheduler
	window    *AdWindow
	triggers  []Trigger
	manual    *Manual
	logger    *slog.Logger
	queueSize int

	mu      sync.Mutex
	queue   chan Request
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	stopped bool
	dropped uint64
}

// NewCoordinator validates cfg and builds the scheduler graph.
func NewCoordinator(cfg TriggerConfig, opts Options) (*Coordinator, error) {
	if opts.Clock == nil {
		return nil, errors.New("coordinator: clock is required")
	}
	if opts.Handle == nil {
		return nil, errors.New("coordinator: multiplexer handle is required")
	}
	if cfg.LeadTime < 0 {
		return nil, fmt.Errorf("coordinator: lead time must be non-negative, got %s", cfg.LeadTime)
	}
	if cfg.AdDuration < 0 {
		return nil, fmt.Errorf("coordinator: %w: %s", ErrInvalidDuration, cfg.AdDuration)
	}
	if cfg.Periodic && cfg.Period <= 0 {
		return nil, fmt.Errorf("coordinator: period must be positive, got %s", cfg.Period)
	}
	if cfg.ContentMatch && opts.Detector == nil {
		return nil, errors.New("coordinator: content match requires a detector")
	}

	logger := logging.NewComponentLogger(opts.Logger, "coordinator")
	timers := opts.Timers
	if timers == nil {
		timers = SystemTimers{}
	}
	section := opts.Section
	if section == (SectionOptions{}) {
		section = DefaultSectionOptions()
	}

	window := NewAdWindow()
	schedOpts := []SchedulerOption{
		WithTimers(timers),
		WithLogger(opts.Logger),
		WithSectionOptions(section),
		WithSpliceInOnStop(opts.SpliceInOnStop),
	}
	for _, obs := range opts.Observers {
		schedOpts = append(schedOpts, WithObserver(obs))
	}
	scheduler := NewScheduler(
		opts.Clock,
		NewSequencer(),
		window,
		NewDispatcher(opts.Handle, opts.PID, opts.Logger),
		schedOpts...,
	)

	c := &Coordinator{
		cfg:       cfg,
		handle:    opts.Handle,
		scheduler: scheduler,
		window:    window,
		manual:    NewManual(),
		logger:    logger,
		queueSize: opts.QueueSize,
	}
	if c.queueSize <= 0 {
		c.queueSize = DefaultQueueSize
	}
	if cfg.Periodic {
		c.triggers = append(c.triggers, NewPeriodic(cfg.Period, cfg.LeadTime, cfg.AdDuration, timers))
	}
	if cfg.ContentMatch {
		c.triggers = append(c.triggers, NewContentMatch(opts.Detector, window, cfg.DetectorReference, cfg.LeadTime, cfg.AdDuration, opts.Logger))
	}
	c.triggers = append(c.triggers, c.manual)
	return c, nil
}

// Start launches the request loop and every configured trigger.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if c.running {
		return errors.New("coordinator already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.queue = make(chan Request, c.queueSize)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(runCtx, c.queue, c.done)

	for i, trig := range c.triggers {
		if err := trig.Start(runCtx, c.enqueue); err != nil {
			for _, started := range c.triggers[:i] {
				started.Stop()
			}
			cancel()
			<-c.done
			return fmt.Errorf("start %s trigger: %w", trig.Name(), err)
		}
	}
	c.running = true

	c.logger.Info("coordinator started",
		logging.String(logging.FieldEventType, "coordinator_started"),
		logging.Any("triggers", c.triggerNames()),
		logging.Duration("lead_time", c.cfg.LeadTime),
		logging.Duration("ad_duration", c.cfg.AdDuration),
	)
	return nil
}

func (c *Coordinator) enqueue(req Request) bool {
	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()
	if queue == nil {
		return false
	}
	select {
	case queue <- req:
		return true
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		logging.WarnWithContext(c.logger, "splice-out request dropped", "splice_request_dropped",
			logging.String(logging.FieldTriggerSource, req.Source),
			logging.String(logging.FieldErrorHint, "the scheduler is falling behind its triggers"),
			logging.String(logging.FieldImpact, "ad opportunity skipped"),
		)
		return false
	}
}

func (c *Coordinator) loop(ctx context.Context, queue <-chan Request, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-queue:
			err := c.scheduler.OnSpliceOutRequested(req)
			if err != nil && errors.Is(err, ErrWindowActive) {
				c.logger.Debug("request ignored while ad window active",
					logging.String(logging.FieldTriggerSource, req.Source),
				)
			}
		}
	}
}

// Manual submits an operator-issued splice-out. A zero duration falls back
// to the configured ad duration. It reports false when the coordinator is
// not running or the queue is full.
func (c *Coordinator) Manual(ahead, duration time.Duration) bool {
	if duration == 0 {
		duration = c.cfg.AdDuration
	}
	c.mu.Lock()
	running := c.running
	queue := c.queue
	c.mu.Unlock()
	if !running || queue == nil {
		return false
	}
	return c.manual.Fire(ahead, duration)
}

// Window reports the ad window state.
func (c *Coordinator) Window() WindowReader { return c.window }

// Dropped returns the number of requests discarded because the queue was full.
func (c *Coordinator) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Status returns a snapshot of the coordinator.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	running, dropped := c.running, c.dropped
	c.mu.Unlock()
	return Status{
		Running:   running,
		Triggers:  c.triggerNames(),
		Scheduler: c.scheduler.Status(),
		Dropped:   dropped,
	}
}

func (c *Coordinator) triggerNames() []string {
	names := make([]string, 0, len(c.triggers))
	for _, trig := range c.triggers {
		names = append(names, trig.Name())
	}
	return names
}

// Stop halts triggers and the request loop, settles the scheduler and
// releases the multiplexer handle. Stop is idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	wasRunning := c.running
	c.running = false
	cancel, done := c.cancel, c.done
	c.queue = nil
	c.mu.Unlock()

	for _, trig := range c.triggers {
		trig.Stop()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	c.scheduler.Stop()
	c.handle.Release()

	if wasRunning {
		c.logger.Info("coordinator stopped",
			logging.String(logging.FieldEventType, "coordinator_stopped"),
			logging.Uint64("last_event_id", uint64(c.scheduler.Status().LastEventID)),
		)
	}
}
