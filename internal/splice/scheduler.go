package splice

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"splicer/internal/logging"
)

// Reasons recorded on splice-in records.
const (
	ReasonTimer    = "timer"
	ReasonShutdown = "shutdown"
)

// SchedulerOption customises a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTimers overrides the deferred-action source (primarily for tests).
func WithTimers(timers Timers) SchedulerOption {
	return func(s *Scheduler) {
		if timers != nil {
			s.timers = timers
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "scheduler")
		}
	}
}

// WithObserver registers an observer for dispatch attempts.
func WithObserver(obs Observer) SchedulerOption {
	return func(s *Scheduler) {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
}

// WithSectionOptions overrides the per-stream section constants.
func WithSectionOptions(opts SectionOptions) SchedulerOption {
	return func(s *Scheduler) {
		s.section = opts
	}
}

// WithSpliceInOnStop makes Stop issue a best-effort splice-in for an open
// ad window instead of abandoning it.
func WithSpliceInOnStop(enabled bool) SchedulerOption {
	return func(s *Scheduler) {
		s.spliceInOnStop = enabled
	}
}

// WithWallClock overrides the wall clock stamped on records.
func WithWallClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// SchedulerStatus is a snapshot of scheduler state.
type SchedulerStatus struct {
	Window      WindowSnapshot
	LastEventID EventID
	Armed       bool
	Stopped     bool
}

// Scheduler turns splice-out requests into paired splice-out/splice-in
// sections. All state transitions happen under one mutex; the sequencer and
// window carry their own locks for readers outside the scheduler.
type Scheduler struct {
	clock          Clock
	seq            *Sequencer
	window         *AdWindow
	dispatcher     *Dispatcher
	timers         Timers
	section        SectionOptions
	spliceInOnStop bool
	observers      []Observer
	logger         *slog.Logger
	now            func() time.Time

	mu       sync.Mutex
	armed    Timer
	armedFor EventID
	source   string
	stopped  bool
}

// NewScheduler wires a scheduler around its collaborators.
func NewScheduler(clock Clock, seq *Sequencer, window *AdWindow, dispatcher *Dispatcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:      clock,
		seq:        seq,
		window:     window,
		dispatcher: dispatcher,
		timers:     SystemTimers{},
		section:    DefaultSectionOptions(),
		logger:     logging.NewComponentLogger(nil, "scheduler"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnSpliceOutRequested opens an ad break at now+req.Ahead lasting
// req.Duration. Requests made while a break is open return ErrWindowActive
// without side effects.
func (s *Scheduler) OnSpliceOutRequested(req Request) error {
	logger := s.logger.With(logging.String(logging.FieldTriggerSource, req.Source))

	if req.Duration < 0 {
		err := fmt.Errorf("splice-out request: %w: %s", ErrInvalidDuration, req.Duration)
		logging.WarnWithContext(logger, "splice-out request rejected", "splice_request_rejected",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "configure a non-negative ad duration"),
			logging.String(logging.FieldImpact, "ad break not signaled"),
		)
		return err
	}

	now, err := s.clock.RunningTime()
	if err != nil {
		if !errors.Is(err, ErrClockUnavailable) {
			err = fmt.Errorf("%w: %v", ErrClockUnavailable, err)
		}
		logging.WarnWithContext(logger, "splice-out skipped", "splice_clock_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "wait for the pipeline to reach playing"),
			logging.String(logging.FieldImpact, "ad break not signaled"),
		)
		return err
	}
	target := now + req.Ahead

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if snap := s.window.Snapshot(); snap.State == WindowActive {
		logger.Debug("splice-out rejected, ad window active",
			logging.EventID(snap.StartID),
			logging.Duration("window_end", snap.EndTime),
		)
		return ErrWindowActive
	}

	id := s.seq.Next()
	rec := Record{
		Kind:     KindSpliceOut,
		ID:       id,
		Time:     target,
		Duration: req.Duration,
		Source:   req.Source,
	}
	section, err := BuildSpliceOut(id, target, req.Duration, s.section)
	if err == nil {
		err = s.dispatcher.Dispatch(section)
	}
	if err != nil {
		rec.Err = err
		s.emitLocked(rec)
		logging.WarnWithContext(logger, "splice-out not dispatched", "splice_out_failed",
			logging.EventID(id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the output target and multiplexer state"),
			logging.String(logging.FieldImpact, "ad break not signaled"),
		)
		return err
	}

	s.window.Open(id, target+req.Duration)
	s.armedFor = id
	s.source = req.Source
	s.armed = s.timers.AfterFunc(req.Duration, func() { s.complete(id) })
	s.emitLocked(rec)

	logger.Info("splice-out dispatched",
		logging.String(logging.FieldEventType, "splice_out"),
		logging.EventID(id),
		logging.RunningTime(now),
		logging.SpliceTime(target),
		logging.Duration("duration", req.Duration),
	)
	return nil
}

func (s *Scheduler) complete(startID EventID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.armedFor != startID {
		return
	}
	s.armed = nil
	s.armedFor = 0
	s.spliceInLocked(startID, ReasonTimer)
}

func (s *Scheduler) spliceInLocked(startID EventID, reason string) {
	logger := s.logger.With(logging.String(logging.FieldTriggerSource, s.source))
	snap := s.window.Snapshot()

	now, err := s.clock.RunningTime()
	if err != nil {
		now = snap.EndTime
		logging.WarnWithContext(logger, "splice-in using predicted end time", "splice_in_clock_unavailable",
			logging.EventID(startID),
			logging.Error(err),
			logging.Duration("predicted_end", snap.EndTime),
			logging.String(logging.FieldImpact, "splice-in time may drift from actual running time"),
		)
	}

	id := s.seq.Next()
	rec := Record{
		Kind:     KindSpliceIn,
		ID:       id,
		PairedID: startID,
		Time:     now,
		Source:   s.source,
		Reason:   reason,
	}
	section, err := BuildSpliceIn(id, now, s.section)
	if err == nil {
		err = s.dispatcher.Dispatch(section)
	}
	s.window.Close(startID)
	s.source = ""
	rec.Err = err
	s.emitLocked(rec)

	if err != nil {
		logging.WarnWithContext(logger, "splice-in not dispatched", "splice_in_failed",
			logging.EventID(id),
			logging.PairedEventID(startID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the output target and multiplexer state"),
			logging.String(logging.FieldImpact, "receivers rely on break_duration auto-return"),
		)
		return
	}
	logger.Info("splice-in dispatched",
		logging.String(logging.FieldEventType, "splice_in"),
		logging.EventID(id),
		logging.PairedEventID(startID),
		logging.RunningTime(now),
		logging.String("reason", reason),
	)
}

func (s *Scheduler) emitLocked(rec Record) {
	rec.At = s.now()
	for _, obs := range s.observers {
		obs.Observe(rec)
	}
}

// Stop cancels the armed splice-in. An open window is abandoned unless the
// scheduler was built WithSpliceInOnStop. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.armed == nil {
		return
	}
	s.armed.Stop()
	startID := s.armedFor
	s.armed = nil
	s.armedFor = 0
	if s.spliceInOnStop {
		s.spliceInLocked(startID, ReasonShutdown)
		return
	}
	s.logger.Info("ad window abandoned at shutdown",
		logging.String(logging.FieldEventType, "ad_window_abandoned"),
		logging.EventID(startID),
	)
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Window:      s.window.Snapshot(),
		LastEventID: s.seq.Last(),
		Armed:       s.armed != nil,
		Stopped:     s.stopped,
	}
}
