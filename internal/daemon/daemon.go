package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"splicer/internal/config"
	"splicer/internal/eventlog"
	"splicer/internal/logging"
	"splicer/internal/notifications"
	"splicer/internal/pipeline"
	"splicer/internal/splice"
	"splicer/internal/tsinject"
)

// ErrNotRunning reports a control request made while the daemon is stopped.
var ErrNotRunning = errors.New("daemon not running")

// Daemon owns the signaling lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *eventlog.Store
	notifier notifications.Service
	clock    *pipeline.RunningClock
	timers   splice.Timers
	logPath  string

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu          sync.Mutex
	running     bool
	startedAt   time.Time
	run         eventlog.Run
	feed        *pipeline.MatchFeed
	injector    *tsinject.Injector
	coordinator *splice.Coordinator
	recorder    *recorder
	cancel      context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	RunID           string
	StartedAt       time.Time
	LockFilePath    string
	EventLogPath    string
	Target          string
	Triggers        []string
	ClockState      string
	RunningTime     time.Duration
	ClockAvailable  bool
	Window          splice.WindowSnapshot
	LastEventID     splice.EventID
	Armed           bool
	Dropped         uint64
	RecorderDropped uint64
	Injector        tsinject.Stats
	Summary         eventlog.Summary
}

// Option customises a Daemon.
type Option func(*Daemon)

// WithClock replaces the pipeline clock.
func WithClock(clock *pipeline.RunningClock) Option {
	return func(d *Daemon) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithTimers replaces the scheduler timer source (primarily for tests).
func WithTimers(timers splice.Timers) Option {
	return func(d *Daemon) {
		d.timers = timers
	}
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(d *Daemon) {
		if notifier != nil {
			d.notifier = notifier
		}
	}
}

// WithLogPath records the active log file for log tailing.
func WithLogPath(path string) Option {
	return func(d *Daemon) {
		d.logPath = path
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *eventlog.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and event log")
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		notifier: notifications.NewService(cfg),
		clock:    pipeline.NewRunningClock(),
		logPath:  filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Clock exposes the pipeline clock so the runtime can drive play state.
func (d *Daemon) Clock() *pipeline.RunningClock { return d.clock }

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string { return d.logPath }

// Start acquires the daemon lock, opens a run and starts the coordinator.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another splicer daemon instance is already running")
	}
	if err := d.startLocked(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.running = true

	d.logger.Info("splicer daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String(logging.FieldRunID, d.run.ID),
		logging.String("output_target", d.injector.Target()),
		logging.Any("triggers", d.coordinator.Status().Triggers),
		logging.String("lock", d.lockPath),
	)
	d.publish(ctx, notifications.EventDaemonStarted, notifications.Payload{
		"target": d.injector.Target(),
		"modes":  strings.Join(d.cfg.Triggers.Modes, ","),
	})
	return nil
}

func (d *Daemon) startLocked(ctx context.Context) error {
	run, err := d.store.StartRun(ctx, eventlog.RunInfo{
		Target: d.cfg.Output.Target,
		Modes:  d.cfg.Triggers.Modes,
		PID:    os.Getpid(),
	})
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	injector, err := tsinject.Open(d.cfg.Output.Target, d.logger)
	if err != nil {
		_ = d.store.FinishRun(ctx, run.ID)
		return fmt.Errorf("open output: %w", err)
	}

	runLogger := d.logger.With(logging.String(logging.FieldRunID, run.ID))
	feed := pipeline.NewMatchFeed(d.cfg.Triggers.MatchBuffer, runLogger)
	rec := newRecorder(d.store, d.notifier, run.ID, runLogger)
	coordinator, err := splice.NewCoordinator(TriggerConfig(d.cfg), splice.Options{
		Clock:          d.clock,
		Detector:       feed,
		Handle:         splice.NewHandle(injector),
		PID:            d.cfg.Signaling.PID,
		Section:        SectionOptions(d.cfg),
		SpliceInOnStop: d.cfg.Signaling.SpliceInOnShutdown,
		Timers:         d.timers,
		Logger:         runLogger,
		Observers:      []splice.Observer{rec},
	})
	if err == nil {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		if err = coordinator.Start(runCtx); err != nil {
			cancel()
		} else {
			d.cancel = cancel
		}
	}
	if err != nil {
		rec.Close()
		feed.Close()
		_ = injector.Close()
		_ = d.store.FinishRun(ctx, run.ID)
		return fmt.Errorf("start coordinator: %w", err)
	}

	if err := d.api.start(ctx); err != nil {
		d.logger.Warn("api server unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_start_failed"),
			logging.String(logging.FieldErrorHint, "check api.bind for conflicts"),
			logging.String(logging.FieldImpact, "HTTP status endpoint disabled for this run"),
		)
	}

	d.run = run
	d.startedAt = time.Now()
	d.feed = feed
	d.injector = injector
	d.coordinator = coordinator
	d.recorder = rec
	return nil
}

// Stop halts signaling, drains the recorder and releases the daemon lock.
func (d *Daemon) Stop() {
	// In-flight HTTP handlers read Status, so the server goes first.
	d.api.stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.running = false

	d.coordinator.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.recorder.Close()
	d.feed.Close()
	stats := d.injector.Stats()
	if err := d.injector.Close(); err != nil {
		d.logger.Warn("failed to close output", logging.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
	defer cancel()
	if err := d.store.FinishRun(ctx, d.run.ID); err != nil {
		d.logger.Warn("failed to finish run", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}

	uptime := time.Since(d.startedAt)
	d.logger.Info("splicer daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
		logging.String(logging.FieldRunID, d.run.ID),
		logging.Uint64("sections_written", stats.Sections),
		logging.Uint64("written_bytes", stats.Bytes),
		logging.Duration("uptime", uptime),
	)
	d.publish(ctx, notifications.EventDaemonStopped, notifications.Payload{"uptime": uptime})
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ManualTrigger requests an ad break starting ahead of now. A zero duration
// uses the configured ad duration.
func (d *Daemon) ManualTrigger(ahead, duration time.Duration) error {
	if ahead < 0 {
		return fmt.Errorf("lead time must be non-negative, got %s", ahead)
	}
	if duration < 0 || duration > splice.MaxBreakDuration {
		return fmt.Errorf("%w: %s", splice.ErrInvalidDuration, duration)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return ErrNotRunning
	}
	if d.coordinator.Window().Active() {
		return splice.ErrWindowActive
	}
	if !d.coordinator.Manual(ahead, duration) {
		return errors.New("manual trigger dropped: request queue full")
	}
	d.logger.Info("manual splice-out requested",
		logging.String(logging.FieldEventType, "manual_trigger"),
		logging.Duration("lead_time", ahead),
		logging.Duration("ad_duration", duration),
	)
	return nil
}

// ReportMatch feeds a detector match to the content trigger.
func (d *Daemon) ReportMatch(reference string) error {
	if !d.cfg.ContentMatchEnabled() {
		return errors.New("content trigger is not enabled (add \"content\" to triggers.modes)")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return ErrNotRunning
	}
	if !d.feed.Report(reference) {
		return errors.New("match dropped: detector buffer full")
	}
	return nil
}

// SetPipelineState drives the pipeline clock: "play", "pause" or "stop".
func (d *Daemon) SetPipelineState(state string) (pipeline.State, error) {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "play", "playing":
		d.clock.Play()
	case "pause", "paused":
		d.clock.Pause()
	case "stop", "null":
		d.clock.Stop()
	default:
		return d.clock.State(), fmt.Errorf("unknown pipeline state %q", state)
	}
	current := d.clock.State()
	d.logger.Info("pipeline state changed",
		logging.String(logging.FieldEventType, "pipeline_state"),
		logging.String("state", current.String()),
	)
	return current, nil
}

// RecentEvents lists persisted dispatch attempts, newest first. Unless
// allRuns is set, only the current run is returned while running.
func (d *Daemon) RecentEvents(ctx context.Context, limit int, failedOnly, allRuns bool) ([]eventlog.Entry, error) {
	filter := eventlog.Filter{Limit: limit, Failed: failedOnly}
	d.mu.Lock()
	if d.running && !allRuns {
		filter.RunID = d.run.ID
	}
	d.mu.Unlock()
	return d.store.List(ctx, filter)
}

// DatabaseHealth returns event log diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (eventlog.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		EventLogPath: d.store.Path(),
		Target:       d.cfg.Output.Target,
		ClockState:   d.clock.State().String(),
	}
	if rt, err := d.clock.RunningTime(); err == nil {
		status.RunningTime = rt
		status.ClockAvailable = true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	status.Running = d.running
	if !d.running {
		return status
	}
	coord := d.coordinator.Status()
	status.RunID = d.run.ID
	status.StartedAt = d.startedAt
	status.Target = d.injector.Target()
	status.Triggers = coord.Triggers
	status.Window = coord.Scheduler.Window
	status.LastEventID = coord.Scheduler.LastEventID
	status.Armed = coord.Scheduler.Armed
	status.Dropped = coord.Dropped
	status.RecorderDropped = d.recorder.Dropped()
	status.Injector = d.injector.Stats()
	if summary, err := d.store.Summarize(ctx, d.run.ID); err == nil {
		status.Summary = summary
	}
	return status
}

func (d *Daemon) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.notifier.Publish(ctx, event, payload); err != nil {
		d.logger.Debug("notification failed",
			logging.String("notification", string(event)),
			logging.Error(err),
		)
	}
}
