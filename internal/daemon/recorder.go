package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"splicer/internal/eventlog"
	"splicer/internal/logging"
	"splicer/internal/notifications"
	"splicer/internal/splice"
)

const (
	recorderBuffer  = 64
	recorderTimeout = 15 * time.Second
)

// recorder persists dispatch records and publishes notifications off the
// scheduler's lock. Observe never blocks; records beyond the buffer are
// dropped and counted.
type recorder struct {
	store    *eventlog.Store
	notifier notifications.Service
	runID    string
	logger   *slog.Logger

	ch   chan splice.Record
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped uint64
}

func newRecorder(store *eventlog.Store, notifier notifications.Service, runID string, logger *slog.Logger) *recorder {
	r := &recorder{
		store:    store,
		notifier: notifier,
		runID:    runID,
		logger:   logging.NewComponentLogger(logger, "recorder"),
		ch:       make(chan splice.Record, recorderBuffer),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *recorder) Observe(rec splice.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- rec:
	default:
		r.dropped++
		logging.WarnWithContext(r.logger, "splice record dropped", "splice_record_dropped",
			logging.EventID(rec.ID),
			logging.String(logging.FieldErrorHint, "the event log is slower than the dispatch rate"),
			logging.String(logging.FieldImpact, "event missing from splicer events"),
		)
	}
}

func (r *recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting records and waits for queued ones to be written.
func (r *recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done
}

func (r *recorder) run() {
	defer close(r.done)
	for rec := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
		r.persist(ctx, rec)
		r.notify(ctx, rec)
		cancel()
	}
}

func (r *recorder) persist(ctx context.Context, rec splice.Record) {
	if r.store == nil {
		return
	}
	if err := r.store.Record(ctx, r.runID, rec); err != nil {
		logging.WarnWithContext(r.logger, "failed to persist splice event", "event_log_write_failed",
			logging.EventID(rec.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the state directory"),
		)
	}
}

func (r *recorder) notify(ctx context.Context, rec splice.Record) {
	if r.notifier == nil {
		return
	}
	var (
		event   notifications.Event
		payload notifications.Payload
	)
	switch {
	case rec.Err != nil:
		event = notifications.EventDispatchFailed
		payload = notifications.Payload{"kind": rec.Kind.String(), "eventID": uint32(rec.ID), "error": rec.Err}
	case rec.Kind == splice.KindSpliceOut:
		event = notifications.EventAdBreakStarted
		payload = notifications.Payload{"eventID": uint32(rec.ID), "at": rec.Time, "duration": rec.Duration, "source": rec.Source}
	case rec.Kind == splice.KindSpliceIn:
		event = notifications.EventAdBreakEnded
		payload = notifications.Payload{"eventID": uint32(rec.ID), "pairedID": uint32(rec.PairedID), "at": rec.Time}
	default:
		return
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		r.logger.Debug("notification failed",
			logging.String("notification", string(event)),
			logging.Error(err),
		)
	}
}
