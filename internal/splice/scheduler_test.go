package splice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"splicer/internal/splice"
	"splicer/internal/testsupport"
)

type schedulerFixture struct {
	clock     *testsupport.ManualClock
	timers    *testsupport.ManualTimers
	mux       *testsupport.RecordingMux
	window    *splice.AdWindow
	seq       *splice.Sequencer
	scheduler *splice.Scheduler

	mu      sync.Mutex
	records []splice.Record
}

func newSchedulerFixture(t *testing.T, opts ...splice.SchedulerOption) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		clock:  testsupport.NewManualClock(0),
		timers: testsupport.NewManualTimers(),
		mux:    &testsupport.RecordingMux{},
		window: splice.NewAdWindow(),
		seq:    splice.NewSequencer(),
	}
	base := []splice.SchedulerOption{
		splice.WithTimers(f.timers),
		splice.WithObserver(splice.ObserverFunc(func(r splice.Record) {
			f.mu.Lock()
			f.records = append(f.records, r)
			f.mu.Unlock()
		})),
	}
	f.scheduler = splice.NewScheduler(
		f.clock,
		f.seq,
		f.window,
		splice.NewDispatcher(splice.NewHandle(f.mux), 500, nil),
		append(base, opts...)...,
	)
	return f
}

func (f *schedulerFixture) recorded() []splice.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]splice.Record(nil), f.records...)
}

func TestSchedulerContentMatchScenario(t *testing.T) {
	f := newSchedulerFixture(t)
	f.clock.Set(100 * time.Second)

	req := splice.Request{Ahead: 0, Duration: 10 * time.Second, Source: splice.SourceContentMatch}
	if err := f.scheduler.OnSpliceOutRequested(req); err != nil {
		t.Fatalf("first request: %v", err)
	}
	events := f.mux.Events(t)
	if len(events) != 1 {
		t.Fatalf("injections = %d, want 1", len(events))
	}
	out := events[0]
	if out.Kind != splice.KindSpliceOut || out.Time != 100*time.Second || out.Duration != 10*time.Second {
		t.Fatalf("splice-out = %+v", out)
	}
	if !f.window.Active() {
		t.Fatal("window should be active after splice-out")
	}

	f.clock.Set(105 * time.Second)
	if err := f.scheduler.OnSpliceOutRequested(req); !errors.Is(err, splice.ErrWindowActive) {
		t.Fatalf("overlapping request: err = %v, want ErrWindowActive", err)
	}
	if n := len(f.mux.Injections()); n != 1 {
		t.Fatalf("injections after overlap = %d, want 1", n)
	}

	f.timers.OnFire = func(time.Duration) { f.clock.Set(110200 * time.Millisecond) }
	f.timers.Advance(10 * time.Second)

	events = f.mux.Events(t)
	if len(events) != 2 {
		t.Fatalf("injections = %d, want 2", len(events))
	}
	in := events[1]
	if in.Kind != splice.KindSpliceIn || in.Time != 110200*time.Millisecond {
		t.Fatalf("splice-in = %+v", in)
	}
	if in.ID <= out.ID {
		t.Fatalf("splice-in id %d not greater than splice-out id %d", in.ID, out.ID)
	}
	if f.window.Active() {
		t.Fatal("window should be idle after splice-in")
	}

	recs := f.recorded()
	if len(recs) != 2 || recs[1].PairedID != out.ID || recs[1].Reason != splice.ReasonTimer {
		t.Fatalf("records = %+v", recs)
	}
}

func TestSchedulerPeriodicScenario(t *testing.T) {
	f := newSchedulerFixture(t)
	f.timers.OnFire = func(at time.Duration) { f.clock.Set(at) }

	p := splice.NewPeriodic(60*time.Second, 5*time.Second, 10*time.Second, f.timers)
	if err := p.Start(context.Background(), func(req splice.Request) bool {
		return f.scheduler.OnSpliceOutRequested(req) == nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	f.timers.Advance(130 * time.Second)

	events := f.mux.Events(t)
	want := []struct {
		kind splice.Kind
		at   time.Duration
	}{
		{splice.KindSpliceOut, 65 * time.Second},
		{splice.KindSpliceIn, 70 * time.Second},
		{splice.KindSpliceOut, 125 * time.Second},
		{splice.KindSpliceIn, 130 * time.Second},
	}
	if len(events) != len(want) {
		t.Fatalf("injections = %d, want %d", len(events), len(want))
	}
	for i, w := range want {
		if events[i].Kind != w.kind || events[i].Time != w.at {
			t.Fatalf("event %d = %s at %s, want %s at %s", i, events[i].Kind, events[i].Time, w.kind, w.at)
		}
		if events[i].ID != splice.EventID(i+1) {
			t.Fatalf("event %d id = %d, want %d", i, events[i].ID, i+1)
		}
	}
}

func TestSchedulerDropsPeriodicTicksDuringWindow(t *testing.T) {
	f := newSchedulerFixture(t)
	f.timers.OnFire = func(at time.Duration) { f.clock.Set(at) }

	p := splice.NewPeriodic(8*time.Second, 5*time.Second, 10*time.Second, f.timers)
	var rejected int
	if err := p.Start(context.Background(), func(req splice.Request) bool {
		err := f.scheduler.OnSpliceOutRequested(req)
		if errors.Is(err, splice.ErrWindowActive) {
			rejected++
		}
		return err == nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	f.timers.Advance(34 * time.Second)

	events := f.mux.Events(t)
	if len(events) != 4 {
		t.Fatalf("injections = %d, want 4", len(events))
	}
	for i, ev := range events {
		wantKind := splice.KindSpliceOut
		if i%2 == 1 {
			wantKind = splice.KindSpliceIn
		}
		if ev.Kind != wantKind {
			t.Fatalf("event %d kind = %s, want %s", i, ev.Kind, wantKind)
		}
	}
	if rejected != 2 {
		t.Fatalf("rejected ticks = %d, want 2", rejected)
	}
}

func TestSchedulerClockUnavailable(t *testing.T) {
	f := newSchedulerFixture(t)
	f.clock.Unset()

	err := f.scheduler.OnSpliceOutRequested(splice.Request{Duration: time.Second})
	if !errors.Is(err, splice.ErrClockUnavailable) {
		t.Fatalf("err = %v, want ErrClockUnavailable", err)
	}
	if f.seq.Last() != 0 {
		t.Fatalf("event id consumed: %d", f.seq.Last())
	}
	if f.window.Active() || len(f.mux.Injections()) != 0 || f.timers.Pending() != 0 {
		t.Fatal("clock failure produced side effects")
	}
}

func TestSchedulerRejectsNegativeDuration(t *testing.T) {
	f := newSchedulerFixture(t)
	err := f.scheduler.OnSpliceOutRequested(splice.Request{Duration: -time.Second})
	if !errors.Is(err, splice.ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
	if f.seq.Last() != 0 || f.window.Active() {
		t.Fatal("invalid request produced side effects")
	}
}

func TestSchedulerSpliceOutDispatchFailureKeepsWindowIdle(t *testing.T) {
	f := newSchedulerFixture(t)
	f.mux.Fail(errors.New("mux gone"))

	err := f.scheduler.OnSpliceOutRequested(splice.Request{Duration: 10 * time.Second})
	if !errors.Is(err, splice.ErrInjection) {
		t.Fatalf("err = %v, want ErrInjection", err)
	}
	if f.window.Active() {
		t.Fatal("window opened despite dispatch failure")
	}
	if f.timers.Pending() != 0 {
		t.Fatal("splice-in armed despite dispatch failure")
	}
	recs := f.recorded()
	if len(recs) != 1 || recs[0].Err == nil || recs[0].Kind != splice.KindSpliceOut {
		t.Fatalf("records = %+v", recs)
	}

	f.mux.Fail(nil)
	if err := f.scheduler.OnSpliceOutRequested(splice.Request{Duration: 10 * time.Second}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := f.mux.Events(t)[0].ID; got != 2 {
		t.Fatalf("retry id = %d, want 2", got)
	}
}

func TestSchedulerSpliceInFailureStillClosesWindow(t *testing.T) {
	f := newSchedulerFixture(t)
	if err := f.scheduler.OnSpliceOutRequested(splice.Request{Duration: 10 * time.Second}); err != nil {
		t.Fatalf("request: %v", err)
	}
	f.mux.Fail(errors.New("mux gone"))
	f.timers.Advance(10 * time.Second)

	if f.window.Active() {
		t.Fatal("window still active after failed splice-in")
	}
	recs := f.recorded()
	if len(recs) != 2 || recs[1].Kind != splice.KindSpliceIn || recs[1].Err == nil {
		t.Fatalf("records = %+v", recs)
	}
}

func TestSchedulerSpliceInFallsBackToPredictedEnd(t *testing.T) {
	f := newSchedulerFixture(t)
	f.clock.Set(20 * time.Second)
	if err := f.scheduler.OnSpliceOutRequested(splice.Request{Ahead: 2 * time.Second, Duration: 10 * time.Second}); err != nil {
		t.Fatalf("request: %v", err)
	}
	f.clock.Unset()
	f.timers.Advance(10 * time.Second)

	events := f.mux.Events(t)
	if len(events) != 2 {
		t.Fatalf("injections = %d, want 2", len(events))
	}
	if events[1].Time != 32*time.Second {
		t.Fatalf("splice-in time = %s, want predicted 32s", events[1].Time)
	}
}

func TestSchedulerStopCancelsArmedSpliceIn(t *testing.T) {
	f := newSchedulerFixture(t)
	if err := f.scheduler.OnSpliceOutRequested(splice.Request{Duration: 10 * time.Second}); err != nil {
		t.Fatalf("request: %v", err)
	}
	f.scheduler.Stop()
	f.scheduler.Stop()
	f.timers.Advance(time.Minute)

	if n := len(f.mux.Injections()); n != 1 {
		t.Fatalf("injections = %d, want only the splice-out", n)
	}
	status := f.scheduler.Status()
	if !status.Stopped || status.Armed {
		t.Fatalf("status = %+v", status)
	}
	if err := f.scheduler.OnSpliceOutRequested(splice.Request{}); !errors.Is(err, splice.ErrStopped) {
		t.Fatalf("request after Stop: err = %v, want ErrStopped", err)
	}
}

func TestSchedulerStopIssuesSpliceInWhenConfigured(t *testing.T) {
	f := newSchedulerFixture(t, splice.WithSpliceInOnStop(true))
	f.clock.Set(50 * time.Second)
	if err := f.scheduler.OnSpliceOutRequested(splice.Request{Duration: 30 * time.Second}); err != nil {
		t.Fatalf("request: %v", err)
	}
	f.clock.Set(55 * time.Second)
	f.scheduler.Stop()

	events := f.mux.Events(t)
	if len(events) != 2 || events[1].Kind != splice.KindSpliceIn || events[1].Time != 55*time.Second {
		t.Fatalf("events = %+v", events)
	}
	recs := f.recorded()
	if recs[1].Reason != splice.ReasonShutdown {
		t.Fatalf("reason = %q, want shutdown", recs[1].Reason)
	}
	if f.window.Active() {
		t.Fatal("window active after shutdown splice-in")
	}
}
