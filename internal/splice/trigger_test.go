package splice_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"splicer/internal/splice"
	"splicer/internal/testsupport"
)

type requestLog struct {
	mu   sync.Mutex
	reqs []splice.Request
}

func (l *requestLog) sink(req splice.Request) bool {
	l.mu.Lock()
	l.reqs = append(l.reqs, req)
	l.mu.Unlock()
	return true
}

func (l *requestLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reqs)
}

func (l *requestLog) at(i int) splice.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reqs[i]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPeriodicFiresEveryPeriod(t *testing.T) {
	timers := testsupport.NewManualTimers()
	p := splice.NewPeriodic(60*time.Second, 5*time.Second, 10*time.Second, timers)
	log := &requestLog{}
	if err := p.Start(context.Background(), log.sink); err != nil {
		t.Fatalf("Start: %v", err)
	}

	timers.Advance(59 * time.Second)
	if log.len() != 0 {
		t.Fatalf("fired before first period: %d", log.len())
	}
	timers.Advance(time.Second)
	timers.Advance(60 * time.Second)
	if log.len() != 2 {
		t.Fatalf("requests = %d, want 2", log.len())
	}
	req := log.at(0)
	if req.Ahead != 5*time.Second || req.Duration != 10*time.Second || req.Source != splice.SourcePeriodic {
		t.Fatalf("request = %+v", req)
	}

	p.Stop()
	p.Stop()
	timers.Advance(5 * time.Minute)
	if log.len() != 2 {
		t.Fatalf("fired after Stop: %d", log.len())
	}
	if timers.Pending() != 0 {
		t.Fatalf("pending timers after Stop = %d", timers.Pending())
	}
}

func TestPeriodicStopsWithContext(t *testing.T) {
	timers := testsupport.NewManualTimers()
	p := splice.NewPeriodic(time.Second, 0, time.Second, timers)
	log := &requestLog{}
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx, log.sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	timers.Advance(3 * time.Second)
	if log.len() != 0 {
		t.Fatalf("fired after context cancel: %d", log.len())
	}
}

func TestPeriodicRejectsInvalidConfig(t *testing.T) {
	if err := splice.NewPeriodic(0, 0, 0, nil).Start(context.Background(), func(splice.Request) bool { return true }); err == nil {
		t.Fatal("expected error for zero period")
	}
	if err := splice.NewPeriodic(time.Second, 0, 0, nil).Start(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil sink")
	}
}

func TestContentMatchForwardsAndDrops(t *testing.T) {
	detector := testsupport.NewChannelDetector()
	window := splice.NewAdWindow()
	trig := splice.NewContentMatch(detector, window, "bumper", 0, 10*time.Second, nil)
	log := &requestLog{}
	if err := trig.Start(context.Background(), log.sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer trig.Stop()
	if err := trig.Start(context.Background(), log.sink); err == nil {
		t.Fatal("second Start should fail")
	}

	detector.C <- splice.Match{Reference: "bumper"}
	waitFor(t, "first request", func() bool { return log.len() == 1 })
	if req := log.at(0); req.Source != splice.SourceContentMatch || req.Duration != 10*time.Second {
		t.Fatalf("request = %+v", req)
	}

	window.Open(1, 10*time.Second)
	detector.C <- splice.Match{Reference: "bumper"}
	// The foreign match is received only after the previous one was handled.
	detector.C <- splice.Match{Reference: "other"}
	detector.C <- splice.Match{Reference: "other"}
	window.Close(1)
	detector.C <- splice.Match{}
	waitFor(t, "second request", func() bool { return log.len() == 2 })

	trig.Stop()
	trig.Stop()
	if log.len() != 2 {
		t.Fatalf("requests = %d, want 2", log.len())
	}
}

func TestManualTrigger(t *testing.T) {
	m := splice.NewManual()
	if m.Fire(0, time.Second) {
		t.Fatal("Fire before Start should report false")
	}
	log := &requestLog{}
	if err := m.Start(context.Background(), log.sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.Fire(2*time.Second, 30*time.Second) {
		t.Fatal("Fire after Start reported false")
	}
	if req := log.at(0); req.Source != splice.SourceManual || req.Ahead != 2*time.Second {
		t.Fatalf("request = %+v", req)
	}
	m.Stop()
	if m.Fire(0, time.Second) {
		t.Fatal("Fire after Stop should report false")
	}
}

func TestManualFireReportsRefusedRequest(t *testing.T) {
	m := splice.NewManual()
	accept := false
	if err := m.Start(context.Background(), func(splice.Request) bool { return accept }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.Fire(0, time.Second) {
		t.Fatal("Fire reported true for a refused request")
	}
	accept = true
	if !m.Fire(0, time.Second) {
		t.Fatal("Fire reported false for a queued request")
	}
}
