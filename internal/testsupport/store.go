package testsupport

import (
	"context"
	"os"
	"testing"

	"splicer/internal/config"
	"splicer/internal/eventlog"
)

// MustOpenEventLog opens the config's event log and registers cleanup.
func MustOpenEventLog(t testing.TB, cfg *config.Config) *eventlog.Store {
	t.Helper()

	store, err := eventlog.Open(cfg.EventLogPath())
	if err != nil {
		t.Fatalf("eventlog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustStartRun opens a run against store.
func MustStartRun(t testing.TB, store *eventlog.Store) eventlog.Run {
	t.Helper()

	run, err := store.StartRun(context.Background(), eventlog.RunInfo{Target: "-", Modes: []string{config.ModePeriodic}, PID: os.Getpid()})
	if err != nil {
		t.Fatalf("store.StartRun: %v", err)
	}
	return run
}
