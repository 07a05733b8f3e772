package eventlog_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"splicer/internal/eventlog"
	"splicer/internal/splice"
	"splicer/internal/testsupport"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenEventLog(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.Exists || !health.IntegrityOK || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := eventlog.Open(cfg.EventLogPath())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := eventlog.Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecordAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenEventLog(t, cfg)
	run := testsupport.MustStartRun(t, store)
	ctx := context.Background()

	records := []splice.Record{
		{Kind: splice.KindSpliceOut, ID: 1, Time: 105 * time.Second, Duration: 5 * time.Second, Source: splice.SourceContentMatch},
		{Kind: splice.KindSpliceIn, ID: 2, PairedID: 1, Time: 110 * time.Second, Source: splice.SourceContentMatch, Reason: splice.ReasonTimer},
		{Kind: splice.KindSpliceOut, ID: 3, Time: 200 * time.Second, Duration: 5 * time.Second, Source: splice.SourcePeriodic,
			Err: fmt.Errorf("inject: %w", splice.ErrTargetUnavailable)},
	}
	for _, rec := range records {
		if err := store.Record(ctx, run.ID, rec); err != nil {
			t.Fatalf("Record(%d): %v", rec.ID, err)
		}
	}

	entries, err := store.List(ctx, eventlog.Filter{RunID: run.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	newest := entries[0]
	if newest.EventID != 3 || !newest.Failed() || newest.ErrorKind != "target_unavailable" {
		t.Fatalf("unexpected newest entry: %+v", newest)
	}
	in := entries[1]
	if in.Kind != "splice_in" || in.PairedID != 1 || in.Reason != splice.ReasonTimer || in.RunningTime != 110*time.Second {
		t.Fatalf("unexpected splice-in entry: %+v", in)
	}
	out := entries[2]
	if out.Duration != 5*time.Second || out.Source != splice.SourceContentMatch || out.RecordedAt.IsZero() {
		t.Fatalf("unexpected splice-out entry: %+v", out)
	}

	failed, err := store.List(ctx, eventlog.Filter{Failed: true, Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].EventID != 3 {
		t.Fatalf("unexpected failed entries: %+v", failed)
	}

	summary, err := store.Summarize(ctx, run.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != (eventlog.Summary{SpliceOuts: 1, SpliceIns: 1, Failed: 1}) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRecordRequiresRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenEventLog(t, cfg)
	if err := store.Record(context.Background(), "", splice.Record{Kind: splice.KindSpliceOut, ID: 1}); err == nil {
		t.Fatal("expected error without run id")
	}
}

func TestFinishRunAndPrune(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenEventLog(t, cfg)
	ctx := context.Background()

	finished := testsupport.MustStartRun(t, store)
	active := testsupport.MustStartRun(t, store)
	for _, id := range []string{finished.ID, active.ID} {
		if err := store.Record(ctx, id, splice.Record{Kind: splice.KindSpliceOut, ID: 1, Source: splice.SourcePeriodic}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := store.FinishRun(ctx, finished.ID); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := store.FinishRun(ctx, finished.ID); err == nil {
		t.Fatal("expected error finishing a run twice")
	}

	runs, err := store.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	removed, err := store.Prune(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned run, got %d", removed)
	}
	entries, err := store.List(ctx, eventlog.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != active.ID {
		t.Fatalf("unexpected surviving entries: %+v", entries)
	}
}

func TestSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenEventLog(t, cfg)
	if _, err := store.DB().Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_, err := eventlog.Open(cfg.EventLogPath())
	if !errors.Is(err, eventlog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
