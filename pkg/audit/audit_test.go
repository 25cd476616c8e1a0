package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"adwatch-hq/sentinel/pkg/policy/engine"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(&SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := &Record{
		ID:         "rec-1",
		Timestamp:  time.Now().UTC(),
		EventType:  EventDecision,
		Kind:       "PAUSE_KEYWORD",
		TargetID:   "kw-1",
		Allowed:    false,
		ReasonCode: "DAILY_LIMIT_REACHED",
		Details:    "daily limit for PAUSE_KEYWORD reached (10/10 used)",
	}
	if err := store.Store(ctx, record); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	records, err := store.ListRecent(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID != record.ID || got.ReasonCode != record.ReasonCode || got.Allowed {
		t.Errorf("Round trip mismatch: %+v", got)
	}
}

func TestSQLiteStore_FilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	events := []struct {
		id        string
		eventType EventType
		offset    time.Duration
	}{
		{"a", EventDecision, 0},
		{"b", EventEmergency, time.Minute},
		{"c", EventDecision, 2 * time.Minute},
	}
	for _, e := range events {
		err := store.Store(ctx, &Record{
			ID:        e.id,
			Timestamp: base.Add(e.offset),
			EventType: e.eventType,
		})
		if err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	decisions, err := store.ListRecent(ctx, EventDecision, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("Expected 2 decision records, got %d", len(decisions))
	}
	if decisions[0].ID != "c" || decisions[1].ID != "a" {
		t.Errorf("Expected newest first, got %s then %s", decisions[0].ID, decisions[1].ID)
	}
}

func TestRecorder_WritesAsync(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, nil, nil)

	action := &engine.Action{Kind: engine.KindPauseKeyword, TargetID: "kw-5"}
	decision := &engine.Decision{
		Allowed:    true,
		ReasonCode: engine.ReasonAllChecksPassed,
		Details:    "action PAUSE_KEYWORD passed all safety checks",
	}
	recorder.RecordDecision(action, decision)
	recorder.RecordExecution("PAUSE_KEYWORD", 1)
	recorder.RecordEmergency(true, "spend spike", "anomaly-detector")

	// Close drains the channel.
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 records after drain, got %d", count)
	}

	records, err := store.ListRecent(context.Background(), EventDecision, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(records) != 1 || records[0].TargetID != "kw-5" {
		t.Errorf("Unexpected decision records: %+v", records)
	}
	if records[0].ID == "" || records[0].Timestamp.IsZero() {
		t.Error("Expected assigned ID and timestamp")
	}
}

func TestRecorder_Disabled(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, &Config{Enabled: false}, nil)

	recorder.RecordQuotaReset("test", "operator")
	recorder.Close()

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Disabled recorder wrote %d records", count)
	}
}

func TestPruner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	old := &Record{ID: "old", Timestamp: now.AddDate(0, 0, -40), EventType: EventDecision}
	fresh := &Record{ID: "fresh", Timestamp: now.AddDate(0, 0, -1), EventType: EventDecision}
	for _, r := range []*Record{old, fresh} {
		if err := store.Store(ctx, r); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	pruner := NewPruner(store, RetentionConfig{RetentionDays: 30}, nil)
	pruner.now = func() time.Time { return now }

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted record, got %d", deleted)
	}

	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("Expected 1 remaining record, got %d", count)
	}
}

func TestPruner_ZeroRetentionIsNoop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Store(ctx, &Record{
		ID:        "r",
		Timestamp: time.Now().UTC().AddDate(-1, 0, 0),
		EventType: EventDecision,
	})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	pruner := NewPruner(store, RetentionConfig{}, nil)
	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected no-op, deleted %d", deleted)
	}
}

func TestScheduler_EmptyScheduleIsNoop(t *testing.T) {
	store := newTestStore(t)
	pruner := NewPruner(store, RetentionConfig{RetentionDays: 30}, nil)
	scheduler := NewScheduler(pruner, nil)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if scheduler.IsRunning() {
		t.Error("Scheduler should not run without a schedule")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	store := newTestStore(t)
	pruner := NewPruner(store, RetentionConfig{RetentionDays: 30, PruneSchedule: "not a cron"}, nil)
	scheduler := NewScheduler(pruner, nil)

	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}
