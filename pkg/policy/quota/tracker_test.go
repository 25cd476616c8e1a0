package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adwatch-hq/sentinel/pkg/storage"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTracker_RecordAndSnapshot(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()

	tracker := NewTracker(backend, Config{
		Location: time.UTC,
		Now:      fixedClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)),
	}, nil)

	ctx := context.Background()
	maxima := map[string]int64{"PAUSE_KEYWORD": 10, "ADJUST_BID": 15}

	if _, err := tracker.Record(ctx, "PAUSE_KEYWORD", 1, 10); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := tracker.Record(ctx, "PAUSE_KEYWORD", 2, 10); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	snap, err := tracker.Snapshot(ctx, maxima)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Date != "2026-08-30" {
		t.Errorf("Expected date 2026-08-30, got %s", snap.Date)
	}
	if got := snap.Kinds["PAUSE_KEYWORD"]; got.Used != 3 || got.Remaining != 7 {
		t.Errorf("Expected used=3 remaining=7, got %+v", got)
	}
	if got := snap.Kinds["ADJUST_BID"]; got.Used != 0 || got.Remaining != 15 {
		t.Errorf("Expected untouched kind at zero, got %+v", got)
	}
}

func TestTracker_RecordStopsAtLimit(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()

	tracker := NewTracker(backend, Config{Location: time.UTC}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := tracker.Record(ctx, "ADD_NEGATIVE", 1, 5); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	_, err := tracker.Record(ctx, "ADD_NEGATIVE", 1, 5)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("Expected ErrLimitReached, got %v", err)
	}

	remaining, err := tracker.Remaining(ctx, "ADD_NEGATIVE", 5)
	if err != nil {
		t.Fatalf("Remaining failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", remaining)
	}
}

func TestTracker_ConcurrentRecordNoOvershoot(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()

	tracker := NewTracker(backend, Config{Location: time.UTC}, nil)
	ctx := context.Background()

	const max = 10
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tracker.Record(ctx, "PAUSE_KEYWORD", 1, max)
		}()
	}
	wg.Wait()

	snap, err := tracker.Snapshot(ctx, map[string]int64{"PAUSE_KEYWORD": max})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if got := snap.Kinds["PAUSE_KEYWORD"].Used; got != max {
		t.Errorf("Expected exactly %d used, got %d", max, got)
	}
}

func TestTracker_DayRollover(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()
	maxima := map[string]int64{"PAUSE_KEYWORD": 10}

	clock := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	now := &clock
	tracker := NewTracker(backend, Config{
		Location: time.UTC,
		Now:      func() time.Time { return *now },
	}, nil)

	if _, err := tracker.Record(ctx, "PAUSE_KEYWORD", 8, 10); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// Cross midnight: a fresh zeroed counter set, no carry-over
	clock = time.Date(2026, 8, 31, 0, 1, 0, 0, time.UTC)

	snap, err := tracker.Snapshot(ctx, maxima)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Date != "2026-08-31" {
		t.Errorf("Expected rolled-over date, got %s", snap.Date)
	}
	if got := snap.Kinds["PAUSE_KEYWORD"]; got.Used != 0 || got.Remaining != 10 {
		t.Errorf("Expected zeroed counters after rollover, got %+v", got)
	}

	// Historical counters survive the rollover
	usage, err := backend.QuotaUsage(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("QuotaUsage failed: %v", err)
	}
	if usage["PAUSE_KEYWORD"] != 8 {
		t.Errorf("Expected historical counter 8, got %d", usage["PAUSE_KEYWORD"])
	}
}

func TestTracker_Reset(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()

	tracker := NewTracker(backend, Config{Location: time.UTC}, nil)
	ctx := context.Background()

	if _, err := tracker.Record(ctx, "ADJUST_BID", 4, 15); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if err := tracker.Reset(ctx, "operator requested"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	remaining, err := tracker.Remaining(ctx, "ADJUST_BID", 15)
	if err != nil {
		t.Fatalf("Remaining failed: %v", err)
	}
	if remaining != 15 {
		t.Errorf("Expected full capacity after reset, got %d", remaining)
	}
}
