package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryBackend_QuotaIncrementAndUsage(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	// New date starts with empty counters
	usage, err := backend.QuotaUsage(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("QuotaUsage failed: %v", err)
	}
	if len(usage) != 0 {
		t.Errorf("Expected empty usage, got %v", usage)
	}

	// Increment creates the counter lazily
	used, err := backend.IncrementQuota(ctx, "2026-08-30", "PAUSE_KEYWORD", 1, 10)
	if err != nil {
		t.Fatalf("IncrementQuota failed: %v", err)
	}
	if used != 1 {
		t.Errorf("Expected used 1, got %d", used)
	}

	used, err = backend.IncrementQuota(ctx, "2026-08-30", "PAUSE_KEYWORD", 3, 10)
	if err != nil {
		t.Fatalf("IncrementQuota failed: %v", err)
	}
	if used != 4 {
		t.Errorf("Expected used 4, got %d", used)
	}

	usage, err = backend.QuotaUsage(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("QuotaUsage failed: %v", err)
	}
	if usage["PAUSE_KEYWORD"] != 4 {
		t.Errorf("Expected counter 4, got %d", usage["PAUSE_KEYWORD"])
	}
}

func TestMemoryBackend_QuotaCapEnforced(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	if _, err := backend.IncrementQuota(ctx, "2026-08-30", "ADJUST_BID", 9, 10); err != nil {
		t.Fatalf("IncrementQuota failed: %v", err)
	}

	// One more fits exactly at the cap
	used, err := backend.IncrementQuota(ctx, "2026-08-30", "ADJUST_BID", 1, 10)
	if err != nil {
		t.Fatalf("Increment at cap failed: %v", err)
	}
	if used != 10 {
		t.Errorf("Expected used 10, got %d", used)
	}

	// Beyond the cap is refused and leaves the counter unchanged
	used, err = backend.IncrementQuota(ctx, "2026-08-30", "ADJUST_BID", 1, 10)
	if !errors.Is(err, ErrQuotaCapExceeded) {
		t.Fatalf("Expected ErrQuotaCapExceeded, got %v", err)
	}
	if used != 10 {
		t.Errorf("Expected counter unchanged at 10, got %d", used)
	}
}

func TestMemoryBackend_QuotaZeroAndNegativeMax(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	// A zero max refuses every increment
	used, err := backend.IncrementQuota(ctx, "2026-08-30", "PAUSE_KEYWORD", 1, 0)
	if !errors.Is(err, ErrQuotaCapExceeded) {
		t.Fatalf("Expected ErrQuotaCapExceeded for zero max, got %v", err)
	}
	if used != 0 {
		t.Errorf("Expected counter unchanged at 0, got %d", used)
	}

	// A negative max means no cap
	used, err = backend.IncrementQuota(ctx, "2026-08-30", "ADJUST_BID", 100, -1)
	if err != nil {
		t.Fatalf("Uncapped increment failed: %v", err)
	}
	if used != 100 {
		t.Errorf("Expected used 100, got %d", used)
	}
}

func TestMemoryBackend_QuotaConcurrentNoOvershoot(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()
	const max = 10
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = backend.IncrementQuota(ctx, "2026-08-30", "ADD_NEGATIVE", 1, max)
		}()
	}
	wg.Wait()

	usage, err := backend.QuotaUsage(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("QuotaUsage failed: %v", err)
	}
	if usage["ADD_NEGATIVE"] != max {
		t.Errorf("Expected exactly %d after concurrent increments, got %d", max, usage["ADD_NEGATIVE"])
	}
}

func TestMemoryBackend_QuotaDatesAreIndependent(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	if _, err := backend.IncrementQuota(ctx, "2026-08-29", "PAUSE_KEYWORD", 7, 10); err != nil {
		t.Fatalf("IncrementQuota failed: %v", err)
	}

	// A new date never carries over the previous day's counts
	usage, err := backend.QuotaUsage(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("QuotaUsage failed: %v", err)
	}
	if usage["PAUSE_KEYWORD"] != 0 {
		t.Errorf("Expected zero for new date, got %d", usage["PAUSE_KEYWORD"])
	}

	// Historical counters remain for audit
	usage, err = backend.QuotaUsage(ctx, "2026-08-29")
	if err != nil {
		t.Fatalf("QuotaUsage failed: %v", err)
	}
	if usage["PAUSE_KEYWORD"] != 7 {
		t.Errorf("Expected historical counter 7, got %d", usage["PAUSE_KEYWORD"])
	}
}

func TestMemoryBackend_ResetQuota(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	if _, err := backend.IncrementQuota(ctx, "2026-08-30", "PAUSE_KEYWORD", 5, 10); err != nil {
		t.Fatalf("IncrementQuota failed: %v", err)
	}

	if err := backend.ResetQuota(ctx, "2026-08-30"); err != nil {
		t.Fatalf("ResetQuota failed: %v", err)
	}

	usage, err := backend.QuotaUsage(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("QuotaUsage failed: %v", err)
	}
	if usage["PAUSE_KEYWORD"] != 0 {
		t.Errorf("Expected zero after reset, got %d", usage["PAUSE_KEYWORD"])
	}
}

func TestMemoryBackend_WhitelistRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	entry := &WhitelistEntry{
		ID:         "wl-1",
		EntityID:   "kw-42",
		EntityText: "running shoes",
		Reason:     "34 conversions in the last 30 days",
		AddedAt:    time.Now().UTC(),
	}

	if err := backend.AddWhitelistEntry(ctx, entry); err != nil {
		t.Fatalf("AddWhitelistEntry failed: %v", err)
	}

	// Duplicate entity IDs are rejected
	err := backend.AddWhitelistEntry(ctx, &WhitelistEntry{ID: "wl-2", EntityID: "kw-42"})
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("Expected ErrDuplicateEntry, got %v", err)
	}

	entries, err := backend.ListWhitelist(ctx)
	if err != nil {
		t.Fatalf("ListWhitelist failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].EntityID != "kw-42" || entries[0].EntityText != "running shoes" {
		t.Errorf("Unexpected entry: %+v", entries[0])
	}

	removed, err := backend.RemoveWhitelistEntry(ctx, "kw-42")
	if err != nil {
		t.Fatalf("RemoveWhitelistEntry failed: %v", err)
	}
	if !removed {
		t.Error("Expected removal to report true")
	}

	// Removing again is a no-op
	removed, err = backend.RemoveWhitelistEntry(ctx, "kw-42")
	if err != nil {
		t.Fatalf("RemoveWhitelistEntry failed: %v", err)
	}
	if removed {
		t.Error("Expected removal of missing entry to report false")
	}

	entries, err = backend.ListWhitelist(ctx)
	if err != nil {
		t.Fatalf("ListWhitelist failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries after removal, got %d", len(entries))
	}
}

func TestMemoryBackend_EmergencyState(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	// Unwritten state reads as inactive
	state, err := backend.EmergencyState(ctx)
	if err != nil {
		t.Fatalf("EmergencyState failed: %v", err)
	}
	if state.Active {
		t.Error("Expected inactive initial state")
	}

	activated := &EmergencyState{
		Active:      true,
		Reason:      "spend anomaly detected",
		TriggeredBy: "anomaly-detector",
		ActivatedAt: time.Now().UTC(),
	}
	if err := backend.SetEmergencyState(ctx, activated); err != nil {
		t.Fatalf("SetEmergencyState failed: %v", err)
	}

	state, err = backend.EmergencyState(ctx)
	if err != nil {
		t.Fatalf("EmergencyState failed: %v", err)
	}
	if !state.Active || state.Reason != "spend anomaly detected" {
		t.Errorf("Unexpected state: %+v", state)
	}

	// Deactivation clears metadata, last writer wins
	if err := backend.SetEmergencyState(ctx, &EmergencyState{Active: false}); err != nil {
		t.Fatalf("SetEmergencyState failed: %v", err)
	}
	state, err = backend.EmergencyState(ctx)
	if err != nil {
		t.Fatalf("EmergencyState failed: %v", err)
	}
	if state.Active || state.Reason != "" || state.TriggeredBy != "" {
		t.Errorf("Expected cleared state, got %+v", state)
	}
}

func TestMemoryBackend_StateIsolation(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	entry := &WhitelistEntry{ID: "wl-1", EntityID: "kw-1", AddedAt: time.Now()}
	if err := backend.AddWhitelistEntry(ctx, entry); err != nil {
		t.Fatalf("AddWhitelistEntry failed: %v", err)
	}

	// Mutating the caller's struct must not leak into stored state
	entry.EntityID = "kw-mutated"

	entries, err := backend.ListWhitelist(ctx)
	if err != nil {
		t.Fatalf("ListWhitelist failed: %v", err)
	}
	if entries[0].EntityID != "kw-1" {
		t.Errorf("Stored entry was mutated through caller reference: %+v", entries[0])
	}
}
