// Package storage provides persistence backends for policy engine state.
//
// # Overview
//
// The storage package defines the interface for persisting the mutable state
// the decision engine depends on (daily quota counters, whitelist entries,
// emergency interlock state) and provides two implementations:
//
//   - Memory: Fast in-memory storage (default, no persistence)
//   - SQLite: Lightweight file-based persistence with WAL journaling
//
// # Usage
//
//	// Create in-memory backend (default)
//	backend := storage.NewMemoryBackend()
//
//	// Record a confirmed execution against today's quota
//	used, err := backend.IncrementQuota(ctx, "2026-08-30", "PAUSE_KEYWORD", 1, 10)
//
//	// Read today's counters
//	usage, err := backend.QuotaUsage(ctx, "2026-08-30")
//
// # Quota Atomicity
//
// IncrementQuota is the authoritative enforcement point for daily maxima. The
// increment is a single atomic read-modify-write: concurrent callers racing
// toward the cap can never push the counter past the configured maximum, even
// when their pre-flight checks were computed from a stale snapshot.
//
// # Thread Safety
//
// All storage backends are thread-safe and support concurrent access
// from multiple goroutines. Locking is handled internally by each backend.
package storage
