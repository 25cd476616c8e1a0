// Package quota tracks per-day, per-kind execution counters for the
// decision engine.
//
// # Overview
//
// Counters are keyed by the policy date (YYYY-MM-DD in the configured
// timezone) and the action kind. On the first access of a new date the
// counter set for that date starts at zero; the previous day's counts are
// never carried over, and historical counters are retained for audit.
//
// # Enforcement Model
//
// Evaluate-time quota checks are advisory pre-flight reads. The
// authoritative enforcement point is Record, which performs a capped atomic
// increment through the storage backend: concurrent confirmed executions
// racing toward the daily maximum can never push a counter past it, even
// when their pre-flight decisions were computed from stale snapshots.
package quota
