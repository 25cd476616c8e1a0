// Package engine implements the action safety decision engine.
//
// # Overview
//
// The engine gates automated mutations to an advertising account. Callers
// submit a proposed Action (pause a keyword, adjust a bid, add a negative
// keyword); the engine runs a fixed, fail-fast sequence of checks and
// returns a Decision that either approves or rejects the proposal with a
// machine-readable reason code. The engine never executes the mutation
// itself.
//
// # Check Order
//
//  1. Structural validity (ACTION_MISSING / ACTION_INVALID)
//  2. Emergency interlock (EMERGENCY_MODE_ACTIVE)
//  3. Forbidden-kind absolute block (FORBIDDEN_ACTION)
//  4. Allowed-kind membership (UNAUTHORIZED_ACTION)
//  5. Per-kind eligibility thresholds (CONDITIONS_NOT_MET)
//  6. Bid-adjustment bounds (BID_ADJUSTMENT_OUT_OF_RANGE)
//  7. Whitelist protection (WHITELIST_PROTECTED)
//  8. Daily quota (DAILY_LIMIT_REACHED)
//  9. Confidence floor (LOW_CONFIDENCE)
//
// # Purity and Concurrency
//
// Evaluate is a read-only computation over injected state snapshots: it
// never mutates quota counters, the whitelist, or the emergency interlock,
// and may be called concurrently without coordination. Quota is consumed
// only by RecordExecution, which the caller invokes after the approved
// action has actually been carried out downstream.
//
// # Failure Model
//
// A rejected action is not an error: it is the normal negative path,
// expressed as a Decision. When any state read fails (quota, whitelist,
// emergency, rules), the engine fails closed and rejects the action with
// ENGINE_UNAVAILABLE rather than defaulting to permissive behavior.
package engine
