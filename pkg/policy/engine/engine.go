package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"adwatch-hq/sentinel/pkg/policy/emergency"
	"adwatch-hq/sentinel/pkg/policy/quota"
	"adwatch-hq/sentinel/pkg/policy/ruleset"
	"adwatch-hq/sentinel/pkg/policy/whitelist"
	"adwatch-hq/sentinel/pkg/storage"
)

// Engine is the action safety decision engine. It composes the rule
// provider, quota tracker, whitelist guard, and emergency interlock into a
// single evaluate surface plus the admin operations that mutate state.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules     ruleset.Provider
	quota     *quota.Tracker
	guard     *whitelist.Guard
	interlock *emergency.Interlock
	logger    *slog.Logger
	metrics   MetricsRecorder

	// now is injectable for tests.
	now func() time.Time
}

// Options configures an Engine.
type Options struct {
	// Rules supplies the active rule set. Required.
	Rules ruleset.Provider

	// Quota tracks per-day execution counters. Required.
	Quota *quota.Tracker

	// Whitelist guards protected entities. Required.
	Whitelist *whitelist.Guard

	// Emergency is the global interlock. Required.
	Emergency *emergency.Interlock

	// Logger receives decision logs. Default: slog.Default().
	Logger *slog.Logger

	// Metrics receives evaluation telemetry. Optional.
	Metrics MetricsRecorder

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates an engine from the given options.
func New(opts Options) (*Engine, error) {
	if opts.Rules == nil {
		return nil, fmt.Errorf("rule provider is required")
	}
	if opts.Quota == nil {
		return nil, fmt.Errorf("quota tracker is required")
	}
	if opts.Whitelist == nil {
		return nil, fmt.Errorf("whitelist guard is required")
	}
	if opts.Emergency == nil {
		return nil, fmt.Errorf("emergency interlock is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		rules:     opts.Rules,
		quota:     opts.Quota,
		guard:     opts.Whitelist,
		interlock: opts.Emergency,
		logger:    opts.Logger.With("component", "engine"),
		metrics:   opts.Metrics,
		now:       opts.Now,
	}, nil
}

// Evaluate runs the ordered checks against a proposed action and returns a
// decision. Evaluate never mutates engine state; rejections are the normal
// negative path, not errors. Storage failures reject with ENGINE_UNAVAILABLE.
func (e *Engine) Evaluate(ctx context.Context, action *Action) *Decision {
	start := e.now()
	decision := e.evaluate(ctx, action)
	decision.CheckedAt = start.UTC()

	kind := ""
	if action != nil {
		kind = string(action.Kind)
	}
	if e.metrics != nil {
		e.metrics.RecordDecision(kind, string(decision.ReasonCode), decision.Allowed, e.now().Sub(start))
	}

	if decision.Allowed {
		e.logger.Info("action approved",
			"kind", kind,
			"target_id", targetID(action),
		)
	} else {
		e.logger.Warn("action blocked",
			"kind", kind,
			"target_id", targetID(action),
			"reason_code", decision.ReasonCode,
			"details", decision.Details,
		)
	}
	return decision
}

func (e *Engine) evaluate(ctx context.Context, action *Action) *Decision {
	// 1. Structural validity.
	if d := validateAction(action); d != nil {
		return d
	}

	// 2. Emergency interlock. Runs before any rule check so that an active
	// stop vetoes even forbidden-kind probes.
	emState, err := e.interlock.State(ctx)
	if err != nil {
		return e.unavailable("emergency state", err)
	}
	if emState.Active {
		return reject(ReasonEmergencyModeActive,
			fmt.Sprintf("emergency stop is active (reason: %s, triggered by: %s)", emState.Reason, emState.TriggeredBy))
	}

	rules, err := e.rules.Current()
	if err != nil {
		return e.unavailable("rule set", err)
	}

	// 3. Forbidden-kind absolute block.
	kind := string(action.Kind)
	if rules.IsForbidden(kind) {
		return reject(ReasonForbiddenAction,
			fmt.Sprintf("action kind %s is forbidden and can never execute automatically", kind))
	}

	// 4. Allowed-kind membership.
	if !rules.IsAllowed(kind) {
		return reject(ReasonUnauthorizedAction,
			fmt.Sprintf("action kind %s is not in the allowed set", kind))
	}

	// 5. Per-kind eligibility thresholds.
	if d := checkThresholds(action, rules); d != nil {
		return d
	}

	// 6. Bid-adjustment bounds.
	if action.Kind == KindAdjustBid {
		adj := *action.AdjustmentPercent
		if adj < rules.BidBounds.DecreaseMin || adj > rules.BidBounds.IncreaseMax {
			return reject(ReasonBidOutOfRange,
				fmt.Sprintf("bid adjustment %+.1f%% is outside the allowed range [%+.1f%%, %+.1f%%]",
					adj, rules.BidBounds.DecreaseMin, rules.BidBounds.IncreaseMax))
		}
	}

	// 7. Whitelist protection. Only destructive shapes are guarded: pausing
	// a keyword, or decreasing its bid.
	if destructive(action) {
		entry, err := e.guard.Match(ctx, action.TargetID, action.TargetText)
		if err != nil {
			return e.unavailable("whitelist", err)
		}
		if entry != nil {
			return reject(ReasonWhitelistProtected,
				fmt.Sprintf("entity %s is whitelisted (%s)", entry.EntityID, entry.Reason))
		}
	}

	// 8. Daily quota. Advisory pre-flight; the capped increment in
	// RecordExecution is authoritative.
	snap, err := e.quota.Snapshot(ctx, rules.DailyMaxima)
	if err != nil {
		return e.unavailable("quota counters", err)
	}
	if max := rules.DailyMax(kind); max >= 0 {
		usage := snap.Kinds[kind]
		if usage.Remaining <= 0 {
			d := reject(ReasonDailyLimitReached,
				fmt.Sprintf("daily limit for %s reached (%d/%d used)", kind, usage.Used, max))
			d.Quota = snap
			return d
		}
	}

	// 9. Confidence floor.
	if action.ConfidenceScore < rules.MinConfidenceScore {
		d := reject(ReasonLowConfidence,
			fmt.Sprintf("confidence score %.1f is below the minimum %.1f", action.ConfidenceScore, rules.MinConfidenceScore))
		d.Quota = snap
		return d
	}

	return &Decision{
		Allowed:    true,
		ReasonCode: ReasonAllChecksPassed,
		Details:    fmt.Sprintf("action %s passed all safety checks", kind),
		Quota:      snap,
	}
}

// EvaluateBatch evaluates each action independently and aggregates the
// results. There is no cross-action interaction: an approved action does not
// consume quota visible to later actions in the same batch.
func (e *Engine) EvaluateBatch(ctx context.Context, actions []*Action) *BatchResult {
	result := &BatchResult{
		Total:   len(actions),
		Details: make([]*Decision, 0, len(actions)),
	}
	for _, action := range actions {
		decision := e.Evaluate(ctx, action)
		if decision.Allowed {
			result.AllowedCount++
		} else {
			result.BlockedCount++
		}
		result.Details = append(result.Details, decision)
	}
	return result
}

// RecordExecution confirms that an approved action was carried out
// downstream and consumes quota for it. The increment is atomic and capped
// at the kind's daily maximum; quota.ErrLimitReached is returned when the
// cap would be exceeded. Returns the counter snapshot after the increment.
func (e *Engine) RecordExecution(ctx context.Context, kind Kind, count int64) (*quota.Snapshot, error) {
	rules, err := e.rules.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}
	if !rules.IsAllowed(string(kind)) {
		return nil, fmt.Errorf("cannot record execution for kind %s: not an allowed kind", kind)
	}

	max := rules.DailyMax(string(kind))
	used, err := e.quota.Record(ctx, string(kind), count, max)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		if count <= 0 {
			count = 1
		}
		e.metrics.RecordExecution(string(kind), count)
		if max >= 0 {
			e.metrics.SetQuotaUsage(string(kind), used, max)
		}
	}

	return e.quota.Snapshot(ctx, rules.DailyMaxima)
}

// QuotaStatus returns today's counters joined with the configured maxima.
func (e *Engine) QuotaStatus(ctx context.Context) (*quota.Snapshot, error) {
	rules, err := e.rules.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}
	return e.quota.Snapshot(ctx, rules.DailyMaxima)
}

// ResetQuota zeroes today's counters and returns the fresh snapshot.
func (e *Engine) ResetQuota(ctx context.Context, reason string) (*quota.Snapshot, error) {
	if err := e.quota.Reset(ctx, reason); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		rules, err := e.rules.Current()
		if err == nil {
			for kind, max := range rules.DailyMaxima {
				e.metrics.SetQuotaUsage(kind, 0, max)
			}
		}
	}
	return e.QuotaStatus(ctx)
}

// ActivateEmergency engages the global kill switch.
func (e *Engine) ActivateEmergency(ctx context.Context, reason string, triggeredBy string) (*storage.EmergencyState, error) {
	state, err := e.interlock.Activate(ctx, reason, triggeredBy)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.SetEmergencyActive(true)
	}
	return state, nil
}

// DeactivateEmergency disengages the global kill switch.
func (e *Engine) DeactivateEmergency(ctx context.Context, deactivatedBy string, reason string) (*storage.EmergencyState, error) {
	state, err := e.interlock.Deactivate(ctx, deactivatedBy, reason)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.SetEmergencyActive(false)
	}
	return state, nil
}

// EmergencyState returns the current interlock state.
func (e *Engine) EmergencyState(ctx context.Context) (*storage.EmergencyState, error) {
	return e.interlock.State(ctx)
}

// Whitelist exposes the protected-entity guard for admin operations.
func (e *Engine) Whitelist() *whitelist.Guard {
	return e.guard
}

// RuleSet returns a copy of the active rule set for transparency and
// auditing. Mutating the copy does not affect the engine.
func (e *Engine) RuleSet() (*ruleset.RuleSet, error) {
	rules, err := e.rules.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}
	return rules.Clone(), nil
}

func (e *Engine) unavailable(subsystem string, err error) *Decision {
	e.logger.Error("evaluation failed, rejecting action",
		"subsystem", subsystem,
		"error", err,
	)
	return reject(ReasonEngineUnavailable,
		fmt.Sprintf("safety engine could not read %s; action rejected", subsystem))
}

func reject(code ReasonCode, details string) *Decision {
	return &Decision{Allowed: false, ReasonCode: code, Details: details}
}

// destructive reports whether an action can harm a protected entity:
// pausing it outright, or decreasing its bid. Negative keywords and bid
// increases are never whitelist concerns.
func destructive(action *Action) bool {
	switch action.Kind {
	case KindPauseKeyword:
		return true
	case KindAdjustBid:
		return action.AdjustmentPercent != nil && *action.AdjustmentPercent < 0
	default:
		return false
	}
}

func targetID(action *Action) string {
	if action == nil {
		return ""
	}
	return action.TargetID
}
