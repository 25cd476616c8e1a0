package engine

import (
	"time"

	"adwatch-hq/sentinel/pkg/policy/quota"
	"adwatch-hq/sentinel/pkg/policy/ruleset"
)

// Kind identifies a proposed mutation type.
type Kind string

// Mutation kinds the engine can approve.
const (
	KindPauseKeyword Kind = ruleset.KindPauseKeyword
	KindAdjustBid    Kind = ruleset.KindAdjustBid
	KindAddNegative  Kind = ruleset.KindAddNegative
)

// TargetType identifies the scope of the entity an action mutates.
type TargetType string

const (
	TargetKeyword  TargetType = "keyword"
	TargetAdGroup  TargetType = "ad_group"
	TargetCampaign TargetType = "campaign"
)

// Metrics carries the performance numbers attached to a proposed action.
// All values are caller-supplied and trusted; the engine computes nothing.
// Fields are pointers so that absent and zero are distinguishable; a
// missing required metric rejects the action instead of defaulting to zero.
type Metrics struct {
	// Clicks is the accumulated click count.
	Clicks *float64 `json:"clicks,omitempty"`

	// Impressions is the accumulated impression count.
	Impressions *float64 `json:"impressions,omitempty"`

	// Cost is the accumulated spend.
	Cost *float64 `json:"cost,omitempty"`

	// Conversions is the accumulated conversion count.
	Conversions *float64 `json:"conversions,omitempty"`

	// CTR is the click-through rate, in percent.
	CTR *float64 `json:"ctr,omitempty"`

	// CPA is the cost per acquisition.
	CPA *float64 `json:"cpa,omitempty"`
}

// Action is a proposed mutation to the advertising account. Actions are
// immutable, constructed fresh per evaluation request, and owned by the
// caller; the engine never retains them.
type Action struct {
	// Kind is the mutation type.
	Kind Kind `json:"kind"`

	// TargetID identifies the entity to mutate (e.g. a keyword ID).
	TargetID string `json:"target_id"`

	// TargetText is the optional human-readable form of the target
	// (e.g. keyword text), used as the whitelist fallback match key.
	TargetText string `json:"target_text,omitempty"`

	// TargetType is the scope of the target entity.
	TargetType TargetType `json:"target_type,omitempty"`

	// Metrics holds the performance data backing the proposal.
	Metrics Metrics `json:"metrics"`

	// AdjustmentPercent is the signed bid change. ADJUST_BID only.
	AdjustmentPercent *float64 `json:"adjustment_percent,omitempty"`

	// ConfidenceScore is the caller's certainty estimate, 0-100.
	ConfidenceScore float64 `json:"confidence_score"`
}

// ReasonCode is the machine-readable explanation attached to every decision.
type ReasonCode string

const (
	// ReasonActionMissing means no action or no kind was supplied.
	ReasonActionMissing ReasonCode = "ACTION_MISSING"

	// ReasonActionInvalid means the action shape is malformed or incomplete.
	ReasonActionInvalid ReasonCode = "ACTION_INVALID"

	// ReasonEmergencyModeActive means the global interlock vetoed the action.
	ReasonEmergencyModeActive ReasonCode = "EMERGENCY_MODE_ACTIVE"

	// ReasonForbiddenAction means the kind is absolutely blocked.
	ReasonForbiddenAction ReasonCode = "FORBIDDEN_ACTION"

	// ReasonUnauthorizedAction means the kind is neither allowed nor forbidden.
	ReasonUnauthorizedAction ReasonCode = "UNAUTHORIZED_ACTION"

	// ReasonConditionsNotMet means an eligibility threshold failed.
	ReasonConditionsNotMet ReasonCode = "CONDITIONS_NOT_MET"

	// ReasonBidOutOfRange means the bid adjustment exceeds the bounds.
	ReasonBidOutOfRange ReasonCode = "BID_ADJUSTMENT_OUT_OF_RANGE"

	// ReasonWhitelistProtected means the target entity is protected.
	ReasonWhitelistProtected ReasonCode = "WHITELIST_PROTECTED"

	// ReasonDailyLimitReached means today's quota for the kind is exhausted.
	ReasonDailyLimitReached ReasonCode = "DAILY_LIMIT_REACHED"

	// ReasonLowConfidence means the confidence score is below the floor.
	ReasonLowConfidence ReasonCode = "LOW_CONFIDENCE"

	// ReasonAllChecksPassed means the action may proceed.
	ReasonAllChecksPassed ReasonCode = "ALL_CHECKS_PASSED"

	// ReasonEngineUnavailable means a state read failed and the engine
	// fails closed.
	ReasonEngineUnavailable ReasonCode = "ENGINE_UNAVAILABLE"
)

// Decision is the engine's answer to a proposed action. Decisions are
// immutable, one per call, and never mutate engine state.
type Decision struct {
	// Allowed indicates whether the action may proceed.
	Allowed bool `json:"allowed"`

	// ReasonCode is the machine-readable explanation.
	ReasonCode ReasonCode `json:"reason_code"`

	// Details explains the decision for humans, sufficient to understand
	// a rejection without consulting logs.
	Details string `json:"details"`

	// CheckedAt is when the evaluation ran.
	CheckedAt time.Time `json:"checked_at"`

	// Quota is the counter snapshot at evaluation time, when available.
	// Advisory only; the capped increment in RecordExecution is
	// authoritative.
	Quota *quota.Snapshot `json:"quota,omitempty"`
}

// BatchResult aggregates the decisions for a batch of independent actions.
type BatchResult struct {
	// Total is the number of actions evaluated.
	Total int `json:"total"`

	// AllowedCount is the number of approved actions.
	AllowedCount int `json:"allowed"`

	// BlockedCount is the number of rejected actions.
	BlockedCount int `json:"blocked"`

	// Details holds one decision per action, in input order.
	Details []*Decision `json:"details"`
}

// MetricsRecorder receives evaluation telemetry. Implementations must be
// safe for concurrent use. A nil recorder disables telemetry.
type MetricsRecorder interface {
	// RecordDecision records one evaluation outcome.
	RecordDecision(kind string, reason string, allowed bool, duration time.Duration)

	// RecordExecution records confirmed executions of a kind.
	RecordExecution(kind string, count int64)

	// SetEmergencyActive reflects the interlock state.
	SetEmergencyActive(active bool)

	// SetQuotaUsage reflects the current counters for a kind.
	SetQuotaUsage(kind string, used int64, max int64)
}
