package ruleset

// Action kind identifiers shared between the rule schema and the engine.
// Kinds are plain strings in the YAML schema; the engine layers its own
// typed view on top.
const (
	KindPauseKeyword = "PAUSE_KEYWORD"
	KindAdjustBid    = "ADJUST_BID"
	KindAddNegative  = "ADD_NEGATIVE"
)

// RuleSet is the versioned policy rule schema.
//
// A RuleSet is loaded once per evaluation context and treated as read-only
// during that context. All mutation happens by swapping in a new snapshot.
type RuleSet struct {
	// Version is the schema version. Currently always 1.
	Version int `yaml:"version" json:"version"`

	// AllowedKinds lists the action kinds the engine may approve.
	AllowedKinds []string `yaml:"allowed_kinds" json:"allowed_kinds"`

	// ForbiddenKinds lists action kinds that are absolutely blocked.
	// Membership here wins over AllowedKinds.
	ForbiddenKinds []string `yaml:"forbidden_kinds" json:"forbidden_kinds"`

	// MinConfidenceScore is the floor (0-100) below which any action is
	// rejected regardless of other checks.
	MinConfidenceScore float64 `yaml:"min_confidence_score" json:"min_confidence_score"`

	// TargetCPA is the account's target cost-per-acquisition, used by the
	// pause-keyword CPA eligibility check.
	TargetCPA float64 `yaml:"target_cpa" json:"target_cpa"`

	// BidBounds constrains ADJUST_BID adjustment percentages.
	BidBounds BidBounds `yaml:"bid_bounds" json:"bid_bounds"`

	// Thresholds holds per-kind eligibility thresholds.
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`

	// DailyMaxima maps action kind to the maximum number of executions
	// allowed per policy day. An explicit zero locks the kind out entirely;
	// kinds absent from the map carry no daily cap.
	DailyMaxima map[string]int64 `yaml:"daily_maxima" json:"daily_maxima"`
}

// BidBounds constrains bid adjustment percentages. DecreaseMin is the most
// negative allowed adjustment, IncreaseMax the most positive.
type BidBounds struct {
	DecreaseMin float64 `yaml:"decrease_min" json:"decrease_min"`
	IncreaseMax float64 `yaml:"increase_max" json:"increase_max"`
}

// Thresholds holds the per-kind eligibility thresholds.
type Thresholds struct {
	PauseKeyword PauseKeywordThresholds `yaml:"pause_keyword" json:"pause_keyword"`
	AddNegative  AddNegativeThresholds  `yaml:"add_negative" json:"add_negative"`
	AdjustBid    AdjustBidThresholds    `yaml:"adjust_bid" json:"adjust_bid"`
}

// PauseKeywordThresholds gates PAUSE_KEYWORD eligibility. A keyword may only
// be paused once it has accumulated enough signal to justify the decision.
type PauseKeywordThresholds struct {
	// MinClicks is the minimum click count.
	MinClicks float64 `yaml:"min_clicks" json:"min_clicks"`

	// MinImpressions is the minimum impression count.
	MinImpressions float64 `yaml:"min_impressions" json:"min_impressions"`

	// MinCost is the minimum accumulated cost.
	MinCost float64 `yaml:"min_cost" json:"min_cost"`

	// MaxCTR is the click-through-rate ceiling; keywords performing above
	// it are not pause candidates.
	MaxCTR float64 `yaml:"max_ctr" json:"max_ctr"`

	// CPAMultiplier scales TargetCPA for the CPA eligibility bound.
	CPAMultiplier float64 `yaml:"cpa_multiplier" json:"cpa_multiplier"`

	// NoConversionDays is the observation window used by callers when
	// selecting zero-conversion pause candidates. Exported for transparency;
	// the action metrics carry no window field, so the engine applies the
	// conversion-count exemption instead.
	NoConversionDays int `yaml:"no_conversion_days" json:"no_conversion_days"`
}

// AddNegativeThresholds gates ADD_NEGATIVE eligibility.
type AddNegativeThresholds struct {
	// MinClicks is the minimum click count.
	MinClicks float64 `yaml:"min_clicks" json:"min_clicks"`

	// MinCost is the minimum accumulated cost.
	MinCost float64 `yaml:"min_cost" json:"min_cost"`

	// MaxConversions is the conversion ceiling. A term that has converted
	// must not be negated; this stays at or near zero.
	MaxConversions float64 `yaml:"max_conversions" json:"max_conversions"`
}

// AdjustBidThresholds gates ADJUST_BID eligibility.
type AdjustBidThresholds struct {
	// MinClicks is the minimum click count before bids may be touched.
	MinClicks float64 `yaml:"min_clicks" json:"min_clicks"`
}

// IsForbidden reports whether a kind is absolutely blocked.
func (r *RuleSet) IsForbidden(kind string) bool {
	for _, k := range r.ForbiddenKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsAllowed reports whether a kind is in the allowed set. Forbidden
// membership takes precedence: a kind listed in both is not allowed.
func (r *RuleSet) IsAllowed(kind string) bool {
	if r.IsForbidden(kind) {
		return false
	}
	for _, k := range r.AllowedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// DailyMax returns the daily execution cap for a kind, or -1 if the kind
// carries no cap. A configured zero is a real cap: the kind is locked out
// for the day.
func (r *RuleSet) DailyMax(kind string) int64 {
	max, ok := r.DailyMaxima[kind]
	if !ok {
		return -1
	}
	return max
}

// Clone returns a deep copy. Snapshots handed to callers must not alias the
// provider's live rule set.
func (r *RuleSet) Clone() *RuleSet {
	copied := *r
	copied.AllowedKinds = append([]string(nil), r.AllowedKinds...)
	copied.ForbiddenKinds = append([]string(nil), r.ForbiddenKinds...)
	copied.DailyMaxima = make(map[string]int64, len(r.DailyMaxima))
	for k, v := range r.DailyMaxima {
		copied.DailyMaxima[k] = v
	}
	return &copied
}
