package ruleset

import (
	"fmt"
	"strings"
)

// Validate checks a rule set for internal consistency.
//
// A kind appearing in both the allowed and forbidden sets is NOT an error:
// forbidden membership wins at evaluation time, per the precedence rule.
// Validate rejects only configurations the engine cannot interpret safely.
func Validate(r *RuleSet) error {
	var errs []string

	if r.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported schema version %d", r.Version))
	}

	if len(r.AllowedKinds) == 0 {
		errs = append(errs, "allowed_kinds cannot be empty")
	}

	if r.MinConfidenceScore < 0 || r.MinConfidenceScore > 100 {
		errs = append(errs, fmt.Sprintf("min_confidence_score must be in [0,100], got %v", r.MinConfidenceScore))
	}

	if r.TargetCPA < 0 {
		errs = append(errs, fmt.Sprintf("target_cpa cannot be negative, got %v", r.TargetCPA))
	}

	if r.BidBounds.DecreaseMin > 0 {
		errs = append(errs, fmt.Sprintf("bid_bounds.decrease_min must not be positive, got %v", r.BidBounds.DecreaseMin))
	}
	if r.BidBounds.IncreaseMax < 0 {
		errs = append(errs, fmt.Sprintf("bid_bounds.increase_max must not be negative, got %v", r.BidBounds.IncreaseMax))
	}

	pk := r.Thresholds.PauseKeyword
	if pk.MinClicks < 0 || pk.MinImpressions < 0 || pk.MinCost < 0 {
		errs = append(errs, "pause_keyword thresholds cannot be negative")
	}
	if pk.MaxCTR < 0 {
		errs = append(errs, fmt.Sprintf("pause_keyword.max_ctr cannot be negative, got %v", pk.MaxCTR))
	}
	if pk.CPAMultiplier < 0 {
		errs = append(errs, fmt.Sprintf("pause_keyword.cpa_multiplier cannot be negative, got %v", pk.CPAMultiplier))
	}

	an := r.Thresholds.AddNegative
	if an.MinClicks < 0 || an.MinCost < 0 || an.MaxConversions < 0 {
		errs = append(errs, "add_negative thresholds cannot be negative")
	}

	if r.Thresholds.AdjustBid.MinClicks < 0 {
		errs = append(errs, "adjust_bid.min_clicks cannot be negative")
	}

	for kind, max := range r.DailyMaxima {
		if max < 0 {
			errs = append(errs, fmt.Sprintf("daily_maxima[%s] cannot be negative, got %d", kind, max))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid rule set: %s", strings.Join(errs, "; "))
	}
	return nil
}
