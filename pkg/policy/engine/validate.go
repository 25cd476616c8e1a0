package engine

import (
	"fmt"

	"adwatch-hq/sentinel/pkg/policy/ruleset"
)

// validateAction checks the structural shape of an action before any policy
// check runs. Malformed shapes are rejected outright rather than defaulting
// missing numeric fields to zero; a missing required metric would otherwise
// silently pass or fail thresholds it was never measured against.
//
// Returns nil when the action is structurally sound.
func validateAction(action *Action) *Decision {
	if action == nil {
		return reject(ReasonActionMissing, "no action supplied")
	}
	if action.Kind == "" {
		return reject(ReasonActionMissing, "action has no kind")
	}
	if action.ConfidenceScore < 0 || action.ConfidenceScore > 100 {
		return reject(ReasonActionInvalid,
			fmt.Sprintf("confidence score %.1f is outside [0, 100]", action.ConfidenceScore))
	}
	if d := validateMetricSigns(&action.Metrics); d != nil {
		return d
	}

	switch action.Kind {
	case KindPauseKeyword:
		return requireMetrics(
			metricReq{"clicks", action.Metrics.Clicks},
			metricReq{"impressions", action.Metrics.Impressions},
			metricReq{"cost", action.Metrics.Cost},
			metricReq{"ctr", action.Metrics.CTR},
		)
	case KindAddNegative:
		return requireMetrics(
			metricReq{"clicks", action.Metrics.Clicks},
			metricReq{"cost", action.Metrics.Cost},
			metricReq{"conversions", action.Metrics.Conversions},
		)
	case KindAdjustBid:
		if action.AdjustmentPercent == nil {
			return reject(ReasonActionInvalid, "bid adjustment action has no adjustment_percent")
		}
	}

	// Unrecognized kinds are structurally fine; the forbidden and allowed
	// membership checks decide their fate.
	return nil
}

type metricReq struct {
	name  string
	value *float64
}

func requireMetrics(reqs ...metricReq) *Decision {
	for _, req := range reqs {
		if req.value == nil {
			return reject(ReasonActionInvalid,
				fmt.Sprintf("required metric %s is missing", req.name))
		}
	}
	return nil
}

func validateMetricSigns(metrics *Metrics) *Decision {
	checks := []metricReq{
		{"clicks", metrics.Clicks},
		{"impressions", metrics.Impressions},
		{"cost", metrics.Cost},
		{"conversions", metrics.Conversions},
		{"ctr", metrics.CTR},
		{"cpa", metrics.CPA},
	}
	for _, c := range checks {
		if c.value != nil && *c.value < 0 {
			return reject(ReasonActionInvalid,
				fmt.Sprintf("metric %s cannot be negative (%.2f)", c.name, *c.value))
		}
	}
	return nil
}

// checkThresholds applies the per-kind eligibility thresholds. Required
// metric presence was established by validateAction; optional metrics are
// checked only when supplied.
//
// Returns nil when the action is eligible.
func checkThresholds(action *Action, rules *ruleset.RuleSet) *Decision {
	switch action.Kind {
	case KindPauseKeyword:
		t := rules.Thresholds.PauseKeyword
		m := action.Metrics
		if *m.Clicks < t.MinClicks {
			return conditionsNotMet("clicks", *m.Clicks, fmt.Sprintf("below the minimum %.0f", t.MinClicks))
		}
		if *m.Impressions < t.MinImpressions {
			return conditionsNotMet("impressions", *m.Impressions, fmt.Sprintf("below the minimum %.0f", t.MinImpressions))
		}
		if *m.Cost < t.MinCost {
			return conditionsNotMet("cost", *m.Cost, fmt.Sprintf("below the minimum %.2f", t.MinCost))
		}
		if *m.CTR > t.MaxCTR {
			return conditionsNotMet("ctr", *m.CTR, fmt.Sprintf("above the maximum %.2f", t.MaxCTR))
		}
		// CPA eligibility applies only when the caller measured a CPA. A
		// zero-conversion keyword has no meaningful CPA and is exempt.
		if m.CPA != nil && hasConversions(m) {
			bound := rules.TargetCPA * t.CPAMultiplier
			if *m.CPA >= bound {
				return conditionsNotMet("cpa", *m.CPA, fmt.Sprintf("not below target CPA bound %.2f", bound))
			}
		}

	case KindAddNegative:
		t := rules.Thresholds.AddNegative
		m := action.Metrics
		if *m.Clicks < t.MinClicks {
			return conditionsNotMet("clicks", *m.Clicks, fmt.Sprintf("below the minimum %.0f", t.MinClicks))
		}
		if *m.Cost < t.MinCost {
			return conditionsNotMet("cost", *m.Cost, fmt.Sprintf("below the minimum %.2f", t.MinCost))
		}
		if *m.Conversions > t.MaxConversions {
			return conditionsNotMet("conversions", *m.Conversions,
				fmt.Sprintf("above the maximum %.0f; converting terms must not be negated", t.MaxConversions))
		}

	case KindAdjustBid:
		t := rules.Thresholds.AdjustBid
		m := action.Metrics
		if m.Clicks != nil && *m.Clicks < t.MinClicks {
			return conditionsNotMet("clicks", *m.Clicks, fmt.Sprintf("below the minimum %.0f", t.MinClicks))
		}
	}
	return nil
}

func hasConversions(m Metrics) bool {
	return m.Conversions != nil && *m.Conversions > 0
}

func conditionsNotMet(metric string, value float64, explanation string) *Decision {
	return reject(ReasonConditionsNotMet,
		fmt.Sprintf("metric %s (%.2f) is %s", metric, value, explanation))
}
