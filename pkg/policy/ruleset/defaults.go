package ruleset

// Default returns the default rule set. These are the baseline safety
// constants; deployments tune them via the YAML rule file.
func Default() *RuleSet {
	return &RuleSet{
		Version: 1,
		AllowedKinds: []string{
			KindPauseKeyword,
			KindAdjustBid,
			KindAddNegative,
		},
		ForbiddenKinds: []string{
			"MODIFY_BUDGET",
			"PAUSE_CAMPAIGN",
			"ENABLE_CAMPAIGN",
			"DELETE_CAMPAIGN",
			"DELETE_AD_GROUP",
			"CREATE_CAMPAIGN",
			"DUPLICATE_CAMPAIGN",
			"MODIFY_CAMPAIGN_OBJECTIVE",
		},
		MinConfidenceScore: 80,
		TargetCPA:          50,
		BidBounds: BidBounds{
			DecreaseMin: -20,
			IncreaseMax: 15,
		},
		Thresholds: Thresholds{
			PauseKeyword: PauseKeywordThresholds{
				MinClicks:        30,
				MinImpressions:   1000,
				MinCost:          10,
				MaxCTR:           2.0,
				CPAMultiplier:    1.5,
				NoConversionDays: 14,
			},
			AddNegative: AddNegativeThresholds{
				MinClicks:      15,
				MinCost:        5,
				MaxConversions: 0,
			},
			AdjustBid: AdjustBidThresholds{
				MinClicks: 10,
			},
		},
		DailyMaxima: map[string]int64{
			KindPauseKeyword: 10,
			KindAddNegative:  20,
			KindAdjustBid:    15,
		},
	}
}

// ApplyDefaults fills unset fields with the default values. Zero-valued
// scalars are treated as unset; explicit zeroes that matter (MaxConversions)
// are preserved because the default is also zero.
func ApplyDefaults(r *RuleSet) {
	def := Default()

	if r.Version == 0 {
		r.Version = def.Version
	}
	if len(r.AllowedKinds) == 0 {
		r.AllowedKinds = def.AllowedKinds
	}
	if len(r.ForbiddenKinds) == 0 {
		r.ForbiddenKinds = def.ForbiddenKinds
	}
	if r.MinConfidenceScore == 0 {
		r.MinConfidenceScore = def.MinConfidenceScore
	}
	if r.TargetCPA == 0 {
		r.TargetCPA = def.TargetCPA
	}
	if r.BidBounds.DecreaseMin == 0 {
		r.BidBounds.DecreaseMin = def.BidBounds.DecreaseMin
	}
	if r.BidBounds.IncreaseMax == 0 {
		r.BidBounds.IncreaseMax = def.BidBounds.IncreaseMax
	}

	if r.Thresholds.PauseKeyword == (PauseKeywordThresholds{}) {
		r.Thresholds.PauseKeyword = def.Thresholds.PauseKeyword
	}
	if r.Thresholds.AddNegative == (AddNegativeThresholds{}) {
		r.Thresholds.AddNegative = def.Thresholds.AddNegative
	}
	if r.Thresholds.AdjustBid == (AdjustBidThresholds{}) {
		r.Thresholds.AdjustBid = def.Thresholds.AdjustBid
	}

	if len(r.DailyMaxima) == 0 {
		r.DailyMaxima = def.DailyMaxima
	}
}
