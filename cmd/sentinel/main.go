// Sentinel is an action safety policy engine for automated advertising
// account management.
//
// It gates proposed mutations (pausing keywords, adjusting bids, adding
// negative keywords) behind an ordered sequence of safety checks: a global
// emergency stop, forbidden and allowed action lists, per-kind eligibility
// thresholds, bid bounds, a protected-entity whitelist, daily execution
// quotas, and a confidence floor. Sentinel never executes the mutation
// itself; it only approves or rejects proposals.
//
// Usage:
//
//	# Start the API server with default configuration
//	sentinel run
//
//	# Start with a configuration file
//	sentinel run --config /etc/sentinel/config.yaml
//
//	# Validate configuration and rules without starting
//	sentinel validate --config config.yaml --rules rules.yaml
//
//	# Show version information
//	sentinel version
package main

func main() {
	Execute()
}
