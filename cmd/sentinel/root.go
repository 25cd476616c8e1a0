package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - action safety policy engine for ad account automation",
	Long: `Sentinel decides whether proposed mutations to an advertising account
may proceed. Automated optimizers submit actions (pause a keyword, adjust
a bid, add a negative keyword); Sentinel runs them through an ordered set
of safety checks and returns an allow/block decision with a reason code.

Safety checks, in order: emergency stop, forbidden and allowed action
lists, per-kind eligibility thresholds, bid adjustment bounds, the
protected-entity whitelist, daily execution quotas, and a minimum
confidence score.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults plus SENTINEL_* env)")
}
