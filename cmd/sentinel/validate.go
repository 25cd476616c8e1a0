package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adwatch-hq/sentinel/pkg/config"
	"adwatch-hq/sentinel/pkg/policy/ruleset"
)

var validateFlags struct {
	rulesFile string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and rule files",
	Long: `Validate the service configuration and, optionally, a policy rules
file without starting the server.

Examples:
  # Validate the config file
  sentinel validate --config config.yaml

  # Validate config and rules
  sentinel validate --config config.yaml --rules rules.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.rulesFile, "rules", "", "rules YAML file to validate")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	fmt.Println("configuration valid")

	rulesFile := validateFlags.rulesFile
	if rulesFile == "" {
		rulesFile = cfg.Ruleset.Path
	}
	if rulesFile == "" {
		return nil
	}

	rules, err := ruleset.LoadFile(rulesFile)
	if err != nil {
		return fmt.Errorf("rules invalid: %w", err)
	}
	fmt.Printf("rules valid: version %d, %d allowed kinds, %d forbidden kinds\n",
		rules.Version, len(rules.AllowedKinds), len(rules.ForbiddenKinds))
	return nil
}
