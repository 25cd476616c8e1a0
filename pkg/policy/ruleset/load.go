package ruleset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile loads a rule set from a YAML file. It applies default values,
// validates the result, and returns any errors. The engine must refuse all
// actions when loading fails; callers never fall back to an implicit
// permissive default.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %q: %w", path, err)
	}

	return Parse(data)
}

// Parse parses a rule set from YAML bytes, applying defaults and validating.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	ApplyDefaults(&rs)

	if err := Validate(&rs); err != nil {
		return nil, fmt.Errorf("rule validation failed: %w", err)
	}

	return &rs, nil
}
