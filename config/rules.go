package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"tablenorm/models"
)

// DatasetRules maps a dataset name to the rule set that overrides its
// built-in rules.
type DatasetRules map[string]models.RuleSet

// LoadRules reads a YAML rules file of the form
//
//	earnings:
//	  "TOTAL EARNINGS":
//	    rename_to: total_earnings
//	    strip_chars: "$,"
//	    cast_to: float
//
// An empty path returns no overrides. Rules are only parsed here; they are
// validated when a table is normalized.
func LoadRules(path string) (DatasetRules, error) {
	if path == "" {
		return DatasetRules{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %q: %w", path, err)
	}

	return ParseRules(data)
}

// ParseRules decodes YAML rule definitions.
func ParseRules(data []byte) (DatasetRules, error) {
	rules := DatasetRules{}
	if err := yaml.UnmarshalStrict(data, &rules); err != nil {
		return nil, fmt.Errorf("rules: decode: %w", err)
	}
	return rules, nil
}

// For returns the override for dataset, or fallback when none is defined.
func (r DatasetRules) For(dataset string, fallback models.RuleSet) models.RuleSet {
	if rs, ok := r[dataset]; ok {
		return rs
	}
	return fallback
}
