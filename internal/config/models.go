package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelBudget is one model variant's throttle and price settings.
type ModelBudget struct {
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	TokensPerMinute   int     `yaml:"tokens_per_minute"`
	InputPerMTok      float64 `yaml:"input_per_mtok"`
	OutputPerMTok     float64 `yaml:"output_per_mtok"`
}

// ModelTable maps variant names ("structure", "extract") to budgets.
// Loaded from YAML so quota changes do not require a rebuild.
type ModelTable struct {
	Models map[string]ModelBudget `yaml:"models"`
}

// DefaultModelTable mirrors the free-tier quotas of the default models.
func DefaultModelTable() ModelTable {
	return ModelTable{
		Models: map[string]ModelBudget{
			"structure": {
				RequestsPerMinute: 5,
				TokensPerMinute:   250000,
				InputPerMTok:      1.25,
				OutputPerMTok:     10.00,
			},
			"extract": {
				RequestsPerMinute: 15,
				TokensPerMinute:   1000000,
				InputPerMTok:      0.10,
				OutputPerMTok:     0.40,
			},
		},
	}
}

// LoadModelTable reads the YAML budget table at path, falling back to
// defaults when path is empty. Variants missing from the file keep
// their default budgets.
func LoadModelTable(path string) (ModelTable, error) {
	table := DefaultModelTable()
	if path == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return ModelTable{}, fmt.Errorf("read model table: %w", err)
	}

	var loaded ModelTable
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return ModelTable{}, fmt.Errorf("parse model table: %w", err)
	}
	for name, budget := range loaded.Models {
		table.Models[name] = budget
	}
	return table, nil
}
