package domain

import (
	_ "embed"
	"fmt"
	"os"

	"lead_cadence_backend/platform/apperr"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultScoringConfig []byte

// ScoringConfig is the YAML document holding the questionnaire, the tier table
// and the cadence strategies seeded for each tier.
type ScoringConfig struct {
	Version    string            `yaml:"version"`
	Tiers      []TierThreshold   `yaml:"tiers"`
	Questions  []Question        `yaml:"questions"`
	Strategies []CadenceStrategy `yaml:"strategies"`
}

// Scoring is a validated ScoringConfig.
type Scoring struct {
	Questionnaire *Questionnaire
	Policy        *ClassificationPolicy
	Strategies    []CadenceStrategy
}

// LoadScoringConfig reads the config at path, or the embedded defaults when path is empty.
func LoadScoringConfig(path string) (*Scoring, error) {
	data := defaultScoringConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfiguration, "read scoring config", err).WithOp(path)
		}
		data = raw
	}
	return ParseScoringConfig(data)
}

// ParseScoringConfig decodes and validates a YAML scoring document.
func ParseScoringConfig(data []byte) (*Scoring, error) {
	var cfg ScoringConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "decode scoring config", err)
	}
	return cfg.Build()
}

// Build validates the document. Tiers default to DefaultTierThresholds.
func (c ScoringConfig) Build() (*Scoring, error) {
	tiers := c.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTierThresholds
	}
	policy, err := NewClassificationPolicy(tiers)
	if err != nil {
		return nil, err
	}

	questionnaire, err := NewQuestionnaire(c.Version, c.Questions)
	if err != nil {
		return nil, err
	}

	seen := map[Tier]bool{}
	for _, s := range c.Strategies {
		if !policy.Has(s.Category) {
			return nil, apperr.Configuration(fmt.Sprintf("strategy for unknown tier %q", s.Category))
		}
		if seen[s.Category] {
			return nil, apperr.Configuration(fmt.Sprintf("duplicate strategy for tier %q", s.Category))
		}
		seen[s.Category] = true
		if err := s.Validate(); err != nil {
			return nil, apperr.Wrap(apperr.KindConfiguration, "invalid default strategy", err)
		}
	}

	return &Scoring{
		Questionnaire: questionnaire,
		Policy:        policy,
		Strategies:    append([]CadenceStrategy(nil), c.Strategies...),
	}, nil
}
