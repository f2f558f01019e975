package domain

import (
	"fmt"
	"strings"

	"lead_cadence_backend/platform/apperr"
)

// Tier is a classification category such as "hot" or "info-seeker".
type Tier string

// Default tier names.
const (
	TierHot        Tier = "hot"
	TierWarm       Tier = "warm"
	TierCold       Tier = "cold"
	TierInfoSeeker Tier = "info-seeker"
)

// TierThreshold maps a tier to the lowest score that earns it.
type TierThreshold struct {
	Tier      Tier `yaml:"tier" json:"tier"`
	Threshold int  `yaml:"threshold" json:"threshold"`
}

// DefaultTierThresholds is used when no scoring configuration overrides it.
var DefaultTierThresholds = []TierThreshold{
	{Tier: TierHot, Threshold: 85},
	{Tier: TierWarm, Threshold: 60},
	{Tier: TierCold, Threshold: 30},
	{Tier: TierInfoSeeker, Threshold: 0},
}

// ClassificationPolicy maps scores to tiers. Thresholds are ordered from the
// highest tier down and the last one is always 0, so every score has a tier.
type ClassificationPolicy struct {
	thresholds []TierThreshold
	rank       map[Tier]int
}

// NewClassificationPolicy validates the threshold table.
func NewClassificationPolicy(thresholds []TierThreshold) (*ClassificationPolicy, error) {
	if len(thresholds) == 0 {
		return nil, apperr.Configuration("classification policy needs at least one tier")
	}

	rank := make(map[Tier]int, len(thresholds))
	for i, t := range thresholds {
		if strings.TrimSpace(string(t.Tier)) == "" {
			return nil, apperr.Configuration(fmt.Sprintf("tier %d has no name", i))
		}
		if _, dup := rank[t.Tier]; dup {
			return nil, apperr.Configuration(fmt.Sprintf("duplicate tier %q", t.Tier))
		}
		if t.Threshold < 0 || t.Threshold > 100 {
			return nil, apperr.Configuration(fmt.Sprintf("tier %q threshold %d outside 0..100", t.Tier, t.Threshold))
		}
		if i > 0 && t.Threshold >= thresholds[i-1].Threshold {
			return nil, apperr.Configuration(fmt.Sprintf("tier %q threshold must be below %q", t.Tier, thresholds[i-1].Tier))
		}
		// Rank 0 is the lowest tier.
		rank[t.Tier] = len(thresholds) - 1 - i
	}
	if last := thresholds[len(thresholds)-1]; last.Threshold != 0 {
		return nil, apperr.Configuration(fmt.Sprintf("lowest tier %q must have threshold 0", last.Tier))
	}

	return &ClassificationPolicy{
		thresholds: append([]TierThreshold(nil), thresholds...),
		rank:       rank,
	}, nil
}

// Classify returns the highest tier whose threshold is at or below score.
// Scores outside 0..100 are clamped first.
func (p *ClassificationPolicy) Classify(score int) Tier {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	for _, t := range p.thresholds {
		if score >= t.Threshold {
			return t.Tier
		}
	}
	return p.Lowest()
}

// Rank orders tiers; higher is better. Unknown tiers report false.
func (p *ClassificationPolicy) Rank(tier Tier) (int, bool) {
	r, ok := p.rank[tier]
	return r, ok
}

// Has reports whether tier is part of the policy.
func (p *ClassificationPolicy) Has(tier Tier) bool {
	_, ok := p.rank[tier]
	return ok
}

// Tiers returns the thresholds from the highest tier down.
func (p *ClassificationPolicy) Tiers() []TierThreshold {
	return append([]TierThreshold(nil), p.thresholds...)
}

// Lowest returns the tier with threshold 0.
func (p *ClassificationPolicy) Lowest() Tier {
	return p.thresholds[len(p.thresholds)-1].Tier
}

// Highest returns the tier with the largest threshold.
func (p *ClassificationPolicy) Highest() Tier {
	return p.thresholds[0].Tier
}
