package domain

import (
	"testing"

	"lead_cadence_backend/platform/apperr"
)

func defaultPolicy(t *testing.T) *ClassificationPolicy {
	t.Helper()
	p, err := NewClassificationPolicy(DefaultTierThresholds)
	if err != nil {
		t.Fatalf("default policy: %v", err)
	}
	return p
}

func TestClassifyThresholds(t *testing.T) {
	p := defaultPolicy(t)

	cases := []struct {
		score int
		want  Tier
	}{
		{0, TierInfoSeeker},
		{29, TierInfoSeeker},
		{30, TierCold},
		{59, TierCold},
		{60, TierWarm},
		{84, TierWarm},
		{85, TierHot},
		{100, TierHot},
		{-5, TierInfoSeeker},
		{140, TierHot},
	}
	for _, tc := range cases {
		if got := p.Classify(tc.score); got != tc.want {
			t.Fatalf("Classify(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	p := defaultPolicy(t)

	prev, _ := p.Rank(p.Classify(0))
	for score := 1; score <= 100; score++ {
		rank, ok := p.Rank(p.Classify(score))
		if !ok {
			t.Fatalf("Classify(%d) returned unknown tier", score)
		}
		if rank < prev {
			t.Fatalf("rank dropped at score %d", score)
		}
		prev = rank
	}
	if p.Classify(0) != p.Lowest() || p.Classify(100) != p.Highest() {
		t.Fatal("expected 0 to map to the lowest tier and 100 to the highest")
	}
}

func TestNewClassificationPolicyValidation(t *testing.T) {
	cases := map[string][]TierThreshold{
		"empty":          nil,
		"not descending": {{Tier: "a", Threshold: 50}, {Tier: "b", Threshold: 50}, {Tier: "c", Threshold: 0}},
		"no zero floor":  {{Tier: "a", Threshold: 50}, {Tier: "b", Threshold: 10}},
		"duplicate":      {{Tier: "a", Threshold: 50}, {Tier: "a", Threshold: 0}},
		"out of range":   {{Tier: "a", Threshold: 120}, {Tier: "b", Threshold: 0}},
		"blank name":     {{Tier: " ", Threshold: 0}},
	}
	for name, thresholds := range cases {
		if _, err := NewClassificationPolicy(thresholds); !apperr.Is(err, apperr.KindConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}
