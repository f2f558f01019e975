package domain

import (
	"encoding/json"
	"testing"

	"lead_cadence_backend/platform/apperr"
)

func TestDefaultScoringConfigIsValid(t *testing.T) {
	scoring, err := LoadScoringConfig("")
	if err != nil {
		t.Fatalf("embedded defaults must load: %v", err)
	}
	if len(scoring.Strategies) != len(scoring.Policy.Tiers()) {
		t.Fatalf("expected a strategy per tier, got %d", len(scoring.Strategies))
	}
	for _, s := range scoring.Strategies {
		if s.Category == TierInfoSeeker && s.Enabled {
			t.Fatal("info-seeker outreach must ship disabled")
		}
	}
}

func TestParseScoringConfigRejectsStrategyForUnknownTier(t *testing.T) {
	doc := []byte(`
version: v1
questions:
  - id: notes
    kind: text
    weight: 1
    answeredPoints: 5
strategies:
  - category: lukewarm
    maxSessionsPerWeek: 1
`)
	if _, err := ParseScoringConfig(doc); !apperr.Is(err, apperr.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParseScoringConfigRejectsMalformedYAML(t *testing.T) {
	if _, err := ParseScoringConfig([]byte("tiers: [")); !apperr.Is(err, apperr.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAnswersJSONShapes(t *testing.T) {
	var answers Answers
	if err := json.Unmarshal([]byte(`{"budget":"over_10k","interests":["solar","windows"]}`), &answers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if answers["budget"].IsList() || answers["budget"].String() != "over_10k" {
		t.Fatalf("unexpected budget answer %+v", answers["budget"])
	}
	if got := answers["interests"].Values(); len(got) != 2 || got[1] != "windows" {
		t.Fatalf("unexpected interests %v", got)
	}

	out, err := json.Marshal(answers)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(out) != `{"budget":"over_10k","interests":["solar","windows"]}` {
		t.Fatalf("answers must round-trip verbatim, got %s", out)
	}

	if err := json.Unmarshal([]byte(`{"budget":42}`), &answers); err == nil {
		t.Fatal("expected numeric answer to be rejected")
	}
}
