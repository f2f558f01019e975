package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"lead_cadence_backend/platform/apperr"
)

// QuestionKind selects how an answer is converted into points.
type QuestionKind string

const (
	KindSingle QuestionKind = "single"
	KindMulti  QuestionKind = "multi"
	KindText   QuestionKind = "text"
)

// Question is the scoring configuration for one questionnaire item.
type Question struct {
	ID       string             `yaml:"id" json:"id"`
	Kind     QuestionKind       `yaml:"kind" json:"kind"`
	Required bool               `yaml:"required" json:"required"`
	Weight   float64            `yaml:"weight" json:"weight"`
	Choices  map[string]float64 `yaml:"choices,omitempty" json:"choices,omitempty"`
	// MaxContribution caps the question's contribution. Zero means uncapped.
	MaxContribution float64 `yaml:"maxContribution,omitempty" json:"maxContribution,omitempty"`
	// AnsweredPoints is awarded to a non-blank text answer.
	AnsweredPoints float64 `yaml:"answeredPoints,omitempty" json:"answeredPoints,omitempty"`
}

// Questionnaire is a validated, versioned set of questions.
type Questionnaire struct {
	version   string
	questions []Question
	byID      map[string]Question
}

// ScoreResult is the outcome of scoring one questionnaire response.
type ScoreResult struct {
	Score int `json:"score"`
	// Factors holds each answered question's contribution, rounded to one decimal.
	Factors map[string]float64 `json:"factors"`
	// UnknownChoices lists answer values that matched no configured choice.
	UnknownChoices map[string][]string `json:"unknownChoices,omitempty"`
	Version        string              `json:"version"`
}

// NewQuestionnaire validates the question set.
func NewQuestionnaire(version string, questions []Question) (*Questionnaire, error) {
	if strings.TrimSpace(version) == "" {
		return nil, apperr.Configuration("questionnaire version is required")
	}
	if len(questions) == 0 {
		return nil, apperr.Configuration("questionnaire has no questions")
	}

	byID := make(map[string]Question, len(questions))
	for i, q := range questions {
		if strings.TrimSpace(q.ID) == "" {
			return nil, apperr.Configuration(fmt.Sprintf("question %d has no id", i))
		}
		if _, dup := byID[q.ID]; dup {
			return nil, apperr.Configuration(fmt.Sprintf("duplicate question id %q", q.ID))
		}
		if err := q.validate(); err != nil {
			return nil, err
		}
		byID[q.ID] = q
	}

	return &Questionnaire{
		version:   version,
		questions: append([]Question(nil), questions...),
		byID:      byID,
	}, nil
}

func (q Question) validate() error {
	switch q.Kind {
	case KindSingle, KindMulti:
		if len(q.Choices) == 0 {
			return apperr.Configuration(fmt.Sprintf("question %q needs at least one choice", q.ID))
		}
	case KindText:
	default:
		return apperr.Configuration(fmt.Sprintf("question %q has unknown kind %q", q.ID, q.Kind))
	}
	if q.Weight < 0 || math.IsNaN(q.Weight) || math.IsInf(q.Weight, 0) {
		return apperr.Configuration(fmt.Sprintf("question %q weight must be a finite number >= 0", q.ID))
	}
	for choice, points := range q.Choices {
		if math.IsNaN(points) || math.IsInf(points, 0) {
			return apperr.Configuration(fmt.Sprintf("question %q choice %q has non-finite points", q.ID, choice))
		}
	}
	if math.IsNaN(q.AnsweredPoints) || math.IsInf(q.AnsweredPoints, 0) {
		return apperr.Configuration(fmt.Sprintf("question %q answeredPoints must be finite", q.ID))
	}
	if q.MaxContribution < 0 || math.IsNaN(q.MaxContribution) {
		return apperr.Configuration(fmt.Sprintf("question %q maxContribution must be >= 0", q.ID))
	}
	return nil
}

// Version identifies the scoring configuration that produced a score.
func (q *Questionnaire) Version() string { return q.version }

// Questions returns the configured questions in declaration order.
func (q *Questionnaire) Questions() []Question {
	return append([]Question(nil), q.questions...)
}

// ComputeScore converts answers into a 0..100 score. It only fails when a
// required question is missing or blank; every other input yields a score.
func (q *Questionnaire) ComputeScore(answers Answers) (ScoreResult, error) {
	if missing := q.missingRequired(answers); len(missing) > 0 {
		return ScoreResult{}, apperr.Validation("required questions are unanswered").
			WithOp("qualification.ComputeScore").
			WithDetails(map[string][]string{"missing": missing})
	}

	result := ScoreResult{
		Factors: map[string]float64{},
		Version: q.version,
	}
	total := 0.0

	for _, question := range q.questions {
		answer, ok := answers[question.ID]
		if !ok || answer.IsBlank() {
			continue
		}

		raw, unknown := question.contribution(answer)
		if len(unknown) > 0 {
			if result.UnknownChoices == nil {
				result.UnknownChoices = map[string][]string{}
			}
			result.UnknownChoices[question.ID] = unknown
		}
		total += addFactor(result.Factors, question.ID, raw)
	}

	result.Score = clampScore(total)
	return result, nil
}

func (q *Questionnaire) missingRequired(answers Answers) []string {
	var missing []string
	for _, question := range q.questions {
		if !question.Required {
			continue
		}
		answer, ok := answers[question.ID]
		if !ok || answer.IsBlank() {
			missing = append(missing, question.ID)
		}
	}
	sort.Strings(missing)
	return missing
}

// contribution returns the weighted, capped points for one answer plus the
// answer values that matched no configured choice.
func (q Question) contribution(answer AnswerValue) (float64, []string) {
	var points float64
	var unknown []string

	switch q.Kind {
	case KindSingle:
		values := answer.Values()
		if len(values) != 1 {
			return 0, nonBlank(values)
		}
		p, ok := q.Choices[values[0]]
		if !ok {
			return 0, []string{values[0]}
		}
		points = p
	case KindMulti:
		seen := map[string]bool{}
		for _, v := range answer.Values() {
			if seen[v] || strings.TrimSpace(v) == "" {
				continue
			}
			seen[v] = true
			p, ok := q.Choices[v]
			if !ok {
				unknown = append(unknown, v)
				continue
			}
			points += p
		}
	case KindText:
		points = q.AnsweredPoints
	}

	value := q.Weight * points
	if q.MaxContribution > 0 && value > q.MaxContribution {
		value = q.MaxContribution
	}
	return value, unknown
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// addFactor records a contribution for display and returns it unrounded.
func addFactor(factors map[string]float64, key string, value float64) float64 {
	if math.Abs(value) < 0.01 {
		return 0
	}
	// Round to 1 decimal place for cleaner factor display
	factors[key] = math.Round(value*10) / 10
	return value
}

func clampScore(value float64) int {
	if value <= 0 {
		return 0
	}
	if value >= 100 {
		return 100
	}
	return int(math.Round(value))
}
